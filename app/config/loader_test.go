package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
auth:
  username: admin
  password: secret

endpoints:
  - path: /news
    note: tech news, filtered
    source: https://example.com/feed.xml
    on_the_fly_filters: true
    client:
      user_agent: custom-agent/1.0
    filters:
      - keep_only: technology
      - limit: 20

  - path: dynamic
    filters: []

  - path: /templated
    source:
      template: https://example.com/${user}/feed.xml
      placeholders:
        user:
          validation: "^[a-z]+$"
    filters:
      - convert_to: atom
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funnel.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Auth == nil || config.Auth.Username != "admin" {
		t.Errorf("unexpected auth: %+v", config.Auth)
	}
	if len(config.Endpoints) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(config.Endpoints))
	}

	news := config.Endpoints[0]
	if news.Path != "/news" {
		t.Errorf("unexpected path: %q", news.Path)
	}
	if news.Source == nil || news.Source.Simple != "https://example.com/feed.xml" {
		t.Errorf("unexpected source: %+v", news.Source)
	}
	if !news.OnTheFlyFilters {
		t.Errorf("expected on_the_fly_filters to be set")
	}
	if news.Client == nil || news.Client.UserAgent != "custom-agent/1.0" {
		t.Errorf("unexpected client config: %+v", news.Client)
	}
	if len(news.Filters) != 2 || news.Filters[0].Kind != "keep_only" || news.Filters[1].Kind != "limit" {
		t.Errorf("unexpected filters: %+v", news.Filters)
	}

	// A path without a leading slash is normalized.
	if config.Endpoints[1].Path != "/dynamic" {
		t.Errorf("unexpected path: %q", config.Endpoints[1].Path)
	}
	if !config.Endpoints[1].Source.IsEmpty() {
		t.Errorf("endpoint without a source should be dynamic")
	}

	templated := config.Endpoints[2]
	if templated.Source == nil || templated.Source.Templated == nil {
		t.Fatalf("expected a templated source, got %+v", templated.Source)
	}
	if templated.Source.Templated.Template != "https://example.com/${user}/feed.xml" {
		t.Errorf("unexpected template: %q", templated.Source.Templated.Template)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no endpoints", `endpoints: []`},
		{"missing path", "endpoints:\n  - source: https://example.com/feed.xml\n    filters: []"},
		{"duplicate path", "endpoints:\n  - path: /a\n    filters: []\n  - path: /a\n    filters: []"},
		{"incomplete auth", "auth:\n  username: admin\nendpoints:\n  - path: /a\n    filters: []"},
		{"unknown filter", "endpoints:\n  - path: /a\n    filters:\n      - frobnicate: 1"},
	}
	for _, tc := range cases {
		if _, err := Parse([]byte(tc.yaml)); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}
