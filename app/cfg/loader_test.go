package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestDefaultUserAgent(t *testing.T) {
	ua := DefaultUserAgent()
	if ua == "" {
		t.Fatal("DefaultUserAgent should never return empty string")
	}
	if ua != "rss-funnel/"+GetVersion() {
		t.Errorf("Expected user agent to carry the version, got '%s'", ua)
	}
}

func TestConfigFields(t *testing.T) {
	// Create a config instance to test field access
	cfg := &Cfg{
		ConfigFile: "./funnel.yaml",
		Port:       "4080",
		BaseUrl:    "https://funnel.example.com",
		UserAgent:  "Test Agent",
		Timezone:   "UTC",
		Debug:      true,
		Version:    "test-version",
	}

	if cfg.ConfigFile != "./funnel.yaml" {
		t.Errorf("Expected config file './funnel.yaml', got '%s'", cfg.ConfigFile)
	}
	if cfg.Port != "4080" {
		t.Errorf("Expected port '4080', got '%s'", cfg.Port)
	}
	if cfg.BaseUrl != "https://funnel.example.com" {
		t.Errorf("Expected base URL 'https://funnel.example.com', got '%s'", cfg.BaseUrl)
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected timezone 'UTC', got '%s'", cfg.Timezone)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
	if cfg.Version != "test-version" {
		t.Errorf("Expected version 'test-version', got '%s'", cfg.Version)
	}
}

func TestSetForTesting(t *testing.T) {
	prev := globalCfg
	defer func() { globalCfg = prev }()

	c := SetForTesting(&Cfg{Port: "4080"})
	if c.UserAgent == "" {
		t.Error("SetForTesting should fill in a default user agent")
	}
	if Get() != c {
		t.Error("Get should return the installed configuration")
	}
}
