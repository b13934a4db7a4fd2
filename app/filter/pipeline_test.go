package filter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed/rss"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

func markerConfigs(t *testing.T, markers ...string) []FilterConfig {
	t.Helper()
	configs := make([]FilterConfig, 0, len(markers))
	for _, marker := range markers {
		config, err := ParseConfigValue("modify_post", `post.title += "`+marker+`";`)
		if err != nil {
			t.Fatalf("failed building config: %v", err)
		}
		configs = append(configs, config)
	}
	return configs
}

func TestPipelineRunsFiltersInOrder(t *testing.T) {
	pipeline, err := NewPipeline(markerConfigs(t, "-a", "-b", "-c"))
	if err != nil {
		t.Fatalf("failed building pipeline: %v", err)
	}

	out, err := pipeline.Run(context.Background(), NewFilterContext(), rssTestFeed("post"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Posts()[0].Title(); got != "post-a-b-c" {
		t.Errorf("expected title %q, got %q", "post-a-b-c", got)
	}
}

func TestPipelineSkipsFilters(t *testing.T) {
	pipeline, err := NewPipeline(markerConfigs(t, "-a", "-b", "-c"))
	if err != nil {
		t.Fatalf("failed building pipeline: %v", err)
	}

	fctx := NewFilterContext()
	fctx.FilterSkip = map[int]bool{1: true}

	out, err := pipeline.Run(context.Background(), fctx, rssTestFeed("post"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Posts()[0].Title(); got != "post-a-c" {
		t.Errorf("expected title %q, got %q", "post-a-c", got)
	}
}

func TestPipelineLimitFilters(t *testing.T) {
	pipeline, err := NewPipeline(markerConfigs(t, "-a", "-b", "-c"))
	if err != nil {
		t.Fatalf("failed building pipeline: %v", err)
	}

	fctx := NewFilterContext()
	fctx.LimitFilters = 2

	out, err := pipeline.Run(context.Background(), fctx, rssTestFeed("post"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Posts()[0].Title(); got != "post-a-b" {
		t.Errorf("expected title %q, got %q", "post-a-b", got)
	}
}

func TestPipelineUpdateKeepsUnchangedFilters(t *testing.T) {
	configs := markerConfigs(t, "-a", "-b")
	pipeline, err := NewPipeline(configs)
	if err != nil {
		t.Fatalf("failed building pipeline: %v", err)
	}
	kept := pipeline.filters[0]

	updated := append(markerConfigs(t, "-a"), markerConfigs(t, "-c")...)
	if err := pipeline.Update(updated); err != nil {
		t.Fatalf("failed updating pipeline: %v", err)
	}

	if pipeline.Len() != 2 {
		t.Fatalf("expected 2 filters, got %d", pipeline.Len())
	}
	if pipeline.filters[0] != kept {
		t.Errorf("unchanged filter was rebuilt")
	}
}

// Two requests through the same pipeline must not serialize behind
// each other's network fetches.
func TestPipelineRunsConcurrently(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	var releaseOnce sync.Once
	defer releaseOnce.Do(func() { close(release) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>page</body></html>"))
	}))
	defer server.Close()

	config, err := ParseConfigValue("full_text", map[string]interface{}{})
	if err != nil {
		t.Fatalf("failed building config: %v", err)
	}
	pipeline, err := NewPipeline([]FilterConfig{config})
	if err != nil {
		t.Fatalf("failed building pipeline: %v", err)
	}

	feedFor := func(path string) *feed.Feed {
		return feed.NewRSS(&rss.Feed{
			Title: "Test",
			Link:  "http://example.com/",
			Items: []*rss.Item{{Title: path, Link: server.URL + path, Description: "teaser"}},
		})
	}

	var wg sync.WaitGroup
	for _, path := range []string{"/a", "/b"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if _, err := pipeline.Run(context.Background(), NewFilterContext(), feedFor(path)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(path)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			t.Fatal("second run did not start while the first was fetching")
		}
	}
	releaseOnce.Do(func() { close(release) })
	wg.Wait()
}

func TestOnTheFlyQueryParsing(t *testing.T) {
	params := ParseOnTheFlyQuery("discard=foo&other=1&limit=2")
	if !equalStrings(params, []string{"discard=foo", "limit=2"}) {
		t.Errorf("unexpected filter params: %v", params)
	}

	if params := ParseOnTheFlyQuery("a=b&c=d"); len(params) != 0 {
		t.Errorf("expected no filter params, got %v", params)
	}
}

func TestParseOnTheFlyParam(t *testing.T) {
	cases := []struct {
		param string
		kind  string
	}{
		{"discard=foo", "discard"},
		{"limit=1", "limit"},
		{"limit=1h", "limit"},
		{"discard=a%20b", "discard"},
		{"simplify_html", "simplify_html"},
		{"simplify_html=", "simplify_html"},
	}
	for _, tc := range cases {
		config, err := parseOnTheFlyParam(tc.param)
		if err != nil {
			t.Errorf("param %q: unexpected error: %v", tc.param, err)
			continue
		}
		if config.Kind != tc.kind {
			t.Errorf("param %q: expected kind %q, got %q", tc.param, tc.kind, config.Kind)
		}
		if _, err := config.Build(); err != nil {
			t.Errorf("param %q: failed building filter: %v", tc.param, err)
		}
	}
}

func TestOnTheFlyRun(t *testing.T) {
	var otf OnTheFly

	out, err := otf.Run(context.Background(), NewFilterContext(), "discard=foo&limit=1",
		rssTestFeed("foo one", "bar", "baz"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	titles := postTitles(out)
	if !equalStrings(titles, []string{"bar"}) {
		t.Errorf("expected posts [bar], got %v", titles)
	}
}

func TestOnTheFlyNoFilters(t *testing.T) {
	var otf OnTheFly

	input := rssTestFeed("a", "b")
	out, err := otf.Run(context.Background(), NewFilterContext(), "plain=param", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != input {
		t.Errorf("expected feed to pass through untouched")
	}
}
