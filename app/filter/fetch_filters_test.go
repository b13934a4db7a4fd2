package filter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/mmcdole/gofeed/rss"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

func TestFullTextReplacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><article>full article text</article></body></html>`))
	}))
	defer server.Close()

	input := feed.NewRSS(&rss.Feed{
		Title: "Test",
		Link:  "http://example.com/",
		Items: []*rss.Item{{
			Title:       "one",
			Link:        server.URL + "/article",
			Description: "teaser",
			GUID:        &rss.GUID{Value: "guid-1"},
		}},
	})

	f := buildTestFilter(t, "full_text", map[string]interface{}{})
	out := runTestFilter(t, f, input)

	post := out.Posts()[0]
	if body := post.FirstBody(); !strings.Contains(body, "full article text") {
		t.Errorf("body was not replaced with the page: %q", body)
	}
	if got := post.Guid(); got != "guid-1-full" {
		t.Errorf("expected rewritten guid, got %q", got)
	}
}

func TestFullTextAppendMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>appended page</body></html>`))
	}))
	defer server.Close()

	input := feed.NewRSS(&rss.Feed{
		Title: "Test",
		Link:  "http://example.com/",
		Items: []*rss.Item{{Title: "one", Link: server.URL + "/a", Description: "teaser"}},
	})

	f := buildTestFilter(t, "full_text", map[string]interface{}{
		"append_mode": true,
		"keep_guid":   true,
	})
	out := runTestFilter(t, f, input)

	body := out.Posts()[0].FirstBody()
	if !strings.HasPrefix(body, "teaser") {
		t.Errorf("append mode should keep the original body first: %q", body)
	}
	if !strings.Contains(body, "appended page") {
		t.Errorf("append mode did not append the page: %q", body)
	}
}

func TestFullTextFetchErrorKeepsFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	input := feed.NewRSS(&rss.Feed{
		Title: "Test",
		Link:  "http://example.com/",
		Items: []*rss.Item{{Title: "one", Link: server.URL + "/a", Description: "teaser"}},
	})

	f := buildTestFilter(t, "full_text", map[string]interface{}{})
	out := runTestFilter(t, f, input)

	body := out.Posts()[0].FirstBody()
	if !strings.Contains(body, "error fetching full text") {
		t.Errorf("fetch failure should be noted in the body: %q", body)
	}
}

func TestMergeAppendsSourcePosts(t *testing.T) {
	const mergedRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Other</title>
    <link>http://other.example.com/</link>
    <description>other feed</description>
    <item><title>merged one</title><link>http://other.example.com/1</link><description>m1</description></item>
    <item><title>merged two</title><link>http://other.example.com/2</link><description>m2</description></item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(mergedRSS))
	}))
	defer server.Close()

	f := buildTestFilter(t, "merge", server.URL+"/feed.xml")
	out := runTestFilter(t, f, rssTestFeed("main"))

	titles := postTitles(out)
	sort.Strings(titles)
	if !equalStrings(titles, []string{"main", "merged one", "merged two"}) {
		t.Errorf("unexpected merged posts: %v", titles)
	}
}

func TestMergeNestedFilters(t *testing.T) {
	const mergedRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Other</title>
    <link>http://other.example.com/</link>
    <description>other feed</description>
    <item><title>keep me</title><link>http://other.example.com/1</link><description>m1</description></item>
    <item><title>drop me</title><link>http://other.example.com/2</link><description>m2</description></item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(mergedRSS))
	}))
	defer server.Close()

	f := buildTestFilter(t, "merge", map[string]interface{}{
		"source": server.URL + "/feed.xml",
		"filters": []interface{}{
			map[string]interface{}{"discard": "drop"},
		},
	})
	out := runTestFilter(t, f, rssTestFeed("main"))

	titles := postTitles(out)
	sort.Strings(titles)
	if !equalStrings(titles, []string{"keep me", "main"}) {
		t.Errorf("nested filters did not apply: %v", titles)
	}
}

func TestMergeFailedSourceBecomesErrorPost(t *testing.T) {
	const mergedRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Other</title>
    <link>http://other.example.com/</link>
    <description>other feed</description>
    <item><title>merged one</title><link>http://other.example.com/1</link><description>m1</description></item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/bad") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(mergedRSS))
	}))
	defer server.Close()

	f := buildTestFilter(t, "merge", []interface{}{
		server.URL + "/feed.xml",
		server.URL + "/bad.xml",
	})
	out := runTestFilter(t, f, rssTestFeed("main"))

	titles := postTitles(out)
	sort.Strings(titles)
	if !equalStrings(titles, []string{"Failed fetching source", "main", "merged one"}) {
		t.Errorf("unexpected posts after partial failure: %v", titles)
	}
}

func TestMergeAllSourcesFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := buildTestFilter(t, "merge", server.URL+"/feed.xml")
	_, err := f.Run(context.Background(), NewFilterContext(), rssTestFeed("main"))
	if err == nil {
		t.Fatal("expected an error when every source fails")
	}
}

func TestJsonToFeedMapping(t *testing.T) {
	const document = `{
  "meta": {"title": "Example News", "home": "https://example.com"},
  "items": [
    {"id": "101", "title": "Hello World", "url": "https://example.com/hello",
     "summary": "Short blurb", "tags": ["intro", "general"]}
  ]
}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(document))
	}))
	defer server.Close()

	f := buildTestFilter(t, "json_to_feed", map[string]interface{}{
		"url":   server.URL + "/news.json",
		"items": "$.items[*]",
		"feed": map[string]interface{}{
			"title": "$.meta.title",
			"link":  "$.meta.home",
		},
		"map": map[string]interface{}{
			"title":       "$.title",
			"link":        "$.url",
			"guid":        "$.id",
			"description": "$.summary",
			"categories":  "$.tags[*]",
		},
	})
	out := runTestFilter(t, f, rssTestFeed())

	if got := out.Title(); got != "Example News" {
		t.Errorf("expected feed title from document, got %q", got)
	}
	if got := out.Link(); got != "https://example.com" {
		t.Errorf("expected feed link from document, got %q", got)
	}

	posts := out.Posts()
	if len(posts) != 1 {
		t.Fatalf("expected one post, got %d", len(posts))
	}
	post := posts[0]
	if post.Title() != "Hello World" {
		t.Errorf("unexpected title %q", post.Title())
	}
	if post.Link() != "https://example.com/hello" {
		t.Errorf("unexpected link %q", post.Link())
	}
	if post.Guid() != "101" {
		t.Errorf("unexpected guid %q", post.Guid())
	}
	if post.FirstBody() != "Short blurb" {
		t.Errorf("unexpected body %q", post.FirstBody())
	}
	if !equalStrings(post.Categories(), []string{"intro", "general"}) {
		t.Errorf("unexpected categories %v", post.Categories())
	}
}

func TestJsonToFeedMissingRequiredField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": [{"url": "https://example.com/hello"}]}`))
	}))
	defer server.Close()

	f := buildTestFilter(t, "json_to_feed", map[string]interface{}{
		"url":   server.URL + "/news.json",
		"items": "$.items[*]",
		"map": map[string]interface{}{
			"title": "$.title",
			"link":  "$.url",
		},
	})
	_, err := f.Run(context.Background(), NewFilterContext(), rssTestFeed())
	if err == nil {
		t.Fatal("expected a missing field error")
	}
	if !strings.Contains(err.Error(), "title") {
		t.Errorf("error should name the missing field: %v", err)
	}
}
