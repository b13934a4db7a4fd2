package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed/rss"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>A test feed</description>
    <item>
      <guid isPermaLink="false">post-1</guid>
      <title>First Post</title>
      <link>https://example.com/1</link>
      <description>First description</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
    </item>
    <item>
      <guid isPermaLink="false">post-2</guid>
      <title>Second Post</title>
      <link>https://example.com/2</link>
      <description>Second description</description>
      <pubDate>Tue, 03 Jan 2006 15:04:05 +0000</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Test</title>
  <id>urn:feed:1</id>
  <updated>2006-01-02T15:04:05Z</updated>
  <subtitle>An atom feed</subtitle>
  <link href="https://example.com" />
  <entry>
    <title>Entry One</title>
    <id>urn:entry:1</id>
    <updated>2006-01-02T15:04:05Z</updated>
    <link href="https://example.com/1" />
    <summary>Entry summary</summary>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	f, err := ParseRSS([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if f.Format() != FormatRSS {
		t.Errorf("Expected format rss, got %s", f.Format())
	}
	if f.Title() != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got '%s'", f.Title())
	}
	if f.Link() != "https://example.com" {
		t.Errorf("Expected link 'https://example.com', got '%s'", f.Link())
	}
	if f.PostCount() != 2 {
		t.Fatalf("Expected 2 posts, got %d", f.PostCount())
	}

	posts := f.Posts()
	if posts[0].Title() != "First Post" {
		t.Errorf("Expected post title 'First Post', got '%s'", posts[0].Title())
	}
	if posts[0].Guid() != "post-1" {
		t.Errorf("Expected guid 'post-1', got '%s'", posts[0].Guid())
	}
	if posts[0].PubDate() == nil {
		t.Error("Expected parsed pub date")
	}
}

func TestParseAtom(t *testing.T) {
	f, err := ParseAtom([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if f.Format() != FormatAtom {
		t.Errorf("Expected format atom, got %s", f.Format())
	}
	if f.Title() != "Atom Test" {
		t.Errorf("Expected title 'Atom Test', got '%s'", f.Title())
	}
	if f.PostCount() != 1 {
		t.Fatalf("Expected 1 post, got %d", f.PostCount())
	}

	post := f.Posts()[0]
	if post.Link() != "https://example.com/1" {
		t.Errorf("Expected entry link 'https://example.com/1', got '%s'", post.Link())
	}
	if post.FirstBody() != "Entry summary" {
		t.Errorf("Expected body 'Entry summary', got '%s'", post.FirstBody())
	}
}

func TestParseXMLFallback(t *testing.T) {
	f, err := ParseXML([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.Format() != FormatAtom {
		t.Errorf("Expected atom fallback, got %s", f.Format())
	}

	if _, err := ParseXML([]byte("not xml at all")); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestSerializeEscapesCDATAContent(t *testing.T) {
	f := NewRSS(&rss.Feed{
		Title:       "Test Feed",
		Link:        "https://example.com",
		Description: "A test feed",
		Items: []*rss.Item{{
			Title:       "First Post",
			Link:        "https://example.com/1",
			Description: "First description",
			Content:     "before ]]> after",
		}},
	})

	serialized, err := f.Serialize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	reparsed, err := ParseRSS([]byte(serialized))
	if err != nil {
		t.Fatalf("Serialized feed failed to parse: %v", err)
	}
	if got := reparsed.RSS.Items[0].Content; got != "before ]]> after" {
		t.Errorf("Content changed in round trip: '%s'", got)
	}
}

func TestSerializeRoundTripRSS(t *testing.T) {
	f, err := ParseRSS([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	serialized, err := f.Serialize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	reparsed, err := ParseRSS([]byte(serialized))
	if err != nil {
		t.Fatalf("Serialized feed failed to parse: %v", err)
	}

	if reparsed.Title() != f.Title() {
		t.Errorf("Title changed in round trip: '%s' vs '%s'", reparsed.Title(), f.Title())
	}
	if reparsed.Link() != f.Link() {
		t.Errorf("Link changed in round trip: '%s' vs '%s'", reparsed.Link(), f.Link())
	}
	if reparsed.Description() != f.Description() {
		t.Errorf("Description changed in round trip")
	}
	if reparsed.PostCount() != f.PostCount() {
		t.Fatalf("Post count changed in round trip: %d vs %d", reparsed.PostCount(), f.PostCount())
	}
	for i, post := range reparsed.Posts() {
		original := f.Posts()[i]
		if post.Title() != original.Title() {
			t.Errorf("Post %d title changed: '%s' vs '%s'", i, post.Title(), original.Title())
		}
		if post.Link() != original.Link() {
			t.Errorf("Post %d link changed", i)
		}
		if post.FirstBody() != original.FirstBody() {
			t.Errorf("Post %d body changed", i)
		}
	}
}

func TestSerializeRoundTripAtom(t *testing.T) {
	f, err := ParseAtom([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	serialized, err := f.Serialize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	reparsed, err := ParseAtom([]byte(serialized))
	if err != nil {
		t.Fatalf("Serialized feed failed to parse: %v", err)
	}

	if reparsed.Title() != f.Title() {
		t.Errorf("Title changed in round trip")
	}
	if reparsed.PostCount() != 1 {
		t.Fatalf("Expected 1 post after round trip, got %d", reparsed.PostCount())
	}
	if reparsed.Posts()[0].FirstBody() != "Entry summary" {
		t.Errorf("Entry summary changed in round trip")
	}
}

func TestIntoFormatConversion(t *testing.T) {
	f, err := ParseRSS([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	converted := f.IntoFormat(FormatAtom)
	if converted.Format() != FormatAtom {
		t.Fatalf("Expected atom after conversion, got %s", converted.Format())
	}
	if converted.Title() != "Test Feed" {
		t.Errorf("Expected title preserved, got '%s'", converted.Title())
	}
	if converted.Link() != "https://example.com" {
		t.Errorf("Expected link preserved, got '%s'", converted.Link())
	}
	if converted.Description() != "A test feed" {
		t.Errorf("Expected description mapped to subtitle, got '%s'", converted.Description())
	}
	if converted.PostCount() != 2 {
		t.Fatalf("Expected 2 entries, got %d", converted.PostCount())
	}

	entry := converted.Posts()[0]
	if entry.Guid() != "post-1" {
		t.Errorf("Expected guid mapped to id, got '%s'", entry.Guid())
	}
	if entry.FirstBody() != "First description" {
		t.Errorf("Expected description mapped to summary, got '%s'", entry.FirstBody())
	}
}

func TestIntoFormatIdempotent(t *testing.T) {
	f, err := ParseAtom([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	once := f.IntoFormat(FormatRSS)
	twice := once.IntoFormat(FormatRSS)

	a, err := once.Serialize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, err := twice.Serialize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a != b {
		t.Error("Converting to the current format should be a no-op")
	}
}

func TestNormalizeStability(t *testing.T) {
	f, err := ParseRSS([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	serialized, err := f.Serialize()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	reparsed, err := ParseRSS([]byte(serialized))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if f.Normalize().Key() != reparsed.Normalize().Key() {
		t.Error("Normalization should be stable across serialize-then-parse")
	}
}

func TestNormalizeDistinguishesContent(t *testing.T) {
	a := NewFromScratch(FormatRSS, "Feed A", "https://example.com", "")
	b := NewFromScratch(FormatRSS, "Feed B", "https://example.com", "")

	if a.Normalize().Key() == b.Normalize().Key() {
		t.Error("Feeds with different titles should have different keys")
	}
}

func TestPostBodies(t *testing.T) {
	post := &Post{RSS: &rss.Item{
		Content:     "<p>content</p>",
		Description: "description",
	}}

	bodies := post.Bodies()
	if len(bodies) != 2 {
		t.Fatalf("Expected 2 bodies, got %d", len(bodies))
	}
	if bodies[0] != "<p>content</p>" {
		t.Errorf("Expected content first, got '%s'", bodies[0])
	}

	post.ModifyBodies(strings.ToUpper)
	if post.RSS.Content != "<P>CONTENT</P>" {
		t.Errorf("Expected content modified, got '%s'", post.RSS.Content)
	}
	if post.RSS.Description != "DESCRIPTION" {
		t.Errorf("Expected description modified, got '%s'", post.RSS.Description)
	}
}

func TestPostBodyCreation(t *testing.T) {
	post := &Post{RSS: &rss.Item{Title: "bare"}}

	if post.FirstBody() != "" {
		t.Errorf("Expected no body, got '%s'", post.FirstBody())
	}

	post.AppendBody("hello")
	if post.RSS.Description != "hello" {
		t.Errorf("Expected description created, got '%s'", post.RSS.Description)
	}

	post.PrependBody("say ")
	if post.FirstBody() != "say hello" {
		t.Errorf("Expected prepend on first body, got '%s'", post.FirstBody())
	}
}

func TestReorder(t *testing.T) {
	f, err := ParseRSS([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f.Reorder()
	posts := f.Posts()
	if posts[0].Title() != "Second Post" {
		t.Errorf("Expected newest post first, got '%s'", posts[0].Title())
	}
}

func TestMerge(t *testing.T) {
	a, _ := ParseRSS([]byte(sampleRSS))
	b, _ := ParseRSS([]byte(sampleRSS))

	if err := a.Merge(b); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a.PostCount() != 4 {
		t.Errorf("Expected 4 posts after merge, got %d", a.PostCount())
	}

	c, _ := ParseAtom([]byte(sampleAtom))
	if err := a.Merge(c); err == nil {
		t.Error("Expected error merging atom into rss")
	}
}

func TestCloneIsolation(t *testing.T) {
	f, err := ParseRSS([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	clone := f.Clone()
	clone.SetTitle("Mutated")
	clone.Posts()[0].SetTitle("Mutated Post")

	if f.Title() != "Test Feed" {
		t.Errorf("Clone mutation leaked into original title")
	}
	if f.Posts()[0].Title() != "First Post" {
		t.Errorf("Clone mutation leaked into original post")
	}
}

func TestSetPubDate(t *testing.T) {
	post := &Post{RSS: &rss.Item{}}
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	post.SetPubDate(when)

	got := post.PubDate()
	if got == nil {
		t.Fatal("Expected pub date after set")
	}
	if !got.Equal(when) {
		t.Errorf("Expected %v, got %v", when, got)
	}
}

func TestFromHTML(t *testing.T) {
	page := `<html><head><title>Page Title</title></head>
<body><article><h1>Page Title</h1><p>` + strings.Repeat("Interesting content. ", 30) + `</p>
<a href="/relative">link</a></article></body></html>`

	f, err := FromHTML([]byte(page), "https://example.com/article")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if f.Format() != FormatRSS {
		t.Errorf("Expected rss feed from html, got %s", f.Format())
	}
	if f.PostCount() != 1 {
		t.Fatalf("Expected single post, got %d", f.PostCount())
	}

	post := f.Posts()[0]
	if post.Link() != "https://example.com/article" {
		t.Errorf("Expected post link to be page url, got '%s'", post.Link())
	}
	if !strings.Contains(post.FirstBody(), "https://example.com/relative") {
		t.Error("Expected relative links to be made absolute")
	}
}
