package filter

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

func parseSelector(selector string) (cascadia.Selector, error) {
	parsed, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("bad css selector %q: %w", selector, err)
	}
	return parsed, nil
}

// parseBody parses a post body fragment into a full HTML document.
func parseBody(body string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// bodyInnerHTML serializes the document back to a body fragment.
func bodyInnerHTML(doc *goquery.Document) (string, error) {
	return doc.Find("body").Html()
}

// removeElementFilter removes elements matching any of the CSS
// selectors from each post body.
type removeElementFilter struct {
	selectors []cascadia.Selector
}

func buildRemoveElement(node *yaml.Node) (Filter, error) {
	var raw stringList
	if err := decodeNode(node, &raw); err != nil {
		return nil, fmt.Errorf("remove_element expects a list of css selectors: %w", err)
	}

	selectors := make([]cascadia.Selector, 0, len(raw))
	for _, s := range raw {
		parsed, err := parseSelector(s)
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, parsed)
	}
	return &removeElementFilter{selectors: selectors}, nil
}

func (f *removeElementFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	for _, post := range posts {
		post.ModifyBodies(f.filterBody)
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *removeElementFilter) filterBody(body string) string {
	doc, err := parseBody(body)
	if err != nil {
		return body
	}

	removed := 0
	for _, selector := range f.selectors {
		sel := doc.FindMatcher(selector)
		removed += sel.Length()
		sel.Remove()
	}
	if removed == 0 {
		return body
	}

	out, err := bodyInnerHTML(doc)
	if err != nil {
		return body
	}
	return out
}

func (f *removeElementFilter) CacheGranularity() Granularity { return FeedAndPost }

// keepElementFilter reduces each post body to the elements matching the
// CSS selector.
type keepElementFilter struct {
	selector cascadia.Selector
}

func buildKeepElement(node *yaml.Node) (Filter, error) {
	var raw string
	if err := decodeNode(node, &raw); err != nil {
		return nil, fmt.Errorf("keep_element expects a css selector: %w", err)
	}
	selector, err := parseSelector(raw)
	if err != nil {
		return nil, err
	}
	return &keepElementFilter{selector: selector}, nil
}

func (f *keepElementFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	for _, post := range posts {
		post.ModifyBodies(f.filterBody)
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *keepElementFilter) filterBody(body string) string {
	kept, ok := f.filterBodyOK(body)
	if !ok {
		return "<no element kept>"
	}
	return kept
}

// filterBodyOK reports whether the selector matched anything.
func (f *keepElementFilter) filterBodyOK(body string) (string, bool) {
	doc, err := parseBody(body)
	if err != nil {
		return body, false
	}

	sel := doc.FindMatcher(f.selector)
	if sel.Length() == 0 {
		return body, false
	}

	var out strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			out.WriteString(html)
		}
	})
	return out.String(), true
}

func (f *keepElementFilter) CacheGranularity() Granularity { return FeedAndPost }

// splitConfig declares the CSS selectors that carve one post's body
// into multiple posts. All optional selectors must match as many
// elements as title_selector.
type splitConfig struct {
	TitleSelector string `yaml:"title_selector"`
	LinkSelector  string `yaml:"link_selector"`
	BodySelector  string `yaml:"body_selector"`
	// DescriptionSelector is the old name of BodySelector.
	DescriptionSelector string `yaml:"description_selector"`
	AuthorSelector      string `yaml:"author_selector"`
	DateSelector        string `yaml:"date_selector"`
}

type splitFilter struct {
	titleSelector  cascadia.Selector
	linkSelector   cascadia.Selector
	bodySelector   cascadia.Selector
	authorSelector cascadia.Selector
	dateSelector   cascadia.Selector
}

func buildSplit(node *yaml.Node) (Filter, error) {
	var config splitConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}
	if config.TitleSelector == "" {
		return nil, fmt.Errorf("title_selector is required")
	}

	optional := func(s string) (cascadia.Selector, error) {
		if s == "" {
			return nil, nil
		}
		return parseSelector(s)
	}

	f := &splitFilter{}
	var err error
	if f.titleSelector, err = parseSelector(config.TitleSelector); err != nil {
		return nil, err
	}
	if f.linkSelector, err = optional(config.LinkSelector); err != nil {
		return nil, err
	}
	bodySelector := config.BodySelector
	if bodySelector == "" {
		bodySelector = config.DescriptionSelector
	}
	if f.bodySelector, err = optional(bodySelector); err != nil {
		return nil, err
	}
	if f.authorSelector, err = optional(config.AuthorSelector); err != nil {
		return nil, err
	}
	if f.dateSelector, err = optional(config.DateSelector); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *splitFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	var posts []*feed.Post
	for _, post := range fd.TakePosts() {
		split, err := f.split(post)
		if err != nil {
			return nil, err
		}
		posts = append(posts, split...)
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *splitFilter) CacheGranularity() Granularity { return FeedOnly }

func (f *splitFilter) split(post *feed.Post) ([]*feed.Post, error) {
	body := post.FirstBody()
	if body == "" {
		post.SetBody("split failed: no body")
		return []*feed.Post{post}, nil
	}

	doc, err := parseBody(body)
	if err != nil {
		return nil, fmt.Errorf("failed parsing post body: %w", err)
	}

	titles := doc.FindMatcher(f.titleSelector).Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})

	if post.Link() == "" {
		return nil, fmt.Errorf("post has no link")
	}
	links, err := f.selectLinks(post.Link(), doc)
	if err != nil {
		return nil, err
	}
	if len(titles) != len(links) {
		return nil, fmt.Errorf("selector error: title (%d) and link (%d) count mismatch", len(titles), len(links))
	}

	bodies := f.selectBodies(doc)
	authors := f.selectAuthors(doc)
	dates := f.selectDates(doc)
	for name, selected := range map[string][]string{"body": bodies, "author": authors} {
		if selected != nil && len(selected) != len(titles) {
			return nil, fmt.Errorf("selector error: title (%d) and %s (%d) count mismatch", len(titles), name, len(selected))
		}
	}
	if dates != nil && len(dates) != len(titles) {
		return nil, fmt.Errorf("selector error: title (%d) and date (%d) count mismatch", len(titles), len(dates))
	}

	var posts []*feed.Post
	for i, title := range titles {
		split := f.prepareTemplate(post)
		split.SetTitle(title)
		split.SetLink(links[i])
		if bodies != nil {
			split.SetBody(bodies[i])
		}
		if authors != nil {
			split.SetAuthor(authors[i])
		}
		if dates != nil && dates[i] != nil {
			split.SetPubDate(*dates[i])
		}
		split.SetGuid(links[i])
		posts = append(posts, split)
	}
	return posts, nil
}

// prepareTemplate clones the source post with its bodies (and author,
// when selected) cleared.
func (f *splitFilter) prepareTemplate(post *feed.Post) *feed.Post {
	template := post.Clone()
	template.ModifyBodies(func(string) string { return "" })
	if f.authorSelector != nil {
		template.SetAuthor("")
	}
	return template
}

func (f *splitFilter) selectLinks(baseLink string, doc *goquery.Document) ([]string, error) {
	selector := f.linkSelector
	if selector == nil {
		selector = f.titleSelector
	}

	var links []string
	var selErr error
	doc.FindMatcher(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			selErr = fmt.Errorf("selector error: link has no href")
			return false
		}
		links = append(links, expandLink(baseLink, href))
		return true
	})
	return links, selErr
}

// expandLink resolves a relative link against the post's own link.
func expandLink(baseLink, link string) string {
	base, err := url.Parse(baseLink)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

func (f *splitFilter) selectBodies(doc *goquery.Document) []string {
	if f.bodySelector == nil {
		return nil
	}
	return doc.FindMatcher(f.bodySelector).Map(func(_ int, s *goquery.Selection) string {
		html, err := s.Html()
		if err != nil {
			return ""
		}
		return html
	})
}

func (f *splitFilter) selectAuthors(doc *goquery.Document) []string {
	if f.authorSelector == nil {
		return nil
	}
	return doc.FindMatcher(f.authorSelector).Map(func(_ int, s *goquery.Selection) string {
		return s.Text()
	})
}

func (f *splitFilter) selectDates(doc *goquery.Document) []*time.Time {
	if f.dateSelector == nil {
		return nil
	}

	var dates []*time.Time
	doc.FindMatcher(f.dateSelector).Each(func(_ int, s *goquery.Selection) {
		dates = append(dates, dateFromElement(s))
	})
	return dates
}

// dateFromElement looks for a parseable date in the element's text,
// then in each of its attributes.
func dateFromElement(s *goquery.Selection) *time.Time {
	if t, err := feed.ParseDate(s.Text()); err == nil {
		return &t
	}
	for _, node := range s.Nodes {
		for _, attr := range node.Attr {
			if t, err := feed.ParseDate(attr.Val); err == nil {
				return &t
			}
		}
	}
	return nil
}
