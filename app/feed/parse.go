package feed

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

// ParseError indicates that a document could not be parsed as a feed.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed parsing feed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("failed parsing feed (%s)", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func ParseRSS(content []byte) (*Feed, error) {
	parser := &rss.Parser{}
	channel, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Reason: "rss", Err: err}
	}
	return NewRSS(channel), nil
}

func ParseAtom(content []byte) (*Feed, error) {
	parser := &atom.Parser{}
	f, err := parser.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Reason: "atom", Err: err}
	}
	return NewAtom(f), nil
}

// ParseXML parses a document of unknown dialect: RSS first, Atom as
// the fallback.
func ParseXML(content []byte) (*Feed, error) {
	f, rssErr := ParseRSS(content)
	if rssErr == nil {
		return f, nil
	}
	f, atomErr := ParseAtom(content)
	if atomErr == nil {
		return f, nil
	}
	return nil, &ParseError{Reason: "xml", Err: fmt.Errorf("not rss (%v) nor atom (%v)", rssErr, atomErr)}
}

// FromHTML turns an arbitrary web page into a single-post RSS feed.
// The post title comes from readability extraction and the body is the
// page's <body> content with relative URLs made absolute.
func FromHTML(content []byte, pageURL string) (*Feed, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &ParseError{Reason: "html", Err: fmt.Errorf("invalid page url: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Reason: "html", Err: err}
	}
	absolutizeURLs(doc, base)

	rewritten, err := doc.Html()
	if err != nil {
		return nil, &ParseError{Reason: "html", Err: err}
	}

	article, err := readability.FromReader(strings.NewReader(rewritten), base)
	if err != nil {
		return nil, &ParseError{Reason: "html", Err: fmt.Errorf("readability extraction: %w", err)}
	}

	body, err := doc.Find("body").Html()
	if err != nil {
		return nil, &ParseError{Reason: "html", Err: err}
	}

	item := &rss.Item{
		Title:       article.Title,
		Link:        pageURL,
		Description: body,
		GUID:        &rss.GUID{Value: pageURL},
	}
	channel := &rss.Feed{
		Title: article.Title,
		Link:  pageURL,
		Items: []*rss.Item{item},
	}
	return NewRSS(channel), nil
}

// absolutizeURLs rewrites relative href/src attributes against base.
func absolutizeURLs(doc *goquery.Document, base *url.URL) {
	rewrite := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			value, ok := s.Attr(attr)
			if !ok || value == "" {
				return
			}
			ref, err := url.Parse(value)
			if err != nil || ref.IsAbs() {
				return
			}
			s.SetAttr(attr, base.ResolveReference(ref).String())
		}
	}
	doc.Find("[href]").Each(rewrite("href"))
	doc.Find("[src]").Each(rewrite("src"))
}
