package filter

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

const defaultHighlightColor = "#ffff00"

// highlightConfig accepts either keywords (matched literally) or
// patterns (regular expressions), but not both. The shorthand form (a
// string or list of strings) means keywords.
type highlightConfig struct {
	Keywords      stringList `yaml:"keywords"`
	Patterns      stringList `yaml:"patterns"`
	BgColor       string     `yaml:"bg_color"`
	CaseSensitive bool       `yaml:"case_sensitive"`
}

func (c *highlightConfig) UnmarshalYAML(node *yaml.Node) error {
	var shorthand stringList
	if err := node.Decode(&shorthand); err == nil {
		c.Keywords = shorthand
		return nil
	}

	type plain highlightConfig
	return node.Decode((*plain)(c))
}

// highlightFilter wraps pattern matches in post bodies in a styled
// span element.
type highlightFilter struct {
	bgColor  string
	patterns []*regexp.Regexp
}

func buildHighlight(node *yaml.Node) (Filter, error) {
	var config highlightConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}
	if (len(config.Keywords) == 0) == (len(config.Patterns) == 0) {
		return nil, fmt.Errorf("exactly one of keywords or patterns must be set")
	}

	raw := config.Patterns
	if len(config.Keywords) > 0 {
		raw = make([]string, 0, len(config.Keywords))
		for _, keyword := range config.Keywords {
			raw = append(raw, regexp.QuoteMeta(keyword))
		}
	}

	patterns, err := compilePatterns(raw, config.CaseSensitive)
	if err != nil {
		return nil, err
	}

	bgColor := config.BgColor
	if bgColor == "" {
		bgColor = defaultHighlightColor
	}
	return &highlightFilter{bgColor: bgColor, patterns: patterns}, nil
}

func (f *highlightFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	for _, post := range posts {
		post.ModifyBodies(f.highlightHTML)
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *highlightFilter) CacheGranularity() Granularity { return FeedAndPost }

func (f *highlightFilter) highlightHTML(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return body
	}
	bodyNode := findElement(doc, "body")
	if bodyNode == nil {
		return body
	}

	for _, textNode := range collectTextNodes(bodyNode) {
		f.highlightTextNode(textNode)
	}

	var buf bytes.Buffer
	for c := bodyNode.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return body
		}
	}
	return buf.String()
}

// highlightTextNode replaces a text node with an alternating run of
// plain text nodes and highlight spans. Nodes without a match are left
// untouched.
func (f *highlightFilter) highlightTextNode(node *html.Node) {
	segments := f.segmentize(node.Data)
	if len(segments) == 1 && !segments[0].highlighted {
		return
	}

	parent := node.Parent
	for _, seg := range segments {
		parent.InsertBefore(f.segmentNode(seg), node)
	}
	parent.RemoveChild(node)
}

func (f *highlightFilter) segmentNode(seg textSegment) *html.Node {
	text := &html.Node{Type: html.TextNode, Data: seg.text}
	if !seg.highlighted {
		return text
	}
	span := &html.Node{
		Type: html.ElementNode,
		Data: "span",
		Attr: []html.Attribute{
			{Key: "class", Val: "rss-funnel-hl"},
			{Key: "style", Val: "background-color: " + f.bgColor},
		},
	}
	span.AppendChild(text)
	return span
}

type textSegment struct {
	text        string
	highlighted bool
}

// segmentize scans the text left to right. At each position the
// earliest-starting match wins, ties broken by pattern order; the
// matched range becomes a highlight segment and the cursor advances
// past it.
func (f *highlightFilter) segmentize(text string) []textSegment {
	var out []textSegment
	cursor := 0
	for cursor < len(text) {
		start, end := -1, -1
		for _, re := range f.patterns {
			loc := re.FindStringIndex(text[cursor:])
			if loc == nil {
				continue
			}
			if start == -1 || loc[0] < start {
				start, end = loc[0], loc[1]
			}
		}
		if start == -1 || end == start {
			break
		}

		if start > 0 {
			out = append(out, textSegment{text: text[cursor : cursor+start]})
		}
		out = append(out, textSegment{text: text[cursor+start : cursor+end], highlighted: true})
		cursor += end
	}

	if cursor < len(text) {
		out = append(out, textSegment{text: text[cursor:]})
	}
	return out
}

// findElement walks the tree depth-first for the first element with
// the given tag name.
func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func collectTextNodes(n *html.Node) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			nodes = append(nodes, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return nodes
}
