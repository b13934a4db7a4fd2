package filter

import (
	"context"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

// simplifyHTMLFilter strips each post body down to its readable
// content. Takes no options.
type simplifyHTMLFilter struct{}

func buildSimplifyHtml(node *yaml.Node) (Filter, error) {
	var empty struct{}
	if err := decodeNode(node, &empty); err != nil {
		return nil, err
	}
	return &simplifyHTMLFilter{}, nil
}

func (f *simplifyHTMLFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	for _, post := range posts {
		link := post.Link()
		post.ModifyBodies(func(body string) string {
			if simplified, ok := simplifyHTML(body, link); ok {
				return simplified
			}
			return body
		})
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *simplifyHTMLFilter) CacheGranularity() Granularity { return FeedAndPost }

// simplifyHTML extracts the readable content of an HTML fragment. The
// post link serves as the base for resolving relative URLs; an
// unparseable link or extraction failure leaves the body unchanged.
func simplifyHTML(body, link string) (string, bool) {
	base, err := url.Parse(link)
	if err != nil || base.Scheme == "" {
		return "", false
	}
	article, err := readability.FromReader(strings.NewReader(body), base)
	if err != nil {
		return "", false
	}
	return article.Content, true
}
