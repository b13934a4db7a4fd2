package filter

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/cfg"
	"github.com/lysyi3m/rss-funnel/app/client"
	"github.com/lysyi3m/rss-funnel/app/feed"
)

const (
	defaultParallelism = 20
	fullTextClientTTL  = 15 * time.Minute
	fullTextGuidSuffix = "-full"
)

type fullTextConfig struct {
	Parallelism int            `yaml:"parallelism"`
	Simplify    bool           `yaml:"simplify"`
	AppendMode  bool           `yaml:"append_mode"`
	KeepElement string         `yaml:"keep_element"`
	KeepGuid    *bool          `yaml:"keep_guid"`
	Client      *client.Config `yaml:"client"`
}

// fullTextFilter replaces (or extends) each post body with the page
// behind the post's link. Fetches run concurrently; a failed fetch
// turns into an error note in the body instead of failing the feed.
type fullTextFilter struct {
	client      *client.Client
	parallelism int
	simplify    bool
	appendMode  bool
	keepGuid    bool
	keepElement *keepElementFilter
}

func buildFullText(node *yaml.Node) (Filter, error) {
	var config fullTextConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}

	var clientConfig client.Config
	if config.Client != nil {
		clientConfig = *config.Client
	}
	httpClient, err := clientConfig.Build(fullTextClientTTL, cfg.DefaultUserAgent())
	if err != nil {
		return nil, err
	}

	parallelism := config.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	var keepElement *keepElementFilter
	if config.KeepElement != "" {
		selector, err := parseSelector(config.KeepElement)
		if err != nil {
			return nil, err
		}
		keepElement = &keepElementFilter{selector: selector}
	}

	keepGuid := config.KeepGuid != nil && *config.KeepGuid

	return &fullTextFilter{
		client:      httpClient,
		parallelism: parallelism,
		simplify:    config.Simplify,
		appendMode:  config.AppendMode,
		keepGuid:    keepGuid,
		keepElement: keepElement,
	}, nil
}

func (f *fullTextFilter) Run(ctx context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(f.parallelism)
	for _, post := range posts {
		post := post
		group.Go(func() error {
			f.fetchFullPost(ctx, post)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	fd.SetPosts(posts)
	return fd, nil
}

func (f *fullTextFilter) CacheGranularity() Granularity { return FeedAndPost }

// fetchFullPost never fails: fetch errors are appended to the post
// body so a single broken page does not break the whole feed.
func (f *fullTextFilter) fetchFullPost(ctx context.Context, post *feed.Post) {
	if err := f.tryFetchFullPost(ctx, post); err != nil {
		post.AppendBody(fmt.Sprintf("\n<br>\n<br>\nerror fetching full text: %s", err))
	}
}

func (f *fullTextFilter) tryFetchFullPost(ctx context.Context, post *feed.Post) error {
	link := post.Link()
	if link == "" {
		return fmt.Errorf("post has no link")
	}

	text, err := f.fetchHTML(ctx, link)
	if err != nil {
		return err
	}

	if f.keepElement != nil {
		if filtered, ok := f.keepElement.filterBodyOK(text); ok {
			text = filtered
		} else {
			text = "<p>Failed to filter description with keep_element</p>\n" + text
		}
	}

	if f.simplify {
		if simplified, ok := simplifyHTML(text, link); ok {
			text = simplified
		}
	}

	if f.appendMode {
		post.AppendBody("\n<br><hr><br>\n" + text)
	} else {
		post.SetBody(text)
	}

	if !f.keepGuid {
		if guid := post.Guid(); guid != "" {
			post.SetGuid(guid + fullTextGuidSuffix)
		}
	}
	return nil
}

func (f *fullTextFilter) fetchHTML(ctx context.Context, link string) (string, error) {
	if _, err := url.Parse(link); err != nil {
		return "", fmt.Errorf("invalid link: %w", err)
	}

	resp, err := f.client.Get(ctx, link)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", &client.StatusError{URL: link, StatusCode: resp.StatusCode}
	}
	if contentType := resp.ContentType(); contentType != "" && contentType != "text/html" {
		return "", fmt.Errorf("unexpected content type: %s", contentType)
	}

	text, err := resp.Text()
	if err != nil {
		return "", err
	}

	base, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return absolutizePage(text, base), nil
}

// absolutizePage rewrites relative href/src attributes in a full HTML
// page against base. On parse failure the page passes through as is.
func absolutizePage(page string, base *url.URL) string {
	doc, err := parseBody(page)
	if err != nil {
		return page
	}
	for _, attr := range []string{"href", "src"} {
		attr := attr
		doc.Find("[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			value, ok := s.Attr(attr)
			if !ok || value == "" {
				return
			}
			parsed, err := url.Parse(value)
			if err != nil {
				return
			}
			s.SetAttr(attr, base.ResolveReference(parsed).String())
		})
	}
	out, err := doc.Html()
	if err != nil {
		return page
	}
	return out
}
