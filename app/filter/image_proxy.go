package filter

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
	"github.com/lysyi3m/rss-funnel/app/imageproxy"
)

const imageProxyRoute = "/_image"

// imageProxyConfig selects the images to rewrite and where to point
// them. Setting base switches to an external proxy service; otherwise
// the built-in signed proxy route is used.
type imageProxyConfig struct {
	// Domains restricts rewriting to images whose host matches one of
	// the globs ("*.example.com" matches "foo.example.com" but not
	// "example.com").
	Domains []string `yaml:"domains"`
	// Selector restricts rewriting to img tags matching a CSS selector.
	Selector string `yaml:"selector"`

	// External proxy: the base URL the image URL is appended to.
	Base string `yaml:"base"`
	// Urlencode encodes the image URL before appending. Defaults to
	// true when base ends with "=".
	Urlencode *bool `yaml:"urlencode"`

	// Built-in proxy options, carried in the signed query.
	Referer   string `yaml:"referer"`
	UserAgent string `yaml:"user_agent"`
	Proxy     string `yaml:"proxy"`
}

type imageProxyFilter struct {
	config   imageProxyConfig
	domains  []glob.Glob
	selector cascadia.Selector
}

func buildImageProxy(node *yaml.Node) (Filter, error) {
	var config imageProxyConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}

	domains := make([]glob.Glob, 0, len(config.Domains))
	for _, pattern := range config.Domains {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		domains = append(domains, compiled)
	}

	selector := config.Selector
	if selector == "" {
		selector = "img"
	}
	compiled, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}

	return &imageProxyFilter{config: config, domains: domains, selector: compiled}, nil
}

func (f *imageProxyFilter) Run(_ context.Context, fctx *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	for _, post := range posts {
		post.ModifyBodies(func(body string) string {
			return f.rewriteBody(fctx, body)
		})
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *imageProxyFilter) CacheGranularity() Granularity { return FeedAndPost }

func (f *imageProxyFilter) rewriteBody(fctx *FilterContext, body string) string {
	doc, err := parseBody(body)
	if err != nil {
		return body
	}

	changed := false
	doc.FindMatcher(f.selector).Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		if rewritten, ok := f.rewriteURL(fctx, src); ok {
			s.SetAttr("src", rewritten)
			changed = true
		}
	})
	if !changed {
		return body
	}

	out, err := bodyInnerHTML(doc)
	if err != nil {
		return body
	}
	return out
}

func (f *imageProxyFilter) rewriteURL(fctx *FilterContext, src string) (string, bool) {
	parsed, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	if !f.matchesDomain(parsed.Hostname()) {
		return "", false
	}

	if f.config.Base != "" {
		return f.externalURL(src), true
	}
	return f.internalURL(fctx, src), true
}

func (f *imageProxyFilter) matchesDomain(host string) bool {
	if len(f.domains) == 0 {
		return true
	}
	for _, domain := range f.domains {
		if domain.Match(host) {
			return true
		}
	}
	return false
}

func (f *imageProxyFilter) externalURL(src string) string {
	urlencode := strings.HasSuffix(f.config.Base, "=")
	if f.config.Urlencode != nil {
		urlencode = *f.config.Urlencode
	}
	if urlencode {
		src = url.QueryEscape(src)
	}
	return f.config.Base + src
}

// internalURL points the image at the built-in signed proxy route,
// absolute when the app base URL is known.
func (f *imageProxyFilter) internalURL(fctx *FilterContext, src string) string {
	proxyConfig := imageproxy.Config{
		Referer:   f.config.Referer,
		UserAgent: f.config.UserAgent,
		Proxy:     f.config.Proxy,
	}

	query := url.Values{}
	query.Set("url", src)
	if proxyConfig.Referer != "" {
		query.Set("referer", proxyConfig.Referer)
	}
	if proxyConfig.UserAgent != "" {
		query.Set("user_agent", proxyConfig.UserAgent)
	}
	if proxyConfig.Proxy != "" {
		query.Set("proxy", proxyConfig.Proxy)
	}
	query.Set("sig", imageproxy.Signature(proxyConfig, src))

	route := imageProxyRoute
	if fctx.Base != nil {
		route = fctx.Base.ResolveReference(&url.URL{Path: imageProxyRoute}).String()
	}
	return route + "?" + query.Encode()
}
