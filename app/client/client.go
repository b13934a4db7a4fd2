// Package client wraps net/http with per-endpoint configuration and a
// timed LRU over URL -> response. Source fetches and filters that pull
// auxiliary documents all go through it.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/rss-funnel/app/cache"
	"github.com/lysyi3m/rss-funnel/app/feed"
)

// Responses larger than this are truncated; feeds should never get
// close.
const maxBodySize = 32 << 20

var acceptedContentTypes = []string{
	"application/xml",
	"text/xml",
	"application/rss+xml",
	"application/atom+xml",
	"text/html",
	"*/*",
}

// StatusError reports a non-success HTTP status from an upstream
// server.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d fetching %s", e.StatusCode, e.URL)
}

type clientParams struct {
	http              *http.Client
	cacheSize         int
	cacheTTL          time.Duration
	userAgent         string
	accept            string
	cookie            string
	referer           string
	assumeContentType string
}

type Client struct {
	http              *http.Client
	cache             *cache.TimedLRU[string, *Response]
	userAgent         string
	accept            string
	cookie            string
	referer           string
	assumeContentType string
}

func newClient(params clientParams) *Client {
	return &Client{
		http:              params.http,
		cache:             cache.NewTimedLRU[string, *Response](params.cacheSize, params.cacheTTL),
		userAgent:         params.userAgent,
		accept:            params.accept,
		cookie:            params.cookie,
		referer:           params.referer,
		assumeContentType: params.assumeContentType,
	}
}

// Get fetches a URL, serving from the response cache when possible.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.getWith(ctx, url, nil)
}

func (c *Client) getWith(ctx context.Context, url string, modify func(*http.Request)) (*Response, error) {
	return c.cache.GetOrInsert(url, func() (*Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed building request for %s: %w", url, err)
		}

		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if c.accept != "" {
			req.Header.Set("Accept", c.accept)
		}
		if c.cookie != "" {
			req.Header.Set("Cookie", c.cookie)
		}
		if c.referer != "" {
			req.Header.Set("Referer", c.referer)
		}
		if modify != nil {
			modify(req)
		}

		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed fetching %s: %w", url, err)
		}
		defer httpResp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("failed reading response from %s: %w", url, err)
		}

		resp := newResponse(url, httpResp.StatusCode, httpResp.Header, body)
		if c.assumeContentType != "" {
			resp = resp.withContentType(c.assumeContentType)
		}
		return resp, nil
	})
}

// FetchFeed fetches a URL and parses it into a feed, dispatching on
// the response content type. An HTML page becomes a single-post feed.
func (c *Client) FetchFeed(ctx context.Context, url string) (*feed.Feed, error) {
	resp, err := c.getWith(ctx, url, func(req *http.Request) {
		if c.accept == "" {
			req.Header.Set("Accept", strings.Join(acceptedContentTypes, ", "))
		}
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	switch resp.ContentType() {
	case "text/html":
		text, err := resp.Text()
		if err != nil {
			return nil, fmt.Errorf("failed decoding %s: %w", url, err)
		}
		return feed.FromHTML([]byte(text), url)
	case "application/atom+xml":
		// atom first, rss as the fallback
		if f, err := feed.ParseAtom(resp.Body); err == nil {
			return f, nil
		}
		return feed.ParseRSS(resp.Body)
	default:
		return feed.ParseXML(resp.Body)
	}
}

// InsertCached places a response directly into the cache. Tests only.
func (c *Client) InsertCached(url string, resp *Response) {
	c.cache.Insert(url, resp)
}

// SetTransport swaps the underlying HTTP transport. Tests use this to
// serve canned fixtures.
func (c *Client) SetTransport(transport http.RoundTripper) {
	c.http.Transport = transport
}
