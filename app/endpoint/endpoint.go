// Package endpoint glues source resolution, the filter pipeline and
// the on-the-fly filters for one configured path, and keeps the
// registry the HTTP layer dispatches against.
package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lysyi3m/rss-funnel/app/cfg"
	"github.com/lysyi3m/rss-funnel/app/client"
	"github.com/lysyi3m/rss-funnel/app/config"
	"github.com/lysyi3m/rss-funnel/app/feed"
	"github.com/lysyi3m/rss-funnel/app/filter"
	"github.com/lysyi3m/rss-funnel/app/source"
)

const defaultClientTTL = 15 * time.Minute

// Endpoint serves one configured path: it resolves the source, runs
// the pipeline through its caches and applies any on-the-fly filters.
type Endpoint struct {
	path     string
	pipeline *filter.Pipeline

	mu       sync.RWMutex
	note     string
	source   source.Source // nil for dynamic endpoints
	client   *client.Client
	onTheFly *filter.OnTheFly
}

func New(c config.EndpointConfig) (*Endpoint, error) {
	pipeline, err := filter.NewPipeline(c.Filters)
	if err != nil {
		return nil, fmt.Errorf("in endpoint %s: %w", c.Path, err)
	}

	e := &Endpoint{path: c.Path, pipeline: pipeline}
	if err := e.configure(c); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Endpoint) Path() string { return e.path }

func (e *Endpoint) Note() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.note
}

// Update applies a changed configuration in place. Pipeline filters
// whose configuration is unchanged keep their caches.
func (e *Endpoint) Update(c config.EndpointConfig) error {
	if err := e.pipeline.Update(c.Filters); err != nil {
		return fmt.Errorf("in endpoint %s: %w", e.path, err)
	}
	return e.configure(c)
}

func (e *Endpoint) configure(c config.EndpointConfig) error {
	var src source.Source
	if !c.Source.IsEmpty() {
		built, err := c.Source.Build()
		if err != nil {
			return fmt.Errorf("in endpoint %s: %w", e.path, err)
		}
		src = built
	}

	var clientConfig client.Config
	if c.Client != nil {
		clientConfig = *c.Client
	}
	httpClient, err := clientConfig.Build(defaultClientTTL, cfg.DefaultUserAgent())
	if err != nil {
		return fmt.Errorf("in endpoint %s: %w", e.path, err)
	}

	var onTheFly *filter.OnTheFly
	if c.OnTheFlyFilters {
		onTheFly = &filter.OnTheFly{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.note = c.Note
	e.source = src
	e.client = httpClient
	e.onTheFly = onTheFly
	return nil
}

// SetClientTransport swaps the endpoint client's transport. Tests use
// it to serve fixtures.
func (e *Endpoint) SetClientTransport(transport http.RoundTripper) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.client.SetTransport(transport)
}

// Run fetches the source feed, applies the configured pipeline and the
// request's on-the-fly filters, and truncates to the requested post
// count.
func (e *Endpoint) Run(ctx context.Context, req Request) (*feed.Feed, error) {
	e.mu.RLock()
	src := e.source
	httpClient := e.client
	onTheFly := e.onTheFly
	e.mu.RUnlock()

	fctx := filterContext(req, src)

	if req.Source != "" {
		built, err := (&source.Config{Simple: req.Source}).Build()
		if err != nil {
			return nil, err
		}
		src = built
	} else if src == nil {
		return nil, source.ErrDynamicSourceUnspecified
	}

	fd, err := src.FetchFeed(ctx, source.ResolveParams{
		Base:         fctx.Base,
		ExtraQueries: fctx.ExtraQueries,
	}, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed fetching source: %w", err)
	}

	fd, err = e.pipeline.Run(ctx, fctx, fd)
	if err != nil {
		return nil, err
	}

	if onTheFly != nil {
		fd, err = onTheFly.Run(ctx, fctx, req.RawQuery, fd)
		if err != nil {
			return nil, fmt.Errorf("in on-the-fly filters: %w", err)
		}
	}

	if req.LimitPosts > 0 && fd.PostCount() > req.LimitPosts {
		posts := fd.TakePosts()
		fd.SetPosts(posts[:req.LimitPosts])
	}
	return fd, nil
}

// filterContext translates the request into the per-request state the
// filters see.
func filterContext(req Request, src source.Source) *filter.FilterContext {
	fctx := filter.NewFilterContext()
	fctx.Base = req.Base
	fctx.FilterSkip = req.FilterSkip
	if req.LimitFilters != nil {
		fctx.LimitFilters = *req.LimitFilters
	}
	fctx.ExtraQueries = req.ExtraQueries

	if raw := sourceURL(req, src); raw != "" {
		parsed, err := url.Parse(raw)
		if err == nil && parsed.IsAbs() {
			fctx.Source = parsed
		}
	}
	return fctx
}

// sourceURL reports the concrete URL this request's feed comes from,
// when one is statically known.
func sourceURL(req Request, src source.Source) string {
	if req.Source != "" {
		return req.Source
	}
	if abs, ok := src.(interface{ URL() string }); ok {
		return abs.URL()
	}
	return ""
}
