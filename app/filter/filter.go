// Package filter implements the feed transformation filters, the
// pipeline that runs them and the two-level cache in front of each
// pipeline step.
package filter

import (
	"context"
	"net/url"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

// Granularity declares a filter's compatibility with post-level
// caching. Filters that produce or reorder posts non-deterministically
// must declare FeedOnly.
type Granularity int

const (
	FeedOnly Granularity = iota
	FeedAndPost
)

// Filter transforms a feed, possibly touching the network.
type Filter interface {
	Run(ctx context.Context, fctx *FilterContext, f *feed.Feed) (*feed.Feed, error)
	CacheGranularity() Granularity
}

// FilterContext is the per-request state threaded through a pipeline.
type FilterContext struct {
	// Base is the application base URL, configured or inferred from
	// the request.
	Base *url.URL
	// Source is the resolved source URL of the current request, when
	// the source is a fetched one.
	Source *url.URL
	// ExtraQueries holds the request query parameters not claimed by
	// the endpoint layer (used by templated sources).
	ExtraQueries map[string]string
	// FilterSkip holds pipeline indices to skip.
	FilterSkip map[int]bool
	// LimitFilters caps how many leading filters run. Negative means
	// no limit.
	LimitFilters int
}

func NewFilterContext() *FilterContext {
	return &FilterContext{LimitFilters: -1}
}

// AllowsFilter reports whether the filter at the given pipeline index
// should run.
func (c *FilterContext) AllowsFilter(index int) bool {
	if c.LimitFilters >= 0 && index >= c.LimitFilters {
		return false
	}
	return !c.FilterSkip[index]
}

// SubContext clones the base URL and extra queries but clears the
// source and skip state. Used by filters that run nested pipelines.
func (c *FilterContext) SubContext() *FilterContext {
	sub := NewFilterContext()
	sub.Base = c.Base
	if c.ExtraQueries != nil {
		sub.ExtraQueries = make(map[string]string, len(c.ExtraQueries))
		for k, v := range c.ExtraQueries {
			sub.ExtraQueries[k] = v
		}
	}
	return sub
}
