package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

// Pipeline runs an ordered sequence of filters, each behind its own
// FilterCache. It supports atomic reconfiguration: caches of unchanged
// filters survive an update.
type Pipeline struct {
	mu      sync.Mutex
	filters []Filter
	configs []FilterConfig
	caches  []*FilterCache
}

func NewPipeline(configs []FilterConfig) (*Pipeline, error) {
	p := &Pipeline{}
	if err := p.Update(configs); err != nil {
		return nil, err
	}
	return p, nil
}

// Run applies the filters in order, honoring the context's skip set
// and filter limit. Each step observes the full output of all prior
// steps. The lock only guards the snapshot: concurrent requests run
// the filters in parallel, and the caches synchronize themselves.
func (p *Pipeline) Run(ctx context.Context, fctx *FilterContext, f *feed.Feed) (*feed.Feed, error) {
	p.mu.Lock()
	filters := p.filters
	configs := p.configs
	caches := p.caches
	p.mu.Unlock()

	var err error
	for i, flt := range filters {
		if !fctx.AllowsFilter(i) {
			continue
		}
		f, err = step(ctx, caches[i], flt, fctx, f)
		if err != nil {
			return nil, fmt.Errorf("in filter %d (%s): %w", i, configs[i].Kind, err)
		}
	}
	return f, nil
}

func step(ctx context.Context, cache *FilterCache, flt Filter, fctx *FilterContext, f *feed.Feed) (*feed.Feed, error) {
	if cache == nil {
		return flt.Run(ctx, fctx, f)
	}
	return cache.Run(ctx, f, flt.CacheGranularity(), func(ctx context.Context, f *feed.Feed) (*feed.Feed, error) {
		return flt.Run(ctx, fctx, f)
	})
}

// Len returns the number of configured filters.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.filters)
}

// Update replaces the pipeline's filters. Filters whose configuration
// is unchanged keep their instance and cache. The new slices are built
// aside and swapped in under the lock, so in-flight runs keep their
// snapshot intact.
func (p *Pipeline) Update(configs []FilterConfig) error {
	p.mu.Lock()
	oldConfigs := p.configs
	oldFilters := p.filters
	oldCaches := p.caches
	p.mu.Unlock()

	var filters []Filter
	var caches []*FilterCache
	used := make([]bool, len(oldConfigs))

	for _, config := range configs {
		if i, ok := take(oldConfigs, used, config); ok {
			filters = append(filters, oldFilters[i])
			caches = append(caches, oldCaches[i])
			continue
		}

		slog.Info("building filter", "kind", config.Kind)
		flt, err := config.Build()
		if err != nil {
			return err
		}
		filters = append(filters, flt)
		caches = append(caches, NewFilterCache())
	}

	p.mu.Lock()
	p.filters = filters
	p.configs = configs
	p.caches = caches
	p.mu.Unlock()
	return nil
}

// take finds an existing filter matching config that has not been
// claimed by an earlier entry of the new list.
func take(oldConfigs []FilterConfig, used []bool, config FilterConfig) (int, bool) {
	for i, existing := range oldConfigs {
		if !used[i] && existing.Equal(config) {
			used[i] = true
			return i, true
		}
	}
	return 0, false
}
