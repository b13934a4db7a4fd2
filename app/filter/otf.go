package filter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

// ParseOnTheFlyQuery extracts the filter declarations from a raw query
// string, in order. A parameter is a filter declaration when its name
// is a known filter kind.
func ParseOnTheFlyQuery(rawQuery string) []string {
	var params []string
	for _, param := range strings.Split(rawQuery, "&") {
		if param == "" {
			continue
		}
		name := param
		if idx := strings.Index(param, "="); idx >= 0 {
			name = param[:idx]
		}
		if IsKnownKind(name) {
			params = append(params, param)
		}
	}
	return params
}

// OnTheFly builds and runs an ephemeral pipeline from query-string
// filter declarations. The last built pipeline is kept, keyed by the
// declaration list, so repeated requests with the same query skip the
// rebuild.
type OnTheFly struct {
	mu       sync.Mutex
	key      string
	pipeline *Pipeline
}

// Run applies the query's filters to the feed. A query without filter
// declarations is a no-op.
func (o *OnTheFly) Run(ctx context.Context, fctx *FilterContext, rawQuery string, f *feed.Feed) (*feed.Feed, error) {
	params := ParseOnTheFlyQuery(rawQuery)
	if len(params) == 0 {
		return f, nil
	}

	pipeline, err := o.pipelineFor(params)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx, fctx, f)
}

func (o *OnTheFly) pipelineFor(params []string) (*Pipeline, error) {
	key := strings.Join(params, "&")

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeline != nil && o.key == key {
		return o.pipeline, nil
	}

	var configs []FilterConfig
	for _, param := range params {
		config, err := parseOnTheFlyParam(param)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}

	pipeline, err := NewPipeline(configs)
	if err != nil {
		return nil, err
	}

	o.key = key
	o.pipeline = pipeline
	return pipeline, nil
}

// parseOnTheFlyParam turns a single query parameter into a filter
// config. "name" and "name=" mean an empty options mapping; otherwise
// the URL-decoded value is tried as a number first, then as a string.
func parseOnTheFlyParam(param string) (FilterConfig, error) {
	if !strings.Contains(param, "=") || strings.HasSuffix(param, "=") {
		name := strings.TrimSuffix(param, "=")
		return ParseConfigValue(name, map[string]interface{}{})
	}

	name, rawValue, _ := strings.Cut(param, "=")
	value, err := url.QueryUnescape(rawValue)
	if err != nil {
		return FilterConfig{}, fmt.Errorf("invalid url encoding in on-the-fly param %q", param)
	}

	if num, err := strconv.ParseInt(value, 10, 64); err == nil {
		if config, err := ParseConfigValue(name, num); err == nil {
			if _, err := config.Build(); err == nil {
				return config, nil
			}
		}
	}

	return ParseConfigValue(name, value)
}
