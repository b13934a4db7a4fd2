package filter

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

// noteFilter has no effect on the feed. It lets a config annotate a
// pipeline with a human-readable remark.
type noteFilter struct{}

func buildNote(node *yaml.Node) (Filter, error) {
	var note string
	if err := decodeNode(node, &note); err != nil {
		return nil, fmt.Errorf("note must be a string: %w", err)
	}
	return &noteFilter{}, nil
}

func (f *noteFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	return fd, nil
}

func (f *noteFilter) CacheGranularity() Granularity { return FeedOnly }
