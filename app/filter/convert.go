package filter

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

// convertToFilter converts the feed to the given syndication format.
type convertToFilter struct {
	format feed.Format
}

func buildConvertTo(node *yaml.Node) (Filter, error) {
	var format string
	if err := decodeNode(node, &format); err != nil {
		return nil, fmt.Errorf("convert_to expects a format string: %w", err)
	}
	switch feed.Format(format) {
	case feed.FormatRSS, feed.FormatAtom:
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
	return &convertToFilter{format: feed.Format(format)}, nil
}

func (f *convertToFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	return fd.IntoFormat(f.format), nil
}

func (f *convertToFilter) CacheGranularity() Granularity { return FeedOnly }
