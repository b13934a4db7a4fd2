package filter

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/client"
	"github.com/lysyi3m/rss-funnel/app/feed"
)

// limitFilter keeps either the first N posts or only the posts
// published within the given duration.
type limitFilter struct {
	count    int
	duration time.Duration
	byCount  bool
}

func buildLimit(node *yaml.Node) (Filter, error) {
	var count int
	if err := decodeNode(node, &count); err == nil && node != nil {
		if count < 0 {
			return nil, fmt.Errorf("limit count must not be negative")
		}
		return &limitFilter{count: count, byCount: true}, nil
	}

	var raw string
	if err := decodeNode(node, &raw); err != nil {
		return nil, fmt.Errorf("limit expects a count or a duration: %w", err)
	}
	d, err := client.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid limit duration %q: %w", raw, err)
	}
	return &limitFilter{duration: d}, nil
}

func (f *limitFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()

	if f.byCount {
		if len(posts) > f.count {
			posts = posts[:f.count]
		}
		fd.SetPosts(posts)
		return fd, nil
	}

	cutoff := time.Now().Add(-f.duration)
	kept := posts[:0]
	for _, post := range posts {
		if t := post.PubDate(); t != nil && !t.Before(cutoff) {
			kept = append(kept, post)
		}
	}
	fd.SetPosts(kept)
	return fd, nil
}

func (f *limitFilter) CacheGranularity() Granularity { return FeedOnly }
