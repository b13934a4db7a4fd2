package filter

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/rss-funnel/app/cache"
	"github.com/lysyi3m/rss-funnel/app/feed"
)

const (
	feedCacheSize = 5
	feedCacheTTL  = 12 * time.Hour
	postCacheSize = 40
	postCacheTTL  = time.Hour
)

// FilterCache is the two-level cache wrapped around one pipeline step.
// The feed cache keys on the normalized input feed; the post cache
// keys on each normalized input post. Only FeedAndPost filters use the
// post cache.
type FilterCache struct {
	feedCache *cache.TimedLRU[string, *feed.Feed]
	postCache *cache.TimedLRU[string, *feed.Post]
}

func NewFilterCache() *FilterCache {
	return &FilterCache{
		feedCache: cache.NewTimedLRU[string, *feed.Feed](feedCacheSize, feedCacheTTL),
		postCache: cache.NewTimedLRU[string, *feed.Post](postCacheSize, postCacheTTL),
	}
}

type runFunc func(ctx context.Context, f *feed.Feed) (*feed.Feed, error)

// Run applies fn to the input feed, serving the whole result or
// individual posts from cache when possible. Cached entries are cloned
// on the way in and out so callers and the cache never share mutable
// state.
func (c *FilterCache) Run(ctx context.Context, inputFeed *feed.Feed, granularity Granularity, fn runFunc) (*feed.Feed, error) {
	inputNorm := inputFeed.Normalize()

	if cached, ok := c.feedCache.Get(inputNorm.Key()); ok {
		return cached.Clone(), nil
	}

	var uncachedInput *feed.Feed
	var slots []*feed.Post
	if granularity == FeedAndPost {
		uncachedInput, slots = c.splitByPostCache(inputFeed.Clone(), inputNorm)
	} else {
		uncachedInput = inputFeed.Clone()
	}

	outputFeed, err := fn(ctx, uncachedInput.Clone())
	if err != nil {
		return nil, err
	}

	if granularity == FeedAndPost {
		c.registerPostCache(uncachedInput, outputFeed.Clone())
		outputFeed = reassembleFeed(outputFeed, slots)
	}

	c.feedCache.Insert(inputNorm.Key(), outputFeed.Clone())

	return outputFeed, nil
}

// splitByPostCache separates cached posts (returned as filled slots)
// from posts that still need processing (kept in the returned feed).
// Slot order mirrors the input post order; nil slots await output
// posts.
func (c *FilterCache) splitByPostCache(inputFeed *feed.Feed, inputNorm feed.NormalizedFeed) (*feed.Feed, []*feed.Post) {
	allPosts := inputFeed.TakePosts()
	slots := make([]*feed.Post, 0, len(allPosts))
	var uncachedPosts []*feed.Post

	for i, post := range allPosts {
		if i >= len(inputNorm.Posts) {
			break
		}
		if cached, ok := c.postCache.Get(inputNorm.Posts[i].Key()); ok {
			slots = append(slots, cached.Clone())
		} else {
			slots = append(slots, nil)
			uncachedPosts = append(uncachedPosts, post)
		}
	}

	inputFeed.SetPosts(uncachedPosts)
	return inputFeed, slots
}

// reassembleFeed walks the slots, filling each nil with the next
// output post in order; surplus output posts are appended at the end.
// This preserves original order for cache hits while tolerating
// filters that emit additional posts.
func reassembleFeed(outputFeed *feed.Feed, slots []*feed.Post) *feed.Feed {
	outputPosts := outputFeed.TakePosts()

	next := 0
	finalPosts := make([]*feed.Post, 0, len(slots)+len(outputPosts))
	for _, slot := range slots {
		if slot == nil {
			if next < len(outputPosts) {
				finalPosts = append(finalPosts, outputPosts[next])
				next++
			}
			continue
		}
		finalPosts = append(finalPosts, slot)
	}
	finalPosts = append(finalPosts, outputPosts[next:]...)

	outputFeed.SetPosts(finalPosts)
	return outputFeed
}

// registerPostCache re-keys each output post by the corresponding
// uncached input post's normalized form.
func (c *FilterCache) registerPostCache(inputFeed, outputFeed *feed.Feed) {
	inputPosts := inputFeed.TakePosts()
	outputPosts := outputFeed.TakePosts()

	if len(inputPosts) != len(outputPosts) {
		slog.Warn("input and output post counts do not match",
			"input", len(inputPosts), "output", len(outputPosts))
	}

	for i := 0; i < len(inputPosts) && i < len(outputPosts); i++ {
		c.postCache.Insert(inputPosts[i].Normalize().Key(), outputPosts[i])
	}
}
