package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
	"github.com/lysyi3m/rss-funnel/app/jsrt"
)

// modifyPostsCode wraps the user's modify_post function: each post
// runs in isolation, a thrown exception keeps the original post.
const modifyPostsCode = `
function modify_posts(feed) {
  const posts = feed.items || feed.entries || [];
  return posts.map(function(post) {
    try {
      return modify_post(feed, post);
    } catch (e) {
      console.error(String(e));
      return post;
    }
  });
}
`

// jsFilter runs user script against a JSON projection of the feed. A
// global modify_feed(feed) rewrites the whole feed; a global
// modify_post(feed, post) rewrites each post, returning null to delete
// it.
type jsFilter struct {
	runtime     *jsrt.Runtime
	granularity Granularity
}

func buildJs(node *yaml.Node) (Filter, error) {
	var code string
	if err := decodeNode(node, &code); err != nil {
		return nil, fmt.Errorf("js expects a code string: %w", err)
	}
	return newJsFilter(code, FeedOnly)
}

func buildModifyPost(node *yaml.Node) (Filter, error) {
	var code string
	if err := decodeNode(node, &code); err != nil {
		return nil, fmt.Errorf("modify_post expects a code string: %w", err)
	}
	wrapped := fmt.Sprintf("function modify_post(feed, post) { (function(){ %s })(); return post; }", code)
	return newJsFilter(wrapped, FeedAndPost)
}

func buildModifyFeed(node *yaml.Node) (Filter, error) {
	var code string
	if err := decodeNode(node, &code); err != nil {
		return nil, fmt.Errorf("modify_feed expects a code string: %w", err)
	}
	wrapped := fmt.Sprintf("function modify_feed(feed) { (function(){ %s })(); return feed; }", code)
	return newJsFilter(wrapped, FeedOnly)
}

func newJsFilter(code string, granularity Granularity) (*jsFilter, error) {
	runtime := jsrt.New()
	if err := runtime.Eval(code); err != nil {
		return nil, err
	}
	if err := runtime.Eval(modifyPostsCode); err != nil {
		return nil, err
	}
	return &jsFilter{runtime: runtime, granularity: granularity}, nil
}

func (f *jsFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	fd, err := f.modifyFeed(fd)
	if err != nil {
		return nil, err
	}
	return f.modifyPosts(fd)
}

func (f *jsFilter) CacheGranularity() Granularity { return f.granularity }

func (f *jsFilter) modifyFeed(fd *feed.Feed) (*feed.Feed, error) {
	if !f.runtime.HasFunction("modify_feed") {
		return fd, nil
	}

	projected, err := projectFeed(fd)
	if err != nil {
		return nil, err
	}
	result, err := f.runtime.Call("modify_feed", projected)
	if err != nil {
		return nil, err
	}
	if result.IsUndefined() {
		return nil, fmt.Errorf("modify_feed must return the modified feed")
	}

	return unprojectFeed(fd.Format(), result.Export())
}

func (f *jsFilter) modifyPosts(fd *feed.Feed) (*feed.Feed, error) {
	if !f.runtime.HasFunction("modify_post") {
		return fd, nil
	}

	projected, err := projectFeed(fd)
	if err != nil {
		return nil, err
	}
	result, err := f.runtime.Call("modify_posts", projected)
	if err != nil {
		return nil, err
	}

	var posts []*feed.Post
	switch {
	case result.IsNull():
	case result.IsUndefined():
		return nil, fmt.Errorf("modify_post must return the modified post or null")
	default:
		elements, ok := result.Elements()
		if !ok {
			return nil, fmt.Errorf("modify_posts returned a non-array value")
		}
		for _, element := range elements {
			if element.IsNull() {
				continue
			}
			if element.IsUndefined() {
				return nil, fmt.Errorf("modify_post must return the modified post or null")
			}
			post, err := unprojectPost(fd.Format(), element.Export())
			if err != nil {
				return nil, err
			}
			posts = append(posts, post)
		}
	}

	fd.SetPosts(posts)
	return fd, nil
}

// projectFeed converts the feed into plain maps and slices for the
// script runtime. RSS posts appear under "items", Atom posts under
// "entries".
func projectFeed(fd *feed.Feed) (interface{}, error) {
	var native interface{} = fd.RSS
	if fd.Atom != nil {
		native = fd.Atom
	}

	raw, err := json.Marshal(native)
	if err != nil {
		return nil, fmt.Errorf("failed projecting feed: %w", err)
	}
	var projected interface{}
	if err := json.Unmarshal(raw, &projected); err != nil {
		return nil, fmt.Errorf("failed projecting feed: %w", err)
	}
	return projected, nil
}

func unprojectFeed(format feed.Format, value interface{}) (*feed.Feed, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed reading feed back from script: %w", err)
	}

	if format == feed.FormatAtom {
		var parsed atom.Feed
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("failed reading feed back from script: %w", err)
		}
		return feed.NewAtom(&parsed), nil
	}
	var parsed rss.Feed
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed reading feed back from script: %w", err)
	}
	return feed.NewRSS(&parsed), nil
}

func unprojectPost(format feed.Format, value interface{}) (*feed.Post, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed reading post back from script: %w", err)
	}

	if format == feed.FormatAtom {
		var parsed atom.Entry
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("failed reading post back from script: %w", err)
		}
		return &feed.Post{Atom: &parsed}, nil
	}
	var parsed rss.Item
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed reading post back from script: %w", err)
	}
	return &feed.Post{RSS: &parsed}, nil
}
