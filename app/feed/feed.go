// Package feed implements the feed model: a tagged variant over RSS 2.0
// channels and Atom 1.0 feeds, parsing and serialization, RSS<->Atom
// conversion and the normalized projections used as cache keys.
package feed

import (
	"fmt"
	"sort"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

type Format string

const (
	FormatRSS  Format = "rss"
	FormatAtom Format = "atom"
)

// Feed holds exactly one of the two representations. Filters operate on
// whichever variant is present and preserve it unless a convert filter
// changes the format explicitly.
type Feed struct {
	RSS  *rss.Feed
	Atom *atom.Feed
}

func NewRSS(channel *rss.Feed) *Feed {
	return &Feed{RSS: channel}
}

func NewAtom(f *atom.Feed) *Feed {
	return &Feed{Atom: f}
}

// NewFromScratch builds an empty feed of the given format with only the
// channel-level fields set.
func NewFromScratch(format Format, title, link, description string) *Feed {
	switch format {
	case FormatAtom:
		f := &atom.Feed{Title: title}
		if link != "" {
			f.Links = append(f.Links, &atom.Link{Href: link})
		}
		f.Subtitle = description
		return NewAtom(f)
	default:
		return NewRSS(&rss.Feed{
			Title:       title,
			Link:        link,
			Description: description,
		})
	}
}

func (f *Feed) Format() Format {
	if f.Atom != nil {
		return FormatAtom
	}
	return FormatRSS
}

func (f *Feed) ContentType() string {
	if f.Atom != nil {
		return "application/atom+xml"
	}
	return "application/rss+xml"
}

func (f *Feed) Title() string {
	if f.Atom != nil {
		return f.Atom.Title
	}
	return f.RSS.Title
}

func (f *Feed) SetTitle(title string) {
	if f.Atom != nil {
		f.Atom.Title = title
		return
	}
	f.RSS.Title = title
}

// Link returns the channel link (first link for Atom).
func (f *Feed) Link() string {
	if f.Atom != nil {
		if len(f.Atom.Links) > 0 {
			return f.Atom.Links[0].Href
		}
		return ""
	}
	return f.RSS.Link
}

func (f *Feed) Description() string {
	if f.Atom != nil {
		return f.Atom.Subtitle
	}
	return f.RSS.Description
}

func (f *Feed) PostCount() int {
	if f.Atom != nil {
		return len(f.Atom.Entries)
	}
	return len(f.RSS.Items)
}

// TakePosts removes all posts from the feed and returns them. The
// caller is expected to hand a (possibly different) post list back via
// SetPosts.
func (f *Feed) TakePosts() []*Post {
	var posts []*Post
	if f.Atom != nil {
		for _, entry := range f.Atom.Entries {
			posts = append(posts, &Post{Atom: entry})
		}
		f.Atom.Entries = nil
		return posts
	}
	for _, item := range f.RSS.Items {
		posts = append(posts, &Post{RSS: item})
	}
	f.RSS.Items = nil
	return posts
}

// SetPosts replaces the feed's posts. Posts of the other format are
// silently dropped.
func (f *Feed) SetPosts(posts []*Post) {
	if f.Atom != nil {
		f.Atom.Entries = nil
		for _, post := range posts {
			if post.Atom != nil {
				f.Atom.Entries = append(f.Atom.Entries, post.Atom)
			}
		}
		return
	}
	f.RSS.Items = nil
	for _, post := range posts {
		if post.RSS != nil {
			f.RSS.Items = append(f.RSS.Items, post.RSS)
		}
	}
}

func (f *Feed) Posts() []*Post {
	var posts []*Post
	if f.Atom != nil {
		for _, entry := range f.Atom.Entries {
			posts = append(posts, &Post{Atom: entry})
		}
		return posts
	}
	for _, item := range f.RSS.Items {
		posts = append(posts, &Post{RSS: item})
	}
	return posts
}

// Merge appends the posts of other into f. Both feeds must be of the
// same format; convert first if necessary.
func (f *Feed) Merge(other *Feed) error {
	switch {
	case f.RSS != nil && other.RSS != nil:
		f.RSS.Items = append(f.RSS.Items, other.RSS.Items...)
	case f.Atom != nil && other.Atom != nil:
		f.Atom.Entries = append(f.Atom.Entries, other.Atom.Entries...)
	case f.RSS != nil:
		return fmt.Errorf("cannot merge atom into rss")
	default:
		return fmt.Errorf("cannot merge rss into atom")
	}
	return nil
}

// Reorder sorts the posts so that the newest come first. Posts without
// a date sort last.
func (f *Feed) Reorder() {
	if f.Atom != nil {
		sort.SliceStable(f.Atom.Entries, func(i, j int) bool {
			return entryTimestamp(f.Atom.Entries[i]) > entryTimestamp(f.Atom.Entries[j])
		})
		return
	}
	sort.SliceStable(f.RSS.Items, func(i, j int) bool {
		return itemTimestamp(f.RSS.Items[i]) > itemTimestamp(f.RSS.Items[j])
	})
}

func itemTimestamp(item *rss.Item) int64 {
	if t := itemPubDate(item); t != nil {
		return t.Unix()
	}
	return minTimestamp
}

func entryTimestamp(entry *atom.Entry) int64 {
	if t := entryUpdated(entry); t != nil {
		return t.Unix()
	}
	return minTimestamp
}

const minTimestamp = -(1 << 62)

func itemPubDate(item *rss.Item) *time.Time {
	if item.PubDateParsed != nil {
		return item.PubDateParsed
	}
	if t, err := ParseDate(item.PubDate); err == nil {
		return &t
	}
	return nil
}

func entryUpdated(entry *atom.Entry) *time.Time {
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed
	}
	if t, err := ParseDate(entry.Updated); err == nil {
		return &t
	}
	return nil
}
