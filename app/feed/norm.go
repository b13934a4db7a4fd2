package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizedPost is a lossy, deterministic projection of a post used
// as a cache key. Extensions and enclosures are deliberately ignored
// so semantically-equivalent inputs collide.
type NormalizedPost struct {
	Title  string
	Author string
	Link   string
	Body   string
	Date   string
}

// NormalizedFeed is the feed-level cache key projection.
type NormalizedFeed struct {
	Title       string
	Link        string
	Description string
	Posts       []NormalizedPost
}

// Key returns a stable digest of the projection, usable as an LRU key.
func (n NormalizedPost) Key() string {
	h := sha256.New()
	for _, field := range []string{n.Title, n.Author, n.Link, n.Body, n.Date} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Key returns a stable digest of the feed projection, covering the
// channel fields and every post's key.
func (n NormalizedFeed) Key() string {
	h := sha256.New()
	for _, field := range []string{n.Title, n.Link, n.Description} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	for _, post := range n.Posts {
		h.Write([]byte(post.Key()))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (p *Post) Normalize() NormalizedPost {
	n := NormalizedPost{
		Title:  strings.TrimSpace(p.Title()),
		Author: p.Author(),
		Link:   p.Link(),
		Body:   p.FirstBody(),
	}
	if t := p.PubDate(); t != nil {
		n.Date = FormatAtomDate(t.UTC())
	}
	return n
}

func (f *Feed) Normalize() NormalizedFeed {
	n := NormalizedFeed{
		Title:       strings.TrimSpace(f.Title()),
		Link:        f.Link(),
		Description: f.Description(),
	}
	for _, post := range f.Posts() {
		n.Posts = append(n.Posts, post.Normalize())
	}
	return n
}
