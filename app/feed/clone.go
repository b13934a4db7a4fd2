package feed

import (
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

// Clone returns a deep copy of the feed. Cached feeds are cloned on
// the way in and out so callers can mutate freely.
func (f *Feed) Clone() *Feed {
	if f.Atom != nil {
		return NewAtom(cloneAtomFeed(f.Atom))
	}
	return NewRSS(cloneRSSFeed(f.RSS))
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	if p.Atom != nil {
		return &Post{Atom: cloneAtomEntry(p.Atom)}
	}
	return &Post{RSS: cloneRSSItem(p.RSS)}
}

func cloneRSSFeed(in *rss.Feed) *rss.Feed {
	out := *in

	out.Items = make([]*rss.Item, len(in.Items))
	for i, item := range in.Items {
		out.Items[i] = cloneRSSItem(item)
	}
	out.Categories = cloneRSSCategories(in.Categories)
	if in.Image != nil {
		image := *in.Image
		out.Image = &image
	}
	out.PubDateParsed = cloneTime(in.PubDateParsed)
	out.LastBuildDateParsed = cloneTime(in.LastBuildDateParsed)
	out.Extensions = cloneExtensions(in.Extensions)

	return &out
}

func cloneRSSItem(in *rss.Item) *rss.Item {
	out := *in

	out.Categories = cloneRSSCategories(in.Categories)
	if in.GUID != nil {
		guid := *in.GUID
		out.GUID = &guid
	}
	if in.Enclosure != nil {
		enclosure := *in.Enclosure
		out.Enclosure = &enclosure
	}
	out.PubDateParsed = cloneTime(in.PubDateParsed)
	out.Extensions = cloneExtensions(in.Extensions)
	if in.Custom != nil {
		out.Custom = make(map[string]string, len(in.Custom))
		for k, v := range in.Custom {
			out.Custom[k] = v
		}
	}

	return &out
}

func cloneAtomFeed(in *atom.Feed) *atom.Feed {
	out := *in

	out.Entries = make([]*atom.Entry, len(in.Entries))
	for i, entry := range in.Entries {
		out.Entries[i] = cloneAtomEntry(entry)
	}
	out.Links = cloneAtomLinks(in.Links)
	out.Authors = cloneAtomPersons(in.Authors)
	out.Contributors = cloneAtomPersons(in.Contributors)
	out.Categories = cloneAtomCategories(in.Categories)
	if in.Generator != nil {
		generator := *in.Generator
		out.Generator = &generator
	}
	out.UpdatedParsed = cloneTime(in.UpdatedParsed)
	out.Extensions = cloneExtensions(in.Extensions)

	return &out
}

func cloneAtomEntry(in *atom.Entry) *atom.Entry {
	out := *in

	out.Links = cloneAtomLinks(in.Links)
	out.Authors = cloneAtomPersons(in.Authors)
	out.Contributors = cloneAtomPersons(in.Contributors)
	out.Categories = cloneAtomCategories(in.Categories)
	if in.Content != nil {
		content := *in.Content
		out.Content = &content
	}
	out.UpdatedParsed = cloneTime(in.UpdatedParsed)
	out.PublishedParsed = cloneTime(in.PublishedParsed)
	out.Extensions = cloneExtensions(in.Extensions)

	return &out
}

func cloneRSSCategories(in []*rss.Category) []*rss.Category {
	if in == nil {
		return nil
	}
	out := make([]*rss.Category, len(in))
	for i, category := range in {
		c := *category
		out[i] = &c
	}
	return out
}

func cloneAtomCategories(in []*atom.Category) []*atom.Category {
	if in == nil {
		return nil
	}
	out := make([]*atom.Category, len(in))
	for i, category := range in {
		c := *category
		out[i] = &c
	}
	return out
}

func cloneAtomLinks(in []*atom.Link) []*atom.Link {
	if in == nil {
		return nil
	}
	out := make([]*atom.Link, len(in))
	for i, link := range in {
		l := *link
		out[i] = &l
	}
	return out
}

func cloneAtomPersons(in []*atom.Person) []*atom.Person {
	if in == nil {
		return nil
	}
	out := make([]*atom.Person, len(in))
	for i, person := range in {
		p := *person
		out[i] = &p
	}
	return out
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	t := *in
	return &t
}
