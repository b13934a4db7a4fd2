package feed

import (
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

// Post holds exactly one of an RSS item or an Atom entry, matching the
// format of the enclosing feed.
type Post struct {
	RSS  *rss.Item
	Atom *atom.Entry
}

func (p *Post) Format() Format {
	if p.Atom != nil {
		return FormatAtom
	}
	return FormatRSS
}

func (p *Post) Title() string {
	if p.Atom != nil {
		return p.Atom.Title
	}
	return p.RSS.Title
}

func (p *Post) SetTitle(title string) {
	if p.Atom != nil {
		p.Atom.Title = title
		return
	}
	p.RSS.Title = title
}

// Link returns the post link (first link for Atom), or "".
func (p *Post) Link() string {
	if p.Atom != nil {
		if len(p.Atom.Links) > 0 {
			return p.Atom.Links[0].Href
		}
		return ""
	}
	return p.RSS.Link
}

func (p *Post) SetLink(link string) {
	if p.Atom != nil {
		if len(p.Atom.Links) > 0 {
			p.Atom.Links[0].Href = link
			return
		}
		p.Atom.Links = append(p.Atom.Links, &atom.Link{Href: link})
		return
	}
	p.RSS.Link = link
}

func (p *Post) Author() string {
	if p.Atom != nil {
		if len(p.Atom.Authors) > 0 {
			return p.Atom.Authors[0].Name
		}
		return ""
	}
	return p.RSS.Author
}

func (p *Post) SetAuthor(author string) {
	if p.Atom != nil {
		if len(p.Atom.Authors) > 0 {
			p.Atom.Authors[0].Name = author
			return
		}
		p.Atom.Authors = append(p.Atom.Authors, &atom.Person{Name: author})
		return
	}
	p.RSS.Author = author
}

// Guid returns the RSS guid value or the Atom entry id.
func (p *Post) Guid() string {
	if p.Atom != nil {
		return p.Atom.ID
	}
	if p.RSS.GUID != nil {
		return p.RSS.GUID.Value
	}
	return ""
}

func (p *Post) SetGuid(guid string) {
	if p.Atom != nil {
		p.Atom.ID = guid
		return
	}
	if p.RSS.GUID != nil {
		p.RSS.GUID.Value = guid
		return
	}
	p.RSS.GUID = &rss.GUID{Value: guid}
}

// PubDate returns the post's publication instant: pubDate for RSS,
// updated for Atom. Nil when absent or unparseable.
func (p *Post) PubDate() *time.Time {
	if p.Atom != nil {
		return entryUpdated(p.Atom)
	}
	return itemPubDate(p.RSS)
}

func (p *Post) SetPubDate(t time.Time) {
	if p.Atom != nil {
		p.Atom.Updated = FormatAtomDate(t)
		parsed := t
		p.Atom.UpdatedParsed = &parsed
		return
	}
	p.RSS.PubDate = FormatRSSDate(t)
	parsed := t
	p.RSS.PubDateParsed = &parsed
}

// bodyPtrs returns pointers to the post's body fields in display
// order: content first, then description/summary, then any
// media:description extension values. The order matters for callers
// that only touch the first body.
func (p *Post) bodyPtrs() []*string {
	var bodies []*string
	if p.Atom != nil {
		if p.Atom.Content != nil && p.Atom.Content.Value != "" {
			bodies = append(bodies, &p.Atom.Content.Value)
		}
		if p.Atom.Summary != "" {
			bodies = append(bodies, &p.Atom.Summary)
		}
		bodies = append(bodies, extensionValuePtrs(p.Atom.Extensions, "media", "description")...)
		return bodies
	}
	if p.RSS.Content != "" {
		bodies = append(bodies, &p.RSS.Content)
	}
	if p.RSS.Description != "" {
		bodies = append(bodies, &p.RSS.Description)
	}
	bodies = append(bodies, extensionValuePtrs(p.RSS.Extensions, "media", "description")...)
	return bodies
}

// Bodies returns copies of all body fields in display order.
func (p *Post) Bodies() []string {
	ptrs := p.bodyPtrs()
	bodies := make([]string, 0, len(ptrs))
	for _, ptr := range ptrs {
		bodies = append(bodies, *ptr)
	}
	return bodies
}

// FirstBody returns the body most likely to affect the rendered
// appearance, or "".
func (p *Post) FirstBody() string {
	if ptrs := p.bodyPtrs(); len(ptrs) > 0 {
		return *ptrs[0]
	}
	return ""
}

// ModifyBodies applies f to every body field in place.
func (p *Post) ModifyBodies(f func(string) string) {
	for _, ptr := range p.bodyPtrs() {
		*ptr = f(*ptr)
	}
}

func (p *Post) createBody() *string {
	if p.Atom != nil {
		return &p.Atom.Summary
	}
	return &p.RSS.Description
}

func (p *Post) ensureBody() *string {
	if ptrs := p.bodyPtrs(); len(ptrs) > 0 {
		return ptrs[0]
	}
	return p.createBody()
}

// SetBody replaces the first body, creating a description (RSS) or
// summary (Atom) when the post has none.
func (p *Post) SetBody(body string) {
	*p.ensureBody() = body
}

// AppendBody appends to the first body, creating one when absent.
func (p *Post) AppendBody(body string) {
	ptr := p.ensureBody()
	*ptr += body
}

// PrependBody prepends to the first body, creating one when absent.
func (p *Post) PrependBody(body string) {
	ptr := p.ensureBody()
	*ptr = body + *ptr
}

func (p *Post) Categories() []string {
	var categories []string
	if p.Atom != nil {
		for _, category := range p.Atom.Categories {
			categories = append(categories, category.Term)
		}
		return categories
	}
	for _, category := range p.RSS.Categories {
		categories = append(categories, category.Value)
	}
	return categories
}
