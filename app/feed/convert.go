package feed

import (
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

// dateOf prefers the pre-parsed timestamp, falling back to parsing the
// raw string.
func dateOf(parsed *time.Time, raw string) *time.Time {
	if parsed != nil {
		return parsed
	}
	if t, err := ParseDate(raw); err == nil {
		return &t
	}
	return nil
}

// IntoFormat converts the feed to the requested format. Converting to
// the feed's current format returns the feed unchanged; otherwise a new
// feed is built and the original is left intact. The conversion is
// lossy in both directions: fields the target format cannot carry are
// dropped.
func (f *Feed) IntoFormat(format Format) *Feed {
	if f.Format() == format {
		return f
	}
	if format == FormatAtom {
		return NewAtom(rssToAtom(f.RSS))
	}
	return NewRSS(atomToRSS(f.Atom))
}

func rssToAtom(channel *rss.Feed) *atom.Feed {
	out := &atom.Feed{
		Title:    channel.Title,
		ID:       channel.Link,
		Subtitle: channel.Description,
		Language: channel.Language,
		Rights:   channel.Copyright,
		Version:  "1.0",
	}

	// updated: last build date if available, publication date otherwise
	updated := dateOf(channel.LastBuildDateParsed, channel.LastBuildDate)
	if updated == nil {
		updated = dateOf(channel.PubDateParsed, channel.PubDate)
	}
	if updated != nil {
		out.Updated = FormatAtomDate(*updated)
		out.UpdatedParsed = updated
	}

	if channel.ManagingEditor != "" {
		out.Authors = append(out.Authors, &atom.Person{Name: channel.ManagingEditor})
	}
	if channel.Link != "" {
		out.Links = append(out.Links, &atom.Link{Href: channel.Link})
	}
	for _, category := range channel.Categories {
		out.Categories = append(out.Categories, &atom.Category{Term: category.Value})
	}
	if channel.Generator != "" {
		out.Generator = &atom.Generator{Value: channel.Generator}
	}
	if channel.Image != nil {
		out.Icon = channel.Image.URL
		out.Logo = channel.Image.URL
	}

	out.Extensions = cloneExtensions(channel.Extensions)

	for _, item := range channel.Items {
		out.Entries = append(out.Entries, rssItemToAtomEntry(item))
	}
	return out
}

func rssItemToAtomEntry(item *rss.Item) *atom.Entry {
	entry := &atom.Entry{
		Title:   item.Title,
		Summary: item.Description,
	}

	if item.GUID != nil && item.GUID.Value != "" {
		entry.ID = item.GUID.Value
	} else {
		entry.ID = item.Link
	}

	if t := dateOf(item.PubDateParsed, item.PubDate); t != nil {
		entry.Updated = FormatAtomDate(*t)
		entry.UpdatedParsed = t
		entry.Published = FormatAtomDate(*t)
		entry.PublishedParsed = t
	}

	if item.Author != "" {
		entry.Authors = append(entry.Authors, &atom.Person{Name: item.Author})
	}
	for _, category := range item.Categories {
		entry.Categories = append(entry.Categories, &atom.Category{Term: category.Value})
	}
	if item.Link != "" {
		entry.Links = append(entry.Links, &atom.Link{Href: item.Link})
	}
	if item.Content != "" {
		entry.Content = &atom.Content{Value: item.Content}
	}

	entry.Extensions = cloneExtensions(item.Extensions)

	return entry
}

func atomToRSS(f *atom.Feed) *rss.Feed {
	out := &rss.Feed{
		Title:       f.Title,
		Description: f.Subtitle,
		Language:    f.Language,
		Version:     "2.0",
	}

	if len(f.Links) > 0 {
		out.Link = f.Links[0].Href
	}
	if t := dateOf(f.UpdatedParsed, f.Updated); t != nil {
		out.LastBuildDate = FormatRSSDate(*t)
		out.LastBuildDateParsed = t
	}
	if f.Generator != nil {
		out.Generator = f.Generator.Value
	}
	if len(f.Authors) > 0 {
		out.ManagingEditor = f.Authors[0].Name
	}
	for _, category := range f.Categories {
		out.Categories = append(out.Categories, &rss.Category{Value: category.Term})
	}

	out.Extensions = cloneExtensions(f.Extensions)

	for _, entry := range f.Entries {
		out.Items = append(out.Items, atomEntryToRSSItem(entry))
	}
	return out
}

func atomEntryToRSSItem(entry *atom.Entry) *rss.Item {
	item := &rss.Item{
		Title:       entry.Title,
		Description: entry.Summary,
		GUID:        &rss.GUID{Value: entry.ID, IsPermalink: "false"},
	}

	if len(entry.Links) > 0 {
		item.Link = entry.Links[0].Href
	}
	if len(entry.Authors) > 0 {
		item.Author = entry.Authors[0].Name
	}
	if t := dateOf(entry.PublishedParsed, entry.Published); t != nil {
		item.PubDate = FormatRSSDate(*t)
		item.PubDateParsed = t
	}
	if entry.Content != nil && entry.Content.Value != "" {
		item.Content = entry.Content.Value
	}
	for _, category := range entry.Categories {
		item.Categories = append(item.Categories, &rss.Category{Value: category.Term})
	}

	item.Extensions = cloneExtensions(entry.Extensions)

	return item
}
