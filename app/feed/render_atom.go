package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
)

func renderAtom(f *atom.Feed) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom"`)

	prefixes := usedExtensionPrefixes(f.Extensions, atomEntryExtensions(f.Entries))
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		if prefix == "atom" {
			continue
		}
		buf.WriteString(fmt.Sprintf(` xmlns:%s="%s"`, prefix, extensionNamespaces[prefix]))
	}
	if f.Language != "" {
		buf.WriteString(fmt.Sprintf(` xml:lang="%s"`, escapeAttr(f.Language)))
	}
	buf.WriteString(">\n")

	writeElement(&buf, "title", f.Title, 2)
	writeElement(&buf, "id", f.ID, 2)
	writeElement(&buf, "updated", f.Updated, 2)
	writeElement(&buf, "subtitle", f.Subtitle, 2)
	writeElement(&buf, "rights", f.Rights, 2)
	writeElement(&buf, "icon", f.Icon, 2)
	writeElement(&buf, "logo", f.Logo, 2)

	for _, link := range f.Links {
		writeAtomLink(&buf, link, 2)
	}
	for _, person := range f.Authors {
		writeAtomPerson(&buf, "author", person, 2)
	}
	for _, person := range f.Contributors {
		writeAtomPerson(&buf, "contributor", person, 2)
	}
	for _, category := range f.Categories {
		writeAtomCategory(&buf, category, 2)
	}

	if f.Generator != nil && f.Generator.Value != "" {
		buf.WriteString("  <generator")
		if f.Generator.URI != "" {
			buf.WriteString(fmt.Sprintf(" uri=\"%s\"", escapeAttr(f.Generator.URI)))
		}
		if f.Generator.Version != "" {
			buf.WriteString(fmt.Sprintf(" version=\"%s\"", escapeAttr(f.Generator.Version)))
		}
		buf.WriteString(">")
		xml.EscapeText(&buf, []byte(f.Generator.Value))
		buf.WriteString("</generator>\n")
	}

	writeExtensions(&buf, f.Extensions, 2)

	for _, entry := range f.Entries {
		writeAtomEntry(&buf, entry)
	}

	buf.WriteString("</feed>")

	return buf.String()
}

func writeAtomEntry(buf *bytes.Buffer, entry *atom.Entry) {
	buf.WriteString("  <entry>\n")

	writeElement(buf, "title", entry.Title, 4)
	writeElement(buf, "id", entry.ID, 4)
	writeElement(buf, "updated", entry.Updated, 4)
	writeElement(buf, "published", entry.Published, 4)

	for _, link := range entry.Links {
		writeAtomLink(buf, link, 4)
	}
	for _, person := range entry.Authors {
		writeAtomPerson(buf, "author", person, 4)
	}
	for _, person := range entry.Contributors {
		writeAtomPerson(buf, "contributor", person, 4)
	}
	for _, category := range entry.Categories {
		writeAtomCategory(buf, category, 4)
	}

	writeElement(buf, "summary", entry.Summary, 4)

	if entry.Content != nil && (entry.Content.Value != "" || entry.Content.Src != "") {
		buf.WriteString("    <content")
		if entry.Content.Type != "" {
			buf.WriteString(fmt.Sprintf(" type=\"%s\"", escapeAttr(entry.Content.Type)))
		}
		if entry.Content.Src != "" {
			buf.WriteString(fmt.Sprintf(" src=\"%s\"", escapeAttr(entry.Content.Src)))
		}
		if entry.Content.Value == "" {
			buf.WriteString(" />\n")
		} else {
			buf.WriteString(">")
			xml.EscapeText(buf, []byte(entry.Content.Value))
			buf.WriteString("</content>\n")
		}
	}

	writeElement(buf, "rights", entry.Rights, 4)

	writeExtensions(buf, entry.Extensions, 4)

	buf.WriteString("  </entry>\n")
}

func writeAtomLink(buf *bytes.Buffer, link *atom.Link, indent int) {
	if link == nil || link.Href == "" {
		return
	}
	writeIndent(buf, indent)
	buf.WriteString(fmt.Sprintf("<link href=\"%s\"", escapeAttr(link.Href)))
	if link.Rel != "" {
		buf.WriteString(fmt.Sprintf(" rel=\"%s\"", escapeAttr(link.Rel)))
	}
	if link.Type != "" {
		buf.WriteString(fmt.Sprintf(" type=\"%s\"", escapeAttr(link.Type)))
	}
	if link.Hreflang != "" {
		buf.WriteString(fmt.Sprintf(" hreflang=\"%s\"", escapeAttr(link.Hreflang)))
	}
	if link.Title != "" {
		buf.WriteString(fmt.Sprintf(" title=\"%s\"", escapeAttr(link.Title)))
	}
	buf.WriteString(" />\n")
}

func writeAtomPerson(buf *bytes.Buffer, tag string, person *atom.Person, indent int) {
	if person == nil || (person.Name == "" && person.Email == "" && person.URI == "") {
		return
	}
	writeIndent(buf, indent)
	buf.WriteString("<" + tag + ">\n")
	writeElement(buf, "name", person.Name, indent+2)
	writeElement(buf, "email", person.Email, indent+2)
	writeElement(buf, "uri", person.URI, indent+2)
	writeIndent(buf, indent)
	buf.WriteString("</" + tag + ">\n")
}

func writeAtomCategory(buf *bytes.Buffer, category *atom.Category, indent int) {
	if category == nil || category.Term == "" {
		return
	}
	writeIndent(buf, indent)
	buf.WriteString(fmt.Sprintf("<category term=\"%s\"", escapeAttr(category.Term)))
	if category.Scheme != "" {
		buf.WriteString(fmt.Sprintf(" scheme=\"%s\"", escapeAttr(category.Scheme)))
	}
	if category.Label != "" {
		buf.WriteString(fmt.Sprintf(" label=\"%s\"", escapeAttr(category.Label)))
	}
	buf.WriteString(" />\n")
}

func atomEntryExtensions(entries []*atom.Entry) []ext.Extensions {
	var all []ext.Extensions
	for _, entry := range entries {
		all = append(all, entry.Extensions)
	}
	return all
}
