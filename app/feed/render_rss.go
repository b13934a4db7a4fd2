package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"
)

func renderRSS(channel *rss.Feed) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom"`)
	for _, prefix := range sortedExtraPrefixes(channel.Extensions, rssItemExtensions(channel.Items)) {
		buf.WriteString(fmt.Sprintf(` xmlns:%s="%s"`, prefix, extensionNamespaces[prefix]))
	}
	buf.WriteString(">\n  <channel>\n")

	writeElement(&buf, "title", channel.Title, 4)
	writeElement(&buf, "link", channel.Link, 4)
	writeElementAlways(&buf, "description", channel.Description, 4)
	writeElement(&buf, "language", channel.Language, 4)
	writeElement(&buf, "copyright", channel.Copyright, 4)
	writeElement(&buf, "managingEditor", channel.ManagingEditor, 4)
	writeElement(&buf, "webMaster", channel.WebMaster, 4)
	writeElement(&buf, "pubDate", channel.PubDate, 4)
	writeElement(&buf, "lastBuildDate", channel.LastBuildDate, 4)

	for _, category := range channel.Categories {
		if category.Domain != "" {
			buf.WriteString(fmt.Sprintf("    <category domain=\"%s\">", escapeAttr(category.Domain)))
			xml.EscapeText(&buf, []byte(category.Value))
			buf.WriteString("</category>\n")
		} else {
			writeElement(&buf, "category", category.Value, 4)
		}
	}

	writeElement(&buf, "generator", channel.Generator, 4)
	writeElement(&buf, "docs", channel.Docs, 4)
	writeElement(&buf, "ttl", channel.TTL, 4)

	if channel.Image != nil && channel.Image.URL != "" {
		buf.WriteString("    <image>\n")
		writeElement(&buf, "url", channel.Image.URL, 6)
		writeElement(&buf, "title", channel.Image.Title, 6)
		writeElement(&buf, "link", channel.Image.Link, 6)
		buf.WriteString("    </image>\n")
	}

	writeExtensions(&buf, channel.Extensions, 4)

	for _, item := range channel.Items {
		writeRSSItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func writeRSSItem(buf *bytes.Buffer, item *rss.Item) {
	buf.WriteString("    <item>\n")

	if item.GUID != nil && item.GUID.Value != "" {
		if item.GUID.IsPermalink != "" {
			buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%s\">", escapeAttr(item.GUID.IsPermalink)))
		} else {
			buf.WriteString("      <guid>")
		}
		xml.EscapeText(buf, []byte(item.GUID.Value))
		buf.WriteString("</guid>\n")
	}

	writeElement(buf, "title", item.Title, 6)
	writeElement(buf, "link", item.Link, 6)
	writeElement(buf, "description", item.Description, 6)

	if item.Content != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		// "]]>" inside the content would terminate the section early,
		// so the sequence is split across two sections.
		buf.WriteString(strings.ReplaceAll(item.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	writeElement(buf, "author", item.Author, 6)

	for _, category := range item.Categories {
		writeElement(buf, "category", category.Value, 6)
	}

	writeElement(buf, "comments", item.Comments, 6)

	if item.Enclosure != nil && item.Enclosure.URL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"%s\" type=\"%s\" />\n",
			escapeAttr(item.Enclosure.URL),
			escapeAttr(item.Enclosure.Length),
			escapeAttr(item.Enclosure.Type)))
	}

	writeElement(buf, "pubDate", item.PubDate, 6)

	writeExtensions(buf, item.Extensions, 6)

	buf.WriteString("    </item>\n")
}

func rssItemExtensions(items []*rss.Item) []ext.Extensions {
	var all []ext.Extensions
	for _, item := range items {
		all = append(all, item.Extensions)
	}
	return all
}

// sortedExtraPrefixes returns the known extension prefixes in use,
// minus content and atom which the header always declares.
func sortedExtraPrefixes(feedExts ext.Extensions, postExts []ext.Extensions) []string {
	var prefixes []string
	for _, prefix := range usedExtensionPrefixes(feedExts, postExts) {
		if prefix == "content" || prefix == "atom" {
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}
