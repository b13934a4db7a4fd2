package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"sort"

	ext "github.com/mmcdole/gofeed/extensions"
)

// Serialize renders the feed as an XML document in its current format.
func (f *Feed) Serialize() (string, error) {
	if f.Atom != nil {
		return renderAtom(f.Atom), nil
	}
	return renderRSS(f.RSS), nil
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}
	writeElementAlways(buf, tag, content, indent)
}

func writeElementAlways(buf *bytes.Buffer, tag, content string, indent int) {
	writeIndent(buf, indent)
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func writeIndent(buf *bytes.Buffer, indent int) {
	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}
}

func escapeAttr(s string) string {
	return html.EscapeString(s)
}

// writeExtensions renders every extension tag under its prefixed name,
// sorted for deterministic output.
func writeExtensions(buf *bytes.Buffer, extensions ext.Extensions, indent int) {
	prefixes := make([]string, 0, len(extensions))
	for prefix := range extensions {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		group := extensions[prefix]
		names := make([]string, 0, len(group))
		for name := range group {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			for _, tag := range group[name] {
				writeExtensionTag(buf, prefix, name, tag, indent)
			}
		}
	}
}

func writeExtensionTag(buf *bytes.Buffer, prefix, name string, tag ext.Extension, indent int) {
	if tag.Name != "" {
		name = tag.Name
	}
	qualified := prefix + ":" + name

	writeIndent(buf, indent)
	buf.WriteString("<")
	buf.WriteString(qualified)

	attrNames := make([]string, 0, len(tag.Attrs))
	for attr := range tag.Attrs {
		attrNames = append(attrNames, attr)
	}
	sort.Strings(attrNames)
	for _, attr := range attrNames {
		buf.WriteString(fmt.Sprintf(" %s=\"%s\"", attr, escapeAttr(tag.Attrs[attr])))
	}

	if tag.Value == "" && len(tag.Children) == 0 {
		buf.WriteString(" />\n")
		return
	}

	buf.WriteString(">")

	if len(tag.Children) == 0 {
		xml.EscapeText(buf, []byte(tag.Value))
	} else {
		buf.WriteString("\n")
		childNames := make([]string, 0, len(tag.Children))
		for child := range tag.Children {
			childNames = append(childNames, child)
		}
		sort.Strings(childNames)
		for _, child := range childNames {
			for _, childTag := range tag.Children[child] {
				writeExtensionTag(buf, prefix, child, childTag, indent+2)
			}
		}
		writeIndent(buf, indent)
	}

	buf.WriteString("</")
	buf.WriteString(qualified)
	buf.WriteString(">\n")
}
