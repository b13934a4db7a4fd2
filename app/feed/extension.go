package feed

import (
	ext "github.com/mmcdole/gofeed/extensions"
)

// Namespace URIs for the extension prefixes seen in the wild. Prefixes
// not listed here are rendered without an xmlns declaration; lenient
// parsers accept them.
var extensionNamespaces = map[string]string{
	"content": "http://purl.org/rss/1.0/modules/content/",
	"dc":      "http://purl.org/dc/elements/1.1/",
	"media":   "http://search.yahoo.com/mrss/",
	"atom":    "http://www.w3.org/2005/Atom",
	"itunes":  "http://www.itunes.com/dtds/podcast-1.0.dtd",
	"slash":   "http://purl.org/rss/1.0/modules/slash/",
	"sy":      "http://purl.org/rss/1.0/modules/syndication/",
	"wfw":     "http://wellformedweb.org/CommentAPI/",
	"geo":     "http://www.w3.org/2003/01/geo/wgs84_pos#",
	"georss":  "http://www.georss.org/georss",
	"thr":     "http://purl.org/syndication/thread/1.0",
}

// extensionValuePtrs returns mutable pointers to the values of all
// extension tags under the given prefix and name.
func extensionValuePtrs(extensions ext.Extensions, prefix, name string) []*string {
	group, ok := extensions[prefix]
	if !ok {
		return nil
	}
	tags := group[name]
	var ptrs []*string
	for i := range tags {
		if tags[i].Value != "" {
			ptrs = append(ptrs, &tags[i].Value)
		}
	}
	return ptrs
}

func cloneExtensions(extensions ext.Extensions) ext.Extensions {
	if extensions == nil {
		return nil
	}
	out := make(ext.Extensions, len(extensions))
	for prefix, group := range extensions {
		outGroup := make(map[string][]ext.Extension, len(group))
		for name, tags := range group {
			outTags := make([]ext.Extension, len(tags))
			for i, tag := range tags {
				outTags[i] = cloneExtension(tag)
			}
			outGroup[name] = outTags
		}
		out[prefix] = outGroup
	}
	return out
}

func cloneExtension(tag ext.Extension) ext.Extension {
	out := ext.Extension{
		Name:  tag.Name,
		Value: tag.Value,
	}
	if tag.Attrs != nil {
		out.Attrs = make(map[string]string, len(tag.Attrs))
		for k, v := range tag.Attrs {
			out.Attrs[k] = v
		}
	}
	if tag.Children != nil {
		out.Children = make(map[string][]ext.Extension, len(tag.Children))
		for name, children := range tag.Children {
			outChildren := make([]ext.Extension, len(children))
			for i, child := range children {
				outChildren[i] = cloneExtension(child)
			}
			out.Children[name] = outChildren
		}
	}
	return out
}

// usedExtensionPrefixes collects the extension prefixes present on the
// feed and all of its posts, for emitting xmlns declarations.
func usedExtensionPrefixes(feedExts ext.Extensions, postExts []ext.Extensions) []string {
	seen := map[string]bool{}
	collect := func(extensions ext.Extensions) {
		for prefix := range extensions {
			seen[prefix] = true
		}
	}
	collect(feedExts)
	for _, extensions := range postExts {
		collect(extensions)
	}

	var prefixes []string
	for prefix := range seen {
		if _, known := extensionNamespaces[prefix]; known {
			prefixes = append(prefixes, prefix)
		}
	}
	return prefixes
}
