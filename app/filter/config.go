package filter

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type buildFunc func(node *yaml.Node) (Filter, error)

// registry maps a filter kind (the YAML key) to its builder.
var registry = map[string]buildFunc{
	"js":             buildJs,
	"modify_post":    buildModifyPost,
	"modify_feed":    buildModifyFeed,
	"full_text":      buildFullText,
	"simplify_html":  buildSimplifyHtml,
	"remove_element": buildRemoveElement,
	"keep_element":   buildKeepElement,
	"split":          buildSplit,
	"sanitize":       buildSanitize,
	"keep_only":      buildKeepOnly,
	"discard":        buildDiscard,
	"highlight":      buildHighlight,
	"note":           buildNote,
	"convert_to":     buildConvertTo,
	"limit":          buildLimit,
	"magnet":         buildMagnet,
	"image_proxy":    buildImageProxy,
	"json_to_feed":   buildJsonToFeed,
}

// merge builds a nested pipeline whose configs resolve against the
// registry, so registering it in the map literal would close an
// initialization cycle.
func init() {
	registry["merge"] = buildMerge
}

// IsKnownKind reports whether a filter kind exists. The on-the-fly
// layer uses it to tell filter parameters from ordinary query
// parameters.
func IsKnownKind(kind string) bool {
	_, ok := registry[kind]
	return ok
}

// FilterConfig is one entry of an endpoint's filters list: a
// single-key mapping from filter kind to its options.
type FilterConfig struct {
	Kind string

	node *yaml.Node
	raw  string
}

func (c *FilterConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("filter entry must be a single-key mapping")
	}

	var kind string
	if err := node.Content[0].Decode(&kind); err != nil {
		return fmt.Errorf("invalid filter key: %w", err)
	}
	if !IsKnownKind(kind) {
		return fmt.Errorf("unknown filter kind %q", kind)
	}

	raw, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed canonicalizing filter config: %w", err)
	}

	c.Kind = kind
	c.node = node.Content[1]
	c.raw = string(raw)
	return nil
}

// ParseConfigValue builds a FilterConfig from a kind and a plain value
// (string, number, or map). The on-the-fly layer uses it for
// query-string filters.
func ParseConfigValue(kind string, value interface{}) (FilterConfig, error) {
	if !IsKnownKind(kind) {
		return FilterConfig{}, fmt.Errorf("unknown filter kind %q", kind)
	}

	raw, err := yaml.Marshal(map[string]interface{}{kind: value})
	if err != nil {
		return FilterConfig{}, fmt.Errorf("failed encoding filter config: %w", err)
	}

	var config FilterConfig
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return FilterConfig{}, err
	}
	return config, nil
}

// Equal compares two configs by their canonical YAML form.
func (c FilterConfig) Equal(other FilterConfig) bool {
	return c.raw != "" && c.raw == other.raw
}

// Build constructs the filter this config describes.
func (c FilterConfig) Build() (Filter, error) {
	builder, ok := registry[c.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown filter kind %q", c.Kind)
	}
	f, err := builder(c.node)
	if err != nil {
		return nil, fmt.Errorf("failed building filter %q: %w", c.Kind, err)
	}
	return f, nil
}

// decodeNode decodes a filter's option node into out. A nil node (the
// filter was declared with no options) leaves out at its zero value.
func decodeNode(node *yaml.Node, out interface{}) error {
	if node == nil {
		return nil
	}
	return node.Decode(out)
}
