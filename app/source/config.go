package source

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Request parameter names the endpoint layer claims for itself.
// Template placeholders must not shadow them.
var reservedParams = map[string]bool{
	"source":      true,
	"limit_posts": true,
	"filter_skip": true,
	"base":        true,
	"pp":          true,
}

// Config is the YAML source declaration. Three forms are accepted: a
// plain URL string, a templated URL with placeholders, and a
// from-scratch feed definition.
type Config struct {
	Simple      string
	Templated   *Templated
	FromScratch *FromScratch
}

type Templated struct {
	Template     string                 `yaml:"template"`
	Placeholders map[string]Placeholder `yaml:"placeholders"`
}

type Placeholder struct {
	// Value used when the request does not supply one. A placeholder
	// without a default is required.
	Default *string `yaml:"default"`
	// Regex the (decoded) value must match.
	Validation string `yaml:"validation"`
}

type FromScratch struct {
	Format      string `yaml:"format"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&c.Simple)
	}

	var probe struct {
		Template string `yaml:"template"`
		Format   string `yaml:"format"`
	}
	if err := node.Decode(&probe); err != nil {
		return err
	}

	switch {
	case probe.Template != "":
		c.Templated = &Templated{}
		return node.Decode(c.Templated)
	case probe.Format != "":
		c.FromScratch = &FromScratch{}
		return node.Decode(c.FromScratch)
	default:
		return fmt.Errorf("source must be a url string, a template, or a from-scratch feed")
	}
}

// IsEmpty reports whether no source was configured, which makes the
// endpoint dynamic.
func (c *Config) IsEmpty() bool {
	return c == nil || (c.Simple == "" && c.Templated == nil && c.FromScratch == nil)
}

// Build validates the configuration and returns a Source.
func (c *Config) Build() (Source, error) {
	switch {
	case c.Templated != nil:
		return c.Templated.build()
	case c.FromScratch != nil:
		if err := c.FromScratch.validate(); err != nil {
			return nil, err
		}
		return &fromScratchSource{config: *c.FromScratch}, nil
	case c.Simple != "":
		return simpleSource(c.Simple)
	default:
		return nil, fmt.Errorf("empty source")
	}
}

func (t *Templated) build() (*templatedSource, error) {
	named := map[string]bool{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(t.Template, -1) {
		named[match[1]] = true
	}

	for name := range named {
		if _, ok := t.Placeholders[name]; !ok {
			return nil, fmt.Errorf("template placeholder ${%s} has no definition", name)
		}
	}
	for name := range t.Placeholders {
		if !named[name] {
			return nil, fmt.Errorf("placeholder %q does not appear in the template", name)
		}
		if reservedParams[name] {
			return nil, fmt.Errorf("placeholder %q collides with a reserved request parameter", name)
		}
	}

	validations := map[string]*regexp.Regexp{}
	for name, placeholder := range t.Placeholders {
		if placeholder.Validation == "" {
			continue
		}
		pattern, err := regexp.Compile(placeholder.Validation)
		if err != nil {
			return nil, fmt.Errorf("invalid validation regex for placeholder %q: %w", name, err)
		}
		validations[name] = pattern
	}

	return &templatedSource{
		template:     t.Template,
		placeholders: t.Placeholders,
		validations:  validations,
	}, nil
}

func (f *FromScratch) validate() error {
	switch f.Format {
	case "rss", "atom":
	default:
		return fmt.Errorf("from-scratch feed format must be rss or atom, got %q", f.Format)
	}
	if f.Title == "" {
		return fmt.Errorf("from-scratch feed requires a title")
	}
	return nil
}
