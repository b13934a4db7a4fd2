package filter

import (
	"context"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

// sanitizeOpConfig is one sanitization step. Exactly one of the four
// operation keys must be set.
type sanitizeOpConfig struct {
	Remove        *string      `yaml:"remove"`
	RemoveRegex   *string      `yaml:"remove_regex"`
	Replace       *replacePair `yaml:"replace"`
	ReplaceRegex  *replacePair `yaml:"replace_regex"`
	CaseSensitive bool         `yaml:"case_sensitive"`
}

type replacePair struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type sanitizeOp struct {
	pattern *regexp.Regexp
	to      string
	literal bool
}

// sanitizeFilter applies text removals and replacements to every body
// of every post.
type sanitizeFilter struct {
	ops []sanitizeOp
}

func buildSanitize(node *yaml.Node) (Filter, error) {
	var configs []sanitizeOpConfig
	if err := decodeNode(node, &configs); err != nil {
		return nil, fmt.Errorf("sanitize expects a list of operations: %w", err)
	}

	ops := make([]sanitizeOp, 0, len(configs))
	for i, config := range configs {
		op, err := config.build()
		if err != nil {
			return nil, fmt.Errorf("in operation %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return &sanitizeFilter{ops: ops}, nil
}

func (c sanitizeOpConfig) build() (sanitizeOp, error) {
	set := 0
	for _, present := range []bool{c.Remove != nil, c.RemoveRegex != nil, c.Replace != nil, c.ReplaceRegex != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return sanitizeOp{}, fmt.Errorf("exactly one of remove, remove_regex, replace, replace_regex must be set")
	}

	var pattern, to string
	literal := true
	switch {
	case c.Remove != nil:
		pattern = regexp.QuoteMeta(*c.Remove)
	case c.RemoveRegex != nil:
		pattern = *c.RemoveRegex
		literal = false
	case c.Replace != nil:
		pattern = regexp.QuoteMeta(c.Replace.From)
		to = c.Replace.To
	case c.ReplaceRegex != nil:
		pattern = c.ReplaceRegex.From
		to = c.ReplaceRegex.To
		literal = false
	}

	if !c.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return sanitizeOp{}, fmt.Errorf("invalid pattern: %w", err)
	}
	return sanitizeOp{pattern: re, to: to, literal: literal}, nil
}

func (op sanitizeOp) apply(text string) string {
	if op.literal {
		return op.pattern.ReplaceAllLiteralString(text, op.to)
	}
	return op.pattern.ReplaceAllString(text, op.to)
}

func (f *sanitizeFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	for _, post := range posts {
		post.ModifyBodies(func(body string) string {
			for _, op := range f.ops {
				body = op.apply(body)
			}
			return body
		})
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *sanitizeFilter) CacheGranularity() Granularity { return FeedAndPost }
