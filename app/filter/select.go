package filter

import (
	"context"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

type selectAction int

const (
	selectInclude selectAction = iota
	selectExclude
)

// selectField names the part of a post a select filter matches against.
type selectField string

const (
	fieldTitle selectField = "title"
	fieldBody  selectField = "body"
	fieldAny   selectField = "any"
)

// stringList decodes either a single YAML scalar or a sequence of
// scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	var single string
	if err := node.Decode(&single); err == nil {
		*l = []string{single}
		return nil
	}
	var many []string
	if err := node.Decode(&many); err != nil {
		return err
	}
	*l = many
	return nil
}

// selectConfig is the full form of the keep_only/discard options. The
// shorthand forms (a single string or a list of strings) decode as
// contains patterns.
type selectConfig struct {
	Matches       stringList `yaml:"matches"`
	Contains      stringList `yaml:"contains"`
	Field         string     `yaml:"field"`
	CaseSensitive bool       `yaml:"case_sensitive"`
}

func (c *selectConfig) UnmarshalYAML(node *yaml.Node) error {
	var shorthand stringList
	if err := node.Decode(&shorthand); err == nil {
		c.Contains = shorthand
		return nil
	}

	type plain selectConfig
	return node.Decode((*plain)(c))
}

// selectFilter keeps or discards posts whose selected field matches any
// of the patterns.
type selectFilter struct {
	action   selectAction
	field    selectField
	patterns []*regexp.Regexp
}

func buildKeepOnly(node *yaml.Node) (Filter, error) {
	return buildSelect(node, selectInclude)
}

func buildDiscard(node *yaml.Node) (Filter, error) {
	return buildSelect(node, selectExclude)
}

func buildSelect(node *yaml.Node, action selectAction) (Filter, error) {
	var config selectConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}
	if len(config.Matches) == 0 && len(config.Contains) == 0 {
		return nil, fmt.Errorf("at least one pattern is required")
	}

	field := fieldAny
	switch config.Field {
	case "":
	case string(fieldTitle), string(fieldBody), string(fieldAny):
		field = selectField(config.Field)
	default:
		return nil, fmt.Errorf("unknown field %q", config.Field)
	}

	var raw []string
	raw = append(raw, config.Matches...)
	for _, keyword := range config.Contains {
		raw = append(raw, regexp.QuoteMeta(keyword))
	}

	patterns, err := compilePatterns(raw, config.CaseSensitive)
	if err != nil {
		return nil, err
	}

	return &selectFilter{action: action, field: field, patterns: patterns}, nil
}

func compilePatterns(raw []string, caseSensitive bool) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		if !caseSensitive {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

func (f *selectFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	kept := posts[:0]
	for _, post := range posts {
		matched := f.matches(post)
		if matched == (f.action == selectInclude) {
			kept = append(kept, post)
		}
	}
	fd.SetPosts(kept)
	return fd, nil
}

func (f *selectFilter) matches(post *feed.Post) bool {
	if f.field == fieldTitle || f.field == fieldAny {
		if f.matchesText(post.Title()) {
			return true
		}
	}
	if f.field == fieldBody || f.field == fieldAny {
		for _, body := range post.Bodies() {
			if f.matchesText(body) {
				return true
			}
		}
	}
	return false
}

func (f *selectFilter) matchesText(text string) bool {
	for _, re := range f.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (f *selectFilter) CacheGranularity() Granularity { return FeedOnly }
