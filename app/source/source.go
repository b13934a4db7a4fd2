// Package source turns an endpoint's source configuration into a
// concrete feed: an absolute URL, a relative URL resolved against the
// app base, a templated URL with placeholders, or a synthetic
// from-scratch feed.
package source

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/lysyi3m/rss-funnel/app/client"
	"github.com/lysyi3m/rss-funnel/app/feed"
)

// ResolveParams carries the request-scoped inputs a source may need:
// the inferred application base URL and any extra query parameters.
type ResolveParams struct {
	Base         *url.URL
	ExtraQueries map[string]string
}

// Source fetches the initial feed for an endpoint.
type Source interface {
	FetchFeed(ctx context.Context, params ResolveParams, c *client.Client) (*feed.Feed, error)
}

type absoluteSource struct {
	url string
}

// URL reports the static URL of the source.
func (s *absoluteSource) URL() string { return s.url }

func (s *absoluteSource) FetchFeed(ctx context.Context, _ ResolveParams, c *client.Client) (*feed.Feed, error) {
	return c.FetchFeed(ctx, s.url)
}

type relativeSource struct {
	path string
}

func (s *relativeSource) FetchFeed(ctx context.Context, params ResolveParams, c *client.Client) (*feed.Feed, error) {
	if params.Base == nil {
		return nil, ErrBaseNotInferred
	}
	ref, err := url.Parse(s.path)
	if err != nil {
		return nil, fmt.Errorf("invalid relative source %q: %w", s.path, err)
	}
	resolved := params.Base.ResolveReference(ref)
	return c.FetchFeed(ctx, resolved.String())
}

type fromScratchSource struct {
	config FromScratch
}

func (s *fromScratchSource) FetchFeed(context.Context, ResolveParams, *client.Client) (*feed.Feed, error) {
	format := feed.Format(s.config.Format)
	return feed.NewFromScratch(format, s.config.Title, s.config.Link, s.config.Description), nil
}

var placeholderPattern = regexp.MustCompile(`\$\{(\w+)\}`)

type templatedSource struct {
	template     string
	placeholders map[string]Placeholder
	validations  map[string]*regexp.Regexp
}

func (s *templatedSource) FetchFeed(ctx context.Context, params ResolveParams, c *client.Client) (*feed.Feed, error) {
	expanded, err := s.expand(params.ExtraQueries)
	if err != nil {
		return nil, err
	}

	inner, err := simpleSource(expanded)
	if err != nil {
		return nil, err
	}
	return inner.FetchFeed(ctx, params, c)
}

// expand substitutes every ${name} with the request-supplied value or
// the placeholder default, URL-encoding the value before splicing.
func (s *templatedSource) expand(queries map[string]string) (string, error) {
	var expandErr error
	expanded := placeholderPattern.ReplaceAllStringFunc(s.template, func(match string) string {
		if expandErr != nil {
			return match
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]

		value, ok := queries[name]
		if !ok {
			placeholder := s.placeholders[name]
			if placeholder.Default == nil {
				expandErr = &MissingPlaceholderError{Placeholder: name}
				return match
			}
			value = *placeholder.Default
		}

		if pattern := s.validations[name]; pattern != nil && !pattern.MatchString(value) {
			expandErr = &TemplateValidationError{Placeholder: name, Value: value}
			return match
		}

		return url.QueryEscape(value)
	})
	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}

// simpleSource interprets a plain string config: a leading slash means
// a relative URL, anything else must parse as an absolute URL.
func simpleSource(raw string) (Source, error) {
	if strings.HasPrefix(raw, "/") {
		return &relativeSource{path: raw}, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", raw, err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("source url %q is neither absolute nor relative to the app base", raw)
	}
	return &absoluteSource{url: raw}, nil
}
