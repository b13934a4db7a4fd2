package endpoint

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lysyi3m/rss-funnel/app/filter"
)

// Request parameter names claimed by the endpoint layer. Everything
// else ends up in ExtraQueries (unless it names a filter kind).
var reservedParams = map[string]bool{
	"source":      true,
	"limit_posts": true,
	"filter_skip": true,
	"base":        true,
	"pp":          true,
}

// Request carries the recognized query parameters of an endpoint call.
type Request struct {
	// Source overrides (or, for dynamic endpoints, provides) the feed
	// source URL.
	Source string
	// LimitPosts truncates the feed after the pipeline. Zero means no
	// truncation.
	LimitPosts int
	// LimitFilters runs only the first N pipeline steps.
	LimitFilters *int
	// FilterSkip holds pipeline indices to skip.
	FilterSkip map[int]bool
	// Base resolves relative URLs; configured or inferred per request.
	Base *url.URL
	// RawQuery is the request's query string, scanned for on-the-fly
	// filter declarations in order.
	RawQuery string
	// ExtraQueries holds the remaining parameters, consumed by
	// templated sources.
	ExtraQueries map[string]string
}

// ParseRequest extracts the endpoint parameters from an HTTP request.
// The base URL is taken from the configured value, the ?base override,
// reverse-proxy headers, or the Host header, in that order.
func ParseRequest(r *http.Request, configuredBase *url.URL) (Request, error) {
	query := r.URL.Query()
	req := Request{
		Source:   query.Get("source"),
		RawQuery: r.URL.RawQuery,
	}

	if raw := query.Get("limit_posts"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid limit_posts value %q", raw)
		}
		req.LimitPosts = n
	}

	if raw := query.Get("pp"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid pp value %q", raw)
		}
		req.LimitFilters = &n
	}

	if raw := query.Get("filter_skip"); raw != "" {
		skip, err := parseFilterSkip(raw)
		if err != nil {
			return req, err
		}
		req.FilterSkip = skip
	}

	base := configuredBase
	if raw := query.Get("base"); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || !parsed.IsAbs() {
			return req, fmt.Errorf("invalid base url %q", raw)
		}
		base = parsed
	}
	if base == nil {
		base = inferBase(r)
	}
	req.Base = base

	req.ExtraQueries = extraQueries(query)
	return req, nil
}

func parseFilterSkip(raw string) (map[int]bool, error) {
	skip := map[int]bool{}
	for _, part := range strings.Split(raw, ",") {
		index, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || index < 0 {
			return nil, fmt.Errorf("invalid filter_skip value %q", raw)
		}
		skip[index] = true
	}
	return skip, nil
}

// inferBase derives the app base from reverse-proxy headers, falling
// back to the Host header.
func inferBase(r *http.Request) *url.URL {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		proto := r.Header.Get("X-Forwarded-Proto")
		if proto == "" {
			proto = "http"
		}
		if base, err := url.Parse(proto + "://" + host + "/"); err == nil {
			return base
		}
	}

	if r.Host != "" {
		if base, err := url.Parse("http://" + r.Host + "/"); err == nil {
			return base
		}
	}
	return nil
}

func extraQueries(query url.Values) map[string]string {
	extra := map[string]string{}
	for name, values := range query {
		if reservedParams[name] || filter.IsKnownKind(name) || len(values) == 0 {
			continue
		}
		extra[name] = values[0]
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}
