package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/cfg"
	"github.com/lysyi3m/rss-funnel/app/client"
	"github.com/lysyi3m/rss-funnel/app/feed"
	"github.com/lysyi3m/rss-funnel/app/source"
)

const mergeClientTTL = 15 * time.Minute

// mergeConfig accepts a shorthand (one source or a list of sources) or
// the full form with a client, parallelism and a nested filter
// pipeline for the fetched feeds.
type mergeConfig struct {
	Source      []source.Config `yaml:"source"`
	Parallelism int             `yaml:"parallelism"`
	Client      *client.Config  `yaml:"client"`
	Filters     []FilterConfig  `yaml:"filters"`
}

func (c *mergeConfig) UnmarshalYAML(node *yaml.Node) error {
	var shorthand sourceList
	if err := node.Decode(&shorthand); err == nil {
		c.Source = shorthand
		return nil
	}

	type plain struct {
		Source      sourceList     `yaml:"source"`
		Parallelism int            `yaml:"parallelism"`
		Client      *client.Config `yaml:"client"`
		Filters     []FilterConfig `yaml:"filters"`
	}
	var full plain
	if err := node.Decode(&full); err != nil {
		return err
	}
	c.Source = full.Source
	c.Parallelism = full.Parallelism
	c.Client = full.Client
	c.Filters = full.Filters
	return nil
}

// sourceList decodes either a single source declaration or a sequence
// of them.
type sourceList []source.Config

func (l *sourceList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		var single source.Config
		if err := node.Decode(&single); err != nil {
			return err
		}
		*l = []source.Config{single}
		return nil
	}
	var many []source.Config
	if err := node.Decode(&many); err != nil {
		return err
	}
	*l = many
	return nil
}

type mergeSource struct {
	src  source.Source
	desc string
}

// mergeFilter fetches other sources, runs them through a nested
// pipeline and appends their posts to the main feed. A source that
// fails to fetch becomes an error post; the filter itself fails only
// when every source fails.
type mergeFilter struct {
	client      *client.Client
	parallelism int
	sources     []mergeSource
	pipeline    *Pipeline
}

func buildMerge(node *yaml.Node) (Filter, error) {
	var config mergeConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}
	if len(config.Source) == 0 {
		return nil, fmt.Errorf("merge requires at least one source")
	}

	var clientConfig client.Config
	if config.Client != nil {
		clientConfig = *config.Client
	}
	httpClient, err := clientConfig.Build(mergeClientTTL, cfg.DefaultUserAgent())
	if err != nil {
		return nil, err
	}

	sources := make([]mergeSource, 0, len(config.Source))
	for _, sourceConfig := range config.Source {
		src, err := sourceConfig.Build()
		if err != nil {
			return nil, err
		}
		sources = append(sources, mergeSource{src: src, desc: describeSource(sourceConfig)})
	}

	pipeline, err := NewPipeline(config.Filters)
	if err != nil {
		return nil, err
	}

	parallelism := config.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	return &mergeFilter{
		client:      httpClient,
		parallelism: parallelism,
		sources:     sources,
		pipeline:    pipeline,
	}, nil
}

func describeSource(config source.Config) string {
	switch {
	case config.Simple != "":
		return config.Simple
	case config.Templated != nil:
		return config.Templated.Template
	default:
		return "from-scratch feed"
	}
}

type mergeFetch struct {
	source mergeSource
	feed   *feed.Feed
	err    error
}

func (f *mergeFilter) Run(ctx context.Context, fctx *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	fetches := f.fetchSources(ctx, fctx)

	failed := 0
	for _, fetch := range fetches {
		if fetch.err != nil {
			failed++
		}
	}
	if failed == len(fetches) && failed > 0 {
		return nil, fmt.Errorf("failed fetching %q: %w", fetches[0].source.desc, fetches[0].err)
	}

	for _, fetch := range fetches {
		if fetch.err != nil {
			fd.SetPosts(append(fd.TakePosts(), errorPost(fd.Format(), fetch.source.desc, fetch.err)))
			continue
		}

		filtered, err := f.pipeline.Run(ctx, fctx.SubContext(), fetch.feed)
		if err != nil {
			return nil, err
		}
		if err := fd.Merge(filtered.IntoFormat(fd.Format())); err != nil {
			return nil, err
		}
	}

	fd.Reorder()
	return fd, nil
}

func (f *mergeFilter) CacheGranularity() Granularity { return FeedOnly }

func (f *mergeFilter) fetchSources(ctx context.Context, fctx *FilterContext) []mergeFetch {
	params := source.ResolveParams{Base: fctx.Base, ExtraQueries: fctx.ExtraQueries}

	fetches := make([]mergeFetch, len(f.sources))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(f.parallelism)
	for i, src := range f.sources {
		i, src := i, src
		group.Go(func() error {
			fetched, err := src.src.FetchFeed(ctx, params, f.client)
			fetches[i] = mergeFetch{source: src, feed: fetched, err: err}
			return nil
		})
	}
	_ = group.Wait()

	return fetches
}

// errorPost renders a failed source fetch as a post so the problem is
// visible in the feed itself.
func errorPost(format feed.Format, desc string, err error) *feed.Post {
	title := "Failed fetching source"
	body := fmt.Sprintf("<p>Source: %s</p><p>Error: %s</p>", desc, err)

	if format == feed.FormatAtom {
		return &feed.Post{Atom: &atom.Entry{
			Title:   title,
			Summary: body,
		}}
	}
	return &feed.Post{RSS: &rss.Item{
		Title:       title,
		Description: body,
	}}
}
