package filter

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"github.com/lysyi3m/rss-funnel/app/cfg"
	"github.com/lysyi3m/rss-funnel/app/client"
	"github.com/lysyi3m/rss-funnel/app/feed"
)

const jsonToFeedClientTTL = 5 * time.Minute

// MissingFieldError reports a required field mapping that produced no
// value.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// fieldSelector is one field mapping value: a JSONPath when the string
// starts with "$", otherwise a constant. A leading `\$` escapes a
// literal dollar sign.
type fieldSelector struct {
	constant string
	path     jp.Expr
}

func parseFieldSelector(raw string) (*fieldSelector, error) {
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, `\$`) {
		return &fieldSelector{constant: raw[1:]}, nil
	}
	if !strings.HasPrefix(raw, "$") {
		return &fieldSelector{constant: raw}, nil
	}

	expr, err := jp.ParseString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath %q: %w", raw, err)
	}
	return &fieldSelector{path: expr}, nil
}

// selectOne evaluates the selector expecting at most one value.
func (s *fieldSelector) selectOne(data interface{}) (string, error) {
	if s == nil {
		return "", nil
	}
	if s.path == nil {
		return s.constant, nil
	}

	values := selectorStrings(s.path, data)
	if len(values) > 1 {
		return "", fmt.Errorf("jsonpath %q selected %d values, expected one", s.path.String(), len(values))
	}
	if len(values) == 0 {
		return "", nil
	}
	return values[0], nil
}

// selectMany evaluates the selector allowing multiple values.
func (s *fieldSelector) selectMany(data interface{}) []string {
	if s == nil {
		return nil
	}
	if s.path == nil {
		return []string{s.constant}
	}
	return selectorStrings(s.path, data)
}

func selectorStrings(expr jp.Expr, data interface{}) []string {
	var out []string
	for _, v := range expr.Get(data) {
		if s, ok := scalarString(v); ok {
			out = append(out, s)
		}
	}
	return out
}

func scalarString(v interface{}) (string, bool) {
	switch v := v.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

type jsonDateConfig struct {
	Path  string   `yaml:"path"`
	Parse []string `yaml:"parse"`
}

func (c *jsonDateConfig) UnmarshalYAML(node *yaml.Node) error {
	var path string
	if err := node.Decode(&path); err == nil {
		c.Path = path
		return nil
	}

	type plain jsonDateConfig
	return node.Decode((*plain)(c))
}

type jsonFieldMapConfig struct {
	Title           string          `yaml:"title"`
	Link            string          `yaml:"link"`
	Guid            string          `yaml:"guid"`
	Description     string          `yaml:"description"`
	ContentHtml     string          `yaml:"content_html"`
	Author          string          `yaml:"author"`
	Categories      string          `yaml:"categories"`
	PubDate         *jsonDateConfig `yaml:"pub_date"`
	EnclosureUrl    string          `yaml:"enclosure_url"`
	EnclosureType   string          `yaml:"enclosure_type"`
	EnclosureLength string          `yaml:"enclosure_length"`
}

type jsonFeedMapConfig struct {
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
}

type jsonToFeedConfig struct {
	// Url is the JSON document to fetch. Falls back to the request's
	// source URL.
	Url         string             `yaml:"url"`
	Items       string             `yaml:"items"`
	Map         jsonFieldMapConfig `yaml:"map"`
	Feed        jsonFeedMapConfig  `yaml:"feed"`
	DateFormats []string           `yaml:"date_formats"`
	Client      *client.Config     `yaml:"client"`
}

type jsonFieldMap struct {
	title           *fieldSelector
	link            *fieldSelector
	guid            *fieldSelector
	description     *fieldSelector
	contentHtml     *fieldSelector
	author          *fieldSelector
	categories      *fieldSelector
	enclosureUrl    *fieldSelector
	enclosureType   *fieldSelector
	enclosureLength *fieldSelector
	pubDate         *fieldSelector
	dateFormats     []string
}

type jsonFeedMap struct {
	title       *fieldSelector
	link        *fieldSelector
	description *fieldSelector
}

// jsonToFeedFilter fetches a JSON document and replaces the feed's
// posts with items selected from it.
type jsonToFeedFilter struct {
	url         *url.URL
	items       jp.Expr
	fields      jsonFieldMap
	feedFields  jsonFeedMap
	dateFormats []string
	client      *client.Client
}

func buildJsonToFeed(node *yaml.Node) (Filter, error) {
	var config jsonToFeedConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}
	if config.Items == "" {
		return nil, fmt.Errorf("items jsonpath is required")
	}
	if config.Map.Title == "" {
		return nil, &MissingFieldError{Field: "map.title"}
	}
	if config.Map.Link == "" {
		return nil, &MissingFieldError{Field: "map.link"}
	}

	items, err := jp.ParseString(config.Items)
	if err != nil {
		return nil, fmt.Errorf("invalid items jsonpath %q: %w", config.Items, err)
	}

	var parsedURL *url.URL
	if config.Url != "" {
		parsedURL, err = url.Parse(config.Url)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
	}

	var clientConfig client.Config
	if config.Client != nil {
		clientConfig = *config.Client
	}
	httpClient, err := clientConfig.Build(jsonToFeedClientTTL, cfg.DefaultUserAgent())
	if err != nil {
		return nil, err
	}

	f := &jsonToFeedFilter{
		url:         parsedURL,
		items:       items,
		dateFormats: config.DateFormats,
		client:      httpClient,
	}
	if err := f.compileFields(config); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *jsonToFeedFilter) compileFields(config jsonToFeedConfig) error {
	compile := func(raw string, target **fieldSelector) error {
		selector, err := parseFieldSelector(raw)
		if err != nil {
			return err
		}
		*target = selector
		return nil
	}

	fields := []struct {
		raw    string
		target **fieldSelector
	}{
		{config.Map.Title, &f.fields.title},
		{config.Map.Link, &f.fields.link},
		{config.Map.Guid, &f.fields.guid},
		{config.Map.Description, &f.fields.description},
		{config.Map.ContentHtml, &f.fields.contentHtml},
		{config.Map.Author, &f.fields.author},
		{config.Map.Categories, &f.fields.categories},
		{config.Map.EnclosureUrl, &f.fields.enclosureUrl},
		{config.Map.EnclosureType, &f.fields.enclosureType},
		{config.Map.EnclosureLength, &f.fields.enclosureLength},
		{config.Feed.Title, &f.feedFields.title},
		{config.Feed.Link, &f.feedFields.link},
		{config.Feed.Description, &f.feedFields.description},
	}
	for _, field := range fields {
		if err := compile(field.raw, field.target); err != nil {
			return err
		}
	}

	if config.Map.PubDate != nil {
		selector, err := parseFieldSelector(config.Map.PubDate.Path)
		if err != nil {
			return err
		}
		f.fields.pubDate = selector
		f.fields.dateFormats = config.Map.PubDate.Parse
	}
	return nil
}

func (f *jsonToFeedFilter) Run(ctx context.Context, fctx *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	fetchURL := f.url
	if fetchURL == nil {
		fetchURL = fctx.Source
	}
	if fetchURL == nil {
		return nil, fmt.Errorf("json_to_feed needs a url (set url or provide a source url)")
	}

	resp, err := f.client.Get(ctx, fetchURL.String())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &client.StatusError{URL: fetchURL.String(), StatusCode: resp.StatusCode}
	}
	body, err := resp.Text()
	if err != nil {
		return nil, err
	}

	var root interface{}
	if err := json.Unmarshal([]byte(body), &root); err != nil {
		return nil, fmt.Errorf("json parse error: %w", err)
	}

	if err := f.applyFeedMetadata(fd, root); err != nil {
		return nil, err
	}

	items := f.items.Get(root)
	posts := make([]*feed.Post, 0, len(items))
	seenGuids := map[string]bool{}
	for _, item := range items {
		post, err := f.buildPost(fd.Format(), item, seenGuids)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	fd.SetPosts(posts)
	return fd, nil
}

func (f *jsonToFeedFilter) CacheGranularity() Granularity { return FeedOnly }

func (f *jsonToFeedFilter) applyFeedMetadata(fd *feed.Feed, root interface{}) error {
	if f.feedFields.title != nil {
		title, err := f.feedFields.title.selectOne(root)
		if err != nil {
			return err
		}
		if title == "" {
			return &MissingFieldError{Field: "feed.title"}
		}
		fd.SetTitle(title)
	}

	if f.feedFields.link != nil {
		link, err := f.feedFields.link.selectOne(root)
		if err != nil {
			return err
		}
		if link == "" {
			return &MissingFieldError{Field: "feed.link"}
		}
		setFeedLink(fd, link)
	}

	if f.feedFields.description != nil {
		description, err := f.feedFields.description.selectOne(root)
		if err != nil {
			return err
		}
		if fd.Atom != nil {
			fd.Atom.Subtitle = description
		} else {
			fd.RSS.Description = description
		}
	}
	return nil
}

func setFeedLink(fd *feed.Feed, link string) {
	if fd.Atom != nil {
		if len(fd.Atom.Links) > 0 {
			fd.Atom.Links[0].Href = link
			return
		}
		fd.Atom.Links = append(fd.Atom.Links, &atom.Link{Href: link})
		return
	}
	fd.RSS.Link = link
}

func (f *jsonToFeedFilter) buildPost(format feed.Format, item interface{}, seenGuids map[string]bool) (*feed.Post, error) {
	title, err := f.fields.title.selectOne(item)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, &MissingFieldError{Field: "title"}
	}
	link, err := f.fields.link.selectOne(item)
	if err != nil {
		return nil, err
	}
	if link == "" {
		return nil, &MissingFieldError{Field: "link"}
	}

	single := func(s *fieldSelector) (string, error) { return s.selectOne(item) }
	guid, err := single(f.fields.guid)
	if err != nil {
		return nil, err
	}
	description, err := single(f.fields.description)
	if err != nil {
		return nil, err
	}
	contentHtml, err := single(f.fields.contentHtml)
	if err != nil {
		return nil, err
	}
	author, err := single(f.fields.author)
	if err != nil {
		return nil, err
	}
	enclosureUrl, err := single(f.fields.enclosureUrl)
	if err != nil {
		return nil, err
	}
	enclosureType, err := single(f.fields.enclosureType)
	if err != nil {
		return nil, err
	}
	enclosureLength, err := single(f.fields.enclosureLength)
	if err != nil {
		return nil, err
	}
	categories := f.fields.categories.selectMany(item)
	pubDate := f.parseDate(item)

	if guid == "" {
		guid = link
	}
	if guid == "" {
		guid = hashGuid(item)
	}
	guid = uniqueGuid(guid, seenGuids)

	if format == feed.FormatAtom {
		return f.buildAtomEntry(title, link, guid, description, contentHtml, author, categories, pubDate), nil
	}
	return f.buildRSSItem(title, link, guid, description, contentHtml, author, categories, pubDate,
		enclosureUrl, enclosureType, enclosureLength), nil
}

func (f *jsonToFeedFilter) parseDate(item interface{}) *time.Time {
	if f.fields.pubDate == nil {
		return nil
	}
	raw, err := f.fields.pubDate.selectOne(item)
	if err != nil || raw == "" {
		return nil
	}

	if t, err := feed.ParseDate(raw); err == nil {
		return &t
	}
	for _, layout := range append(f.fields.dateFormats, f.dateFormats...) {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func (f *jsonToFeedFilter) buildRSSItem(title, link, guid, description, contentHtml, author string,
	categories []string, pubDate *time.Time, enclosureUrl, enclosureType, enclosureLength string) *feed.Post {
	item := &rss.Item{
		Title:       title,
		Link:        link,
		Description: description,
		Content:     contentHtml,
		Author:      author,
		GUID:        &rss.GUID{Value: guid, IsPermalink: strconv.FormatBool(guid == link)},
	}
	if pubDate != nil {
		item.PubDate = feed.FormatRSSDate(*pubDate)
		item.PubDateParsed = pubDate
	}
	for _, category := range categories {
		item.Categories = append(item.Categories, &rss.Category{Value: category})
	}
	if enclosureUrl != "" {
		if enclosureType == "" {
			enclosureType = "application/octet-stream"
		}
		if enclosureLength == "" {
			enclosureLength = "0"
		}
		item.Enclosure = &rss.Enclosure{URL: enclosureUrl, Type: enclosureType, Length: enclosureLength}
	}
	return &feed.Post{RSS: item}
}

func (f *jsonToFeedFilter) buildAtomEntry(title, link, guid, description, contentHtml, author string,
	categories []string, pubDate *time.Time) *feed.Post {
	updated := time.Now()
	if pubDate != nil {
		updated = *pubDate
	}

	entry := &atom.Entry{
		Title:           title,
		ID:              guid,
		Links:           []*atom.Link{{Href: link}},
		Summary:         description,
		Updated:         feed.FormatAtomDate(updated),
		UpdatedParsed:   &updated,
		Published:       feed.FormatAtomDate(updated),
		PublishedParsed: &updated,
	}
	if contentHtml != "" {
		entry.Content = &atom.Content{Value: contentHtml, Type: "html"}
	}
	if author != "" {
		entry.Authors = []*atom.Person{{Name: author}}
	}
	for _, category := range categories {
		entry.Categories = append(entry.Categories, &atom.Category{Term: category})
	}
	return &feed.Post{Atom: entry}
}

// hashGuid derives a stable guid from the item's own content.
func hashGuid(item interface{}) string {
	raw, err := json.Marshal(item)
	if err != nil {
		raw = nil
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func uniqueGuid(guid string, seen map[string]bool) string {
	if !seen[guid] {
		seen[guid] = true
		return guid
	}
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s#%d", guid, counter)
		if !seen[candidate] {
			seen[candidate] = true
			return candidate
		}
	}
}
