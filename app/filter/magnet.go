package filter

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/rss-funnel/app/feed"
)

const torrentMimeType = "application/x-bittorrent"

var (
	// btih carries a v1 info hash, btmh a v2 info hash.
	magnetLinkPattern = regexp.MustCompile(`\b(magnet:\?xt=urn:bt(ih:[a-fA-F0-9]{40}|mh:[a-fA-F0-9]{68})(&[\w.]+=[^\s]+)*)\b`)
	infoHashPattern   = regexp.MustCompile(`\b([a-fA-F0-9]{40}|[a-fA-F0-9]{68})\b`)
)

type magnetConfig struct {
	// InfoHash matches bare hex info hashes instead of full magnet URIs.
	InfoHash bool `yaml:"info_hash"`
	// OverrideExisting replaces a magnet link already present in the
	// enclosure/link.
	OverrideExisting bool `yaml:"override_existing"`
}

// magnetFilter finds magnet links in post bodies and saves them in the
// enclosure (RSS) or links (Atom), so the feed can be fed to a torrent
// client.
type magnetFilter struct {
	config magnetConfig
}

func buildMagnet(node *yaml.Node) (Filter, error) {
	var config magnetConfig
	if err := decodeNode(node, &config); err != nil {
		return nil, err
	}
	return &magnetFilter{config: config}, nil
}

func (f *magnetFilter) Run(_ context.Context, _ *FilterContext, fd *feed.Feed) (*feed.Feed, error) {
	posts := fd.TakePosts()
	for _, post := range posts {
		var link string
		for _, body := range post.Bodies() {
			if links := findMagnetLinks(body, f.config.InfoHash); len(links) > 0 {
				link = links[0]
				break
			}
		}
		if link != "" {
			setMagnetLink(post, link, f.config.OverrideExisting)
		}
	}
	fd.SetPosts(posts)
	return fd, nil
}

func (f *magnetFilter) CacheGranularity() Granularity { return FeedAndPost }

func findMagnetLinks(text string, infoHash bool) []string {
	if !infoHash {
		var links []string
		for _, m := range magnetLinkPattern.FindAllStringSubmatch(text, -1) {
			links = append(links, m[1])
		}
		return links
	}

	var links []string
	for _, hash := range infoHashPattern.FindAllString(text, -1) {
		switch len(hash) {
		case 40:
			links = append(links, fmt.Sprintf("magnet:?xt=urn:btih:%s", hash))
		case 68:
			links = append(links, fmt.Sprintf("magnet:?xt=urn:btmh:%s", hash))
		default:
			slog.Warn("bad length for info hash", "info_hash", hash)
			links = append(links, fmt.Sprintf("magnet:?xt=urn:btih:%s", hash))
		}
	}
	return links
}

func existingMagnetLink(post *feed.Post) string {
	if post.RSS != nil {
		if e := post.RSS.Enclosure; e != nil && e.Type == torrentMimeType {
			return e.URL
		}
		return ""
	}
	for _, l := range post.Atom.Links {
		if strings.HasPrefix(l.Href, "magnet:") {
			return l.Href
		}
	}
	return ""
}

func setMagnetLink(post *feed.Post, link string, override bool) {
	if existingMagnetLink(post) != "" && !override {
		return
	}

	if post.RSS != nil {
		post.RSS.Enclosure = &rss.Enclosure{
			URL:  link,
			Type: torrentMimeType,
		}
		return
	}
	for _, l := range post.Atom.Links {
		if strings.HasPrefix(l.Href, "magnet:") {
			l.Href = link
			l.Type = torrentMimeType
			return
		}
	}
	post.Atom.Links = append(post.Atom.Links, &atom.Link{
		Href: link,
		Type: torrentMimeType,
	})
}
