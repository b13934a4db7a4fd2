package api

import (
	"net/url"

	"github.com/lysyi3m/rss-funnel/app/endpoint"
)

// ReloadFunc re-reads the configuration and rebuilds the endpoint
// registry. Wired up in main.
type ReloadFunc func() error

type Handler struct {
	registry *endpoint.Registry
	base     *url.URL
	reload   ReloadFunc
}

func NewHandler(registry *endpoint.Registry, base *url.URL, reload ReloadFunc) *Handler {
	return &Handler{
		registry: registry,
		base:     base,
		reload:   reload,
	}
}
