// Package config loads the root YAML configuration: optional
// management auth plus the list of endpoint declarations.
package config

import (
	"github.com/lysyi3m/rss-funnel/app/client"
	"github.com/lysyi3m/rss-funnel/app/filter"
	"github.com/lysyi3m/rss-funnel/app/source"
)

// Config is the root of the configuration file.
type Config struct {
	Auth      *Auth            `yaml:"auth"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// Auth protects the management API with HTTP basic auth.
type Auth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EndpointConfig binds an HTTP path to a source and a filter pipeline.
// An endpoint without a source is dynamic: requests must carry
// ?source=<url>.
type EndpointConfig struct {
	Path            string                `yaml:"path"`
	Note            string                `yaml:"note"`
	Source          *source.Config        `yaml:"source"`
	OnTheFlyFilters bool                  `yaml:"on_the_fly_filters"`
	Client          *client.Config        `yaml:"client"`
	Filters         []filter.FilterConfig `yaml:"filters"`
}
