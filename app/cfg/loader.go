package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Application configuration
	ConfigFile string `long:"config" env:"RSS_FUNNEL_CONFIG" default:"./funnel.yaml" description:"Path to the endpoint configuration file"`
	Port       string `long:"port" env:"PORT" default:"4080" description:"HTTP server port"`
	BaseUrl    string `long:"base-url" env:"RSS_FUNNEL_APP_BASE" description:"Public base URL of the service (e.g., https://funnel.example.com)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" description:"User agent string for outgoing HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		ConfigFile: raw.ConfigFile,
		Port:       raw.Port,
		BaseUrl:    raw.BaseUrl,
		UserAgent:  cmp.Or(raw.UserAgent, DefaultUserAgent()),
		Timezone:   raw.Timezone,
		Debug:      raw.Debug,
		Version:    GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetForTesting installs a configuration without going through flag parsing.
func SetForTesting(c *Cfg) *Cfg {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent()
	}
	if c.Version == "" {
		c.Version = GetVersion()
	}
	globalCfg = c
	return c
}

func DefaultUserAgent() string {
	return "rss-funnel/" + GetVersion()
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
