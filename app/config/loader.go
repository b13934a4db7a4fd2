package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes and validates a configuration document. Endpoint paths
// are normalized to a leading slash.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed parsing yaml: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Auth != nil && (c.Auth.Username == "" || c.Auth.Password == "") {
		return fmt.Errorf("auth requires both username and password")
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("config declares no endpoints")
	}

	seen := map[string]bool{}
	for i := range c.Endpoints {
		endpoint := &c.Endpoints[i]
		if endpoint.Path == "" {
			return fmt.Errorf("endpoint %d has no path", i)
		}
		if !strings.HasPrefix(endpoint.Path, "/") {
			endpoint.Path = "/" + endpoint.Path
		}
		if seen[endpoint.Path] {
			return fmt.Errorf("duplicate endpoint path %q", endpoint.Path)
		}
		seen[endpoint.Path] = true
	}
	return nil
}
