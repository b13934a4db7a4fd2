package endpoint

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/lysyi3m/rss-funnel/app/config"
)

// Registry holds the in-service endpoints keyed by path. Reloads swap
// the map atomically; requests dispatched before a reload finish
// against the endpoint they captured.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

func NewRegistry() *Registry {
	return &Registry{endpoints: map[string]*Endpoint{}}
}

// Update rebuilds the registry from the given configuration. Endpoints
// whose path survives are updated in place so their filter caches
// carry over; a build error leaves the registry unchanged.
func (r *Registry) Update(configs []config.EndpointConfig) error {
	r.mu.RLock()
	previous := r.endpoints
	r.mu.RUnlock()

	endpoints := make(map[string]*Endpoint, len(configs))
	for _, c := range configs {
		if existing, ok := previous[c.Path]; ok {
			if err := existing.Update(c); err != nil {
				return err
			}
			endpoints[c.Path] = existing
			continue
		}

		built, err := New(c)
		if err != nil {
			return err
		}
		endpoints[c.Path] = built
		slog.Info("endpoint registered", "path", c.Path)
	}

	r.mu.Lock()
	r.endpoints = endpoints
	r.mu.Unlock()
	return nil
}

// Lookup returns the endpoint serving the given path.
func (r *Registry) Lookup(path string) (*Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[path]
	return e, ok
}

// Paths returns the registered paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.endpoints))
	for path := range r.endpoints {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
