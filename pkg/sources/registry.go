package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/evaafi/merkle-oracles-pub/pkg/config"
)

type registration struct {
	factory Factory
	enabled func(cfg *config.SourcesConfig) bool
}

var (
	registry = make(map[string]registration)
	mu       sync.RWMutex
)

// Register adds a verifier factory to the registry. enabled reports whether
// the verifier is switched on in a given configuration.
func Register(name string, enabled func(cfg *config.SourcesConfig) bool, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = registration{factory: factory, enabled: enabled}
}

// Create creates a verifier by name.
func Create(name string, cfg *config.SourcesConfig, opts Options) (Verifier, error) {
	mu.RLock()
	reg, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return reg.factory(cfg, opts)
}

// CreateEnabled creates every registered verifier enabled in cfg, sorted by name.
func CreateEnabled(cfg *config.SourcesConfig, opts Options) ([]Verifier, error) {
	var out []Verifier
	for _, name := range List() {
		mu.RLock()
		reg := registry[name]
		mu.RUnlock()
		if reg.enabled != nil && !reg.enabled(cfg) {
			continue
		}
		v, err := reg.factory(cfg, opts)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// List returns all registered verifier names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
