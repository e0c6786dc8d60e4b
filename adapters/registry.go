package adapters

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brettbedarf/gfs"
)

// ProviderFactory builds a content provider from its raw JSON options. The
// options always carry at least the "type" field used to pick the factory.
type ProviderFactory func(raw []byte) (gfs.ContentProvider, error)

// Registry maps content backend type names to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register ties a factory to a "type" key. The first registration of a key
// wins; later ones are ignored.
func (r *Registry) Register(contentType string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[contentType]; ok {
		return
	}
	r.factories[contentType] = factory
}

// GetFactory returns the factory registered for contentType.
func (r *Registry) GetFactory(contentType string) (ProviderFactory, error) {
	r.mu.RLock()
	f, ok := r.factories[contentType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no content factory for %q", contentType)
	}
	return f, nil
}

// NewProvider picks the right factory based on the "type" field of raw.
// All expected content types should be registered with [Registry.Register]
// before calling this function.
func (r *Registry) NewProvider(raw []byte) (gfs.ContentProvider, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if meta.Type == "" {
		return nil, fmt.Errorf("content options missing \"type\"")
	}
	f, err := r.GetFactory(meta.Type)
	if err != nil {
		return nil, err
	}
	return f(raw)
}

// ProviderFor builds the provider for contentType with no extra options.
func (r *Registry) ProviderFor(contentType string) (gfs.ContentProvider, error) {
	raw, err := json.Marshal(map[string]string{"type": contentType})
	if err != nil {
		return nil, err
	}
	return r.NewProvider(raw)
}
