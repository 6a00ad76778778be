package schema

import (
	"fmt"
	"sync"
)

// Registry holds the model configurations known to the application, in registration order.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*ModelConfig
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*ModelConfig)}
}

// Register applies defaults, validates and stores m.
func (r *Registry) Register(m *ModelConfig) error {
	m.ApplyDefaults()
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("model %q already registered", m.Name)
	}
	r.models[m.Name] = m
	r.order = append(r.order, m.Name)
	return nil
}

// Get returns the model registered under name.
func (r *Registry) Get(name string) (*ModelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// All returns every registered model in registration order.
func (r *Registry) All() []*ModelConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ModelConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Public returns the models exposed on the public site.
func (r *Registry) Public() []*ModelConfig {
	var out []*ModelConfig
	for _, m := range r.All() {
		if m.Public {
			out = append(out, m)
		}
	}
	return out
}
