package providers

import (
	"context"
	"sort"
	"sync"

	"hermes/pkg/errors"
)

// Registration places a provider in the registry. Lower priority ranks are
// preferred when selecting the primary provider.
type Registration struct {
	Provider Provider
	Enabled  bool
	Priority int
}

// RegistrationInfo is the introspection view of a registry entry.
type RegistrationInfo struct {
	Name              string `json:"name"`
	Enabled           bool   `json:"enabled"`
	Priority          int    `json:"priority"`
	SupportsStreaming bool   `json:"supports_streaming"`
	SupportsVision    bool   `json:"supports_vision"`
}

// Registry stores provider registrations. A disabled registration behaves
// exactly like an unknown one on lookup: callers get an absent result and
// must fail loudly, never fall back silently.
type Registry struct {
	entries map[string]Registration
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Registration),
	}
}

// Register adds a provider under its own name.
func (r *Registry) Register(reg Registration) error {
	if reg.Provider == nil {
		return errors.Wrap(errors.ErrInvalidInput, "provider is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := reg.Provider.Name()
	if _, exists := r.entries[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "provider %s already registered", name)
	}

	r.entries[name] = reg
	return nil
}

// Unregister removes a provider. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// Get returns the named provider only when it is registered and enabled.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok || !entry.Enabled {
		return nil, false
	}

	return entry.Provider, true
}

// Lookup is Get with the absence mapped to ErrProviderNotRegistered.
func (r *Registry) Lookup(name string) (Provider, error) {
	provider, ok := r.Get(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrProviderNotRegistered, "provider %q", name)
	}

	return provider, nil
}

// Primary returns the enabled provider with the lowest priority rank. Ties
// break on name so selection stays deterministic.
func (r *Registry) Primary() (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bestName string
	var best *Registration
	for name, entry := range r.entries {
		if !entry.Enabled {
			continue
		}
		if best == nil || entry.Priority < best.Priority ||
			(entry.Priority == best.Priority && name < bestName) {
			e := entry
			best = &e
			bestName = name
		}
	}

	if best == nil {
		return nil, false
	}

	return best.Provider, true
}

// All returns a snapshot of every registration, enabled or not, sorted by
// priority then name.
func (r *Registry) All() []RegistrationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RegistrationInfo, 0, len(r.entries))
	for name, entry := range r.entries {
		_, streaming := entry.Provider.(StreamingProvider)
		_, vision := entry.Provider.(VisionProvider)
		infos = append(infos, RegistrationInfo{
			Name:              name,
			Enabled:           entry.Enabled,
			Priority:          entry.Priority,
			SupportsStreaming: streaming,
			SupportsVision:    vision,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Priority != infos[j].Priority {
			return infos[i].Priority < infos[j].Priority
		}
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Enabled returns the enabled providers, primary ordering applied.
func (r *Registry) Enabled() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type ranked struct {
		name     string
		priority int
		provider Provider
	}

	list := make([]ranked, 0, len(r.entries))
	for name, entry := range r.entries {
		if entry.Enabled {
			list = append(list, ranked{name: name, priority: entry.Priority, provider: entry.Provider})
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].name < list[j].name
	})

	result := make([]Provider, len(list))
	for i, item := range list {
		result[i] = item.provider
	}

	return result
}

// Reset drops every registration. Test use only; production code registers
// once at startup and never mutates afterwards.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]Registration)
}

// ListModels aggregates models across enabled providers. Individual provider
// failures surface as empty slices per the best-effort listing contract.
func (r *Registry) ListModels(ctx context.Context) map[string][]ModelInfo {
	result := make(map[string][]ModelInfo)
	for _, provider := range r.Enabled() {
		models, err := provider.ListModels(ctx)
		if err != nil || models == nil {
			models = []ModelInfo{}
		}
		result[provider.Name()] = models
	}

	return result
}
