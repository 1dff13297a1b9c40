// Package plugin is the provider registry. Provider packages register a
// factory per kind from init(); the session assembler looks them up by the
// provider names in bots.yaml.
package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Provider kinds.
const (
	KindSTT = "stt"
	KindTTS = "tts"
	KindLLM = "llm"
	KindVAD = "vad"
)

// Factory creates a provider from its configuration block. The result is
// asserted to stt.STT, tts.TTS, llm.LLM or vad.VAD by the caller.
type Factory func(cfg map[string]any) (any, error)

// Downloader fetches model files a provider needs at runtime.
type Downloader interface {
	Download() error
}

// Plugin is a registered provider.
type Plugin struct {
	Kind        string
	Name        string
	Factory     Factory
	Description string
	Version     string
	Config      map[string]any // documented keys and their defaults
	Downloader  Downloader
}

// NotFoundError is returned when no provider is registered under a name.
type NotFoundError struct {
	Kind, Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s provider named %q", e.Kind, e.Name)
}

// Registry maps kind and name to a plugin.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

var globalRegistry = NewRegistry()

// Register adds a factory to the global registry. It panics on duplicates.
func Register(kind, name string, factory Factory) {
	globalRegistry.Register(kind, name, factory)
}

// RegisterWithMetadata adds p to the global registry. It panics on duplicates.
func RegisterWithMetadata(p *Plugin) {
	globalRegistry.RegisterWithMetadata(p)
}

func Get(kind, name string) (Factory, bool) {
	return globalRegistry.Get(kind, name)
}

func Lookup(kind, name string) (*Plugin, bool) {
	return globalRegistry.Lookup(kind, name)
}

func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

func ListKinds() []string {
	return globalRegistry.ListKinds()
}

// New builds the named provider from the global registry and asserts it to T.
func New[T any](kind, name string, cfg map[string]any) (T, error) {
	return NewFrom[T](globalRegistry, kind, name, cfg)
}

// NewFrom is New against a specific registry.
func NewFrom[T any](r *Registry, kind, name string, cfg map[string]any) (T, error) {
	var zero T

	factory, ok := r.Get(kind, name)
	if !ok {
		return zero, &NotFoundError{Kind: kind, Name: name}
	}

	inst, err := factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("create %s provider %s: %w", kind, name, err)
	}

	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("%s provider %s returned %T", kind, name, inst)
	}
	return typed, nil
}

func (r *Registry) Register(kind, name string, factory Factory) {
	r.RegisterWithMetadata(&Plugin{Kind: kind, Name: name, Factory: factory})
}

func (r *Registry) RegisterWithMetadata(p *Plugin) {
	if p.Kind == "" {
		panic("plugin kind cannot be empty")
	}
	if p.Name == "" {
		panic("plugin name cannot be empty")
	}
	if p.Factory == nil {
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[p.Kind] == nil {
		r.plugins[p.Kind] = make(map[string]*Plugin)
	}
	if existing, ok := r.plugins[p.Kind][p.Name]; ok {
		panic(fmt.Sprintf("plugin %s/%s already registered (existing version: %s, new version: %s)",
			p.Kind, p.Name, existing.Version, p.Version))
	}
	r.plugins[p.Kind][p.Name] = p
}

func (r *Registry) Get(kind, name string) (Factory, bool) {
	p, ok := r.Lookup(kind, name)
	if !ok {
		return nil, false
	}
	return p.Factory, true
}

func (r *Registry) Lookup(kind, name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[kind][name]
	return p, ok
}

// List returns the plugins of kind, or all plugins when kind is empty, sorted
// by kind then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Clear removes every plugin. Used by tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]map[string]*Plugin)
}
