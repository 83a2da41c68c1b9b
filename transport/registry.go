package transport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

// ErrUnknownTransport is returned by Build when no builder matches the configured name.
var ErrUnknownTransport = errors.New("streamrelay: unknown transport")

type registration struct {
	build Builder
	caps  Capabilities
}

// Registry maps transport names to their builders and capabilities. Names
// are matched case-insensitively, and aliases resolve to a registered name
// so that "eventhubs" can select the Kafka transport.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	aliases map[string]string
}

// DefaultRegistry is the global transport registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]registration),
		aliases: make(map[string]string),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a builder without capabilities. The consumer then assumes
// the transport reports no stream positions.
func (r *Registry) Register(name string, builder Builder) {
	r.RegisterWithCapabilities(name, builder, Capabilities{Name: normalizeName(name)})
}

// RegisterWithCapabilities adds a builder and describes what it reports.
// Registering a name twice replaces the earlier entry.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	key := normalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = registration{build: builder, caps: caps}
}

// Alias makes alias resolve to target. The target does not need to be
// registered yet.
func (r *Registry) Alias(alias, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[normalizeName(alias)] = normalizeName(target)
}

func (r *Registry) lookup(name string) (string, registration, bool) {
	key := normalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	entry, ok := r.entries[key]
	return key, entry, ok
}

// GetCapabilities returns the capabilities for a registered transport.
// Unknown transports get a Capabilities value carrying only the name.
func (r *Registry) GetCapabilities(name string) Capabilities {
	key, entry, ok := r.lookup(name)
	if !ok {
		return Capabilities{Name: key}
	}
	return entry.caps
}

// Build creates a transport using the builder registered for the config's
// PubSubSystem. A builder that returns no subscriber is an error since the
// relay only ever reads.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	name, entry, ok := r.lookup(cfg.GetPubSubSystem())
	if !ok {
		return Transport{}, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownTransport, name, r.Names())
	}

	t, err := entry.build(ctx, cfg, logger)
	if err != nil {
		return Transport{}, fmt.Errorf("build %s transport: %w", name, err)
	}
	if t.Subscriber == nil {
		return Transport{}, fmt.Errorf("build %s transport: no subscriber", name)
	}
	return t, nil
}

// Names returns the registered transport names, sorted. Aliases are not listed.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Has reports whether name, or the target of the alias name, is registered.
func (r *Registry) Has(name string) bool {
	_, _, ok := r.lookup(name)
	return ok
}

// Register adds a transport builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// RegisterWithCapabilities adds a transport builder and its capabilities to the default registry.
func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// Alias adds an alias to the default registry.
func Alias(alias, target string) {
	DefaultRegistry.Alias(alias, target)
}

// Build creates a transport using the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
