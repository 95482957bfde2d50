// Package registry manages provider adapter registration and
// instantiation. Instances are constructor-injected: tests build fresh
// registries instead of resetting shared state.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/junctionhq/junction/pkg/config"
	"github.com/junctionhq/junction/pkg/connector/core"
	cerrors "github.com/junctionhq/junction/pkg/errors"
	"github.com/junctionhq/junction/pkg/logger"
)

// Factory creates a provider adapter instance from connector
// configuration.
type Factory func(cfg *config.ConnectorConfig) (core.Connector, error)

// Registry maps provider IDs to their catalog descriptors and factories.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]core.Descriptor
	factories   map[string]Factory
	logger      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]core.Descriptor),
		factories:   make(map[string]Factory),
		logger:      logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register adds a provider descriptor and its factory. Registering an
// already-known provider ID is a config error.
func (r *Registry) Register(desc core.Descriptor, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if desc.ID == "" {
		return cerrors.New(cerrors.CategoryConfig, "provider descriptor requires an id")
	}
	if _, exists := r.factories[desc.ID]; exists {
		return cerrors.Newf(cerrors.CategoryConfig, "provider %s already registered", desc.ID)
	}

	r.descriptors[desc.ID] = desc
	r.factories[desc.ID] = factory
	r.logger.Info("provider registered", zap.String("provider", desc.ID))
	return nil
}

// Describe returns the catalog descriptor for a provider.
func (r *Registry) Describe(providerID string) (core.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[providerID]
	return desc, ok
}

// List returns all registered descriptors.
func (r *Registry) List() []core.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

// Create instantiates a provider adapter for the given configuration,
// checking that required settings keys are present.
func (r *Registry) Create(cfg *config.ConnectorConfig) (core.Connector, error) {
	r.mu.RLock()
	desc, known := r.descriptors[cfg.Provider]
	factory := r.factories[cfg.Provider]
	r.mu.RUnlock()

	if !known {
		return nil, cerrors.Newf(cerrors.CategoryConfig, "provider %s not registered", cfg.Provider)
	}

	for _, key := range desc.RequiredConfig {
		if _, ok := cfg.Settings[key]; !ok {
			return nil, cerrors.Newf(cerrors.CategoryConfig, "provider %s requires setting %q", cfg.Provider, key)
		}
	}

	return factory(cfg)
}

// defaultRegistry backs the package-level registration used by provider
// packages in their init functions.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry populated by provider
// package imports.
func Default() *Registry { return defaultRegistry }

// Register adds a provider to the default registry.
func Register(desc core.Descriptor, factory Factory) error {
	return defaultRegistry.Register(desc, factory)
}

// Create instantiates a provider adapter from the default registry.
func Create(cfg *config.ConnectorConfig) (core.Connector, error) {
	return defaultRegistry.Create(cfg)
}

// List returns all descriptors in the default registry.
func List() []core.Descriptor { return defaultRegistry.List() }
