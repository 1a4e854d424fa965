// Package report collects the problems of a conversion run and publishes
// them to optional remote backends.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rzpsarthak13/dbarchive/internal/registry"
)

// Problem is one item of the run report.
type Problem struct {
	Run     string    `json:"run,omitempty"`
	Seq     int       `json:"seq"`
	Subject string    `json:"subject"`
	Reason  string    `json:"reason"`
	Time    time.Time `json:"time"`
}

func (p Problem) String() string {
	return p.Subject + " failed because " + p.Reason
}

// Publisher delivers problems to one backend.
type Publisher interface {
	Publish(ctx context.Context, p Problem) error

	// Type returns the backend identifier (e.g., "redis", "kafka").
	Type() string

	Close() error
}

// PublisherFactory is the Strategy interface for creating publishers.
// Each backend implements this interface to provide its own factory method.
type PublisherFactory interface {
	// Create creates a publisher from the backend configuration.
	Create(ctx context.Context, config registry.InternalBackendConfig) (Publisher, error)

	// Type returns the type identifier for this factory.
	Type() string

	// Validate validates the configuration specific to this backend.
	Validate(config registry.InternalBackendConfig) error
}

var (
	// factoryRegistry stores all registered publisher factories.
	factoryRegistry = make(map[string]PublisherFactory)

	// registryMutex protects the registry from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a publisher factory.
// This is called automatically by each backend's init() function.
func RegisterFactory(factory PublisherFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Create creates a publisher using the factory registered for config.Type.
func Create(ctx context.Context, config registry.InternalBackendConfig) (Publisher, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("report backend type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[strings.ToLower(config.Type)]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported report backend: %s", config.Type)
	}

	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}

	return factory.Create(ctx, config)
}

// GetRegisteredTypes returns the registered backend types, sorted.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsTypeRegistered checks if a backend type is registered.
func IsTypeRegistered(backendType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[strings.ToLower(backendType)]
	return exists
}

// backendValidator adapts a factory's Validate to the configuration
// registry, checking every backend entry of the factory's type.
type backendValidator struct {
	factory PublisherFactory
}

func (v *backendValidator) Type() string {
	return v.factory.Type()
}

func (v *backendValidator) Validate(config *registry.InternalConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	for i, b := range config.Report.Backends {
		if !strings.EqualFold(b.Type, v.factory.Type()) {
			continue
		}
		if err := v.factory.Validate(b); err != nil {
			return fmt.Errorf("report.backends[%d]: %w", i, err)
		}
	}
	return nil
}

// register installs factory and its configuration validator.
func register(factory PublisherFactory) {
	RegisterFactory(factory)
	registry.RegisterValidator(&backendValidator{factory: factory})
}
