package storage

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	storageConfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage/config"
	coreConfig "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// Factory opens a StorageConnection of one storage type.
type Factory func(cfg storageConfig.StorageConfig, name string) (StorageConnection, error)

var (
	factoryRegistry = make(map[string]Factory)
	factoryMutex    sync.RWMutex
)

// RegisterFactory registers the Factory for a storage type. Adapters call it from init.
func RegisterFactory(storageType string, factory Factory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	if _, exists := factoryRegistry[storageType]; exists {
		logger.Warnf("Storage factory for type '%s' already registered. Overwriting.", storageType)
	}
	factoryRegistry[storageType] = factory
}

func getFactory(storageType string) (Factory, error) {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()
	f, ok := factoryRegistry[storageType]
	if !ok {
		return nil, fmt.Errorf("no storage adapter registered for type: %s", storageType)
	}
	return f, nil
}

// Provider opens and caches the named connections of the `storage` configuration section.
type Provider struct {
	cfg         *coreConfig.Config
	connections map[string]StorageConnection
	mu          sync.Mutex
}

// NewProvider creates a new Provider.
func NewProvider(cfg *coreConfig.Config) *Provider {
	return &Provider{
		cfg:         cfg,
		connections: make(map[string]StorageConnection),
	}
}

// GetConnection retrieves an existing connection or opens a new one.
func (p *Provider) GetConnection(name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}

	var sc storageConfig.StorageConfig
	if err := coreConfig.DecodeSection(p.cfg.Blobtosql.StorageConfigs, name, &sc); err != nil {
		return nil, fmt.Errorf("storage connection '%s': %w", name, err)
	}
	factory, err := getFactory(sc.Type)
	if err != nil {
		return nil, fmt.Errorf("storage connection '%s': %w", name, err)
	}
	conn, err := factory(sc, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Debugf("Opened storage connection '%s' (%s).", name, sc.Type)
	return conn, nil
}

// CloseAll closes all connections managed by this provider.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close storage connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}
