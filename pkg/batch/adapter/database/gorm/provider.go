package gorm

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// DialectorFactory generates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory corresponding to the specified DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// Provider opens and caches the named connections of the `database` configuration section.
type Provider struct {
	cfg         *config.Config
	connections map[string]*GormDBAdapter
	mu          sync.Mutex
}

// Verify that Provider implements database.DBProvider.
var _ database.DBProvider = (*Provider)(nil)

// NewProvider creates a new Provider.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		cfg:         cfg,
		connections: make(map[string]*GormDBAdapter),
	}
}

// GetConnection retrieves an existing connection or establishes a new one.
func (p *Provider) GetConnection(name string) (database.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}

	var dbConfig dbconfig.DatabaseConfig
	if err := config.DecodeSection(p.cfg.Blobtosql.AdapterConfigs, name, &dbConfig); err != nil {
		return nil, fmt.Errorf("database connection '%s': %w", name, err)
	}

	gormDB, err := Open(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection '%s': %w", name, err)
	}
	conn, err := NewGormDBAdapter(gormDB, dbConfig, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Infof("Established new DB connection: %s (%s)", name, dbConfig.Type)
	return conn, nil
}

// CloseAll closes all connections managed by this provider.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			result = multierror.Append(result, fmt.Errorf("close '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

// Open establishes a gorm connection for dbConfig using the registered dialector
// and applies the pool settings.
func Open(dbConfig dbconfig.DatabaseConfig) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := dialectorFactory(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbConfig.Type, err)
	}
	return OpenDialector(dialector, dbConfig)
}

// OpenDialector opens dialector with the adapter's gorm settings.
func OpenDialector(dialector gorm.Dialector, dbConfig dbconfig.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(dbConfig.LogLevel),
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dbConfig.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.Pool.MaxOpenConns)
	}
	if dbConfig.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.Pool.MaxIdleConns)
	}
	if dbConfig.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}
