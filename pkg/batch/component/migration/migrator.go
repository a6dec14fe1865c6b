package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

const moduleName = "migration"

// Opener opens a dedicated connection for one migration run.
// The migrate instance closes it when the run ends.
type Opener func(cfg dbconfig.DatabaseConfig) (*sql.DB, error)

// OpenWithGorm opens the connection through the registered gorm dialector.
func OpenWithGorm(cfg dbconfig.DatabaseConfig) (*sql.DB, error) {
	db, err := gormadapter.Open(cfg)
	if err != nil {
		return nil, err
	}
	return db.DB()
}

// migratorImpl implements Migrator
type migratorImpl struct {
	cfg  dbconfig.DatabaseConfig
	open Opener
}

// NewMigrator creates a Migrator for the database described by cfg.
func NewMigrator(cfg dbconfig.DatabaseConfig, open Opener) Migrator {
	if open == nil {
		open = OpenWithGorm
	}
	return &migratorImpl{cfg: cfg, open: open}
}

// getDatabaseDriver retrieves a migrate/v4 Driver based on the database type.
func (m *migratorImpl) getDatabaseDriver(sqlDB *sql.DB) (database.Driver, error) {
	switch m.dbType() {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: MigrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.cfg.Type)
	}
}

func (m *migratorImpl) dbType() string {
	return strings.ToLower(strings.TrimSpace(m.cfg.Type))
}

func (m *migratorImpl) getMigrateInstance(migrationFS fs.FS, path string) (*migrate.Migrate, error) {
	if path == "" {
		path = m.dbType()
	}
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}

	sqlDB, err := m.open(m.cfg)
	if err != nil {
		_ = sourceDriver.Close()
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}
	dbDriver, err := m.getDatabaseDriver(sqlDB)
	if err != nil {
		_ = sourceDriver.Close()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType(), dbDriver)
	if err != nil {
		_ = dbDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	mInstance.Log = migrateLogger{}
	return mInstance, nil
}

func (m *migratorImpl) runMigration(ctx context.Context, migrationFS fs.FS, path string, command string) error {
	logger.Infof("Executing migration '%s' (DB: %s, Path: %s, Table: %s)", command, m.dbType(), path, MigrationsTable)

	mInstance, err := m.getMigrateInstance(migrationFS, path)
	if err != nil {
		return exception.NewBatchError(moduleName, "failed to prepare migration", err, exception.CategoryConfig)
	}
	defer mInstance.Close()

	stop := context.AfterFunc(ctx, func() { mInstance.GracefulStop <- true })
	defer stop()

	var migrateErr error
	switch command {
	case "up":
		migrateErr = mInstance.Up()
	case "down":
		migrateErr = mInstance.Down()
	default:
		return exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil, "unsupported migration command: %s", command)
	}

	if migrateErr != nil && !errors.Is(migrateErr, migrate.ErrNoChange) {
		if _, dirty, versionErr := mInstance.Version(); versionErr == nil && dirty {
			logger.Errorf("Migration '%s' left the schema dirty; fix it and force the version before retrying.", command)
		}
		return exception.NewBatchErrorf(moduleName, exception.CategoryTransient, migrateErr,
			"migration '%s' failed (DB: %s)", command, m.dbType())
	}
	if errors.Is(migrateErr, migrate.ErrNoChange) {
		logger.Infof("Migration '%s': schema is up to date.", command)
		return nil
	}

	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}

func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.runMigration(ctx, migrationFS, path, "up")
}

func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string) error {
	return m.runMigration(ctx, migrationFS, path, "down")
}

func (m *migratorImpl) Version(ctx context.Context, migrationFS fs.FS, path string) (uint, bool, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, false, err
	}
	mInstance, err := m.getMigrateInstance(migrationFS, path)
	if err != nil {
		return 0, false, false, exception.NewBatchError(moduleName, "failed to prepare migration", err, exception.CategoryConfig)
	}
	defer mInstance.Close()

	version, dirty, err := mInstance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, exception.NewBatchError(moduleName, "failed to read schema version", err, exception.CategoryTransient)
	}
	return version, dirty, true, nil
}

// migrateLogger routes golang-migrate output to the debug log.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	logger.Debugf("migrate: "+strings.TrimRight(format, "\n"), v...)
}

func (migrateLogger) Verbose() bool {
	return logger.GetLogLevel() == logger.LevelDebug
}
