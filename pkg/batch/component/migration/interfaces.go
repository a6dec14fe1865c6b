// Package migration applies the schema of the destination and checkpoint tables.
package migration

import (
	"context"
	"io/fs"
)

// MigrationsTable tracks the applied schema version.
const MigrationsTable = "blobtosql_migrations"

// Migrator handles database schema migrations.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS.
	Up(ctx context.Context, migrationFS fs.FS, path string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string) error
	// Version returns the applied schema version and whether the last migration left it dirty.
	// ok is false when nothing has been applied.
	Version(ctx context.Context, migrationFS fs.FS, path string) (version uint, dirty bool, ok bool, err error)
}
