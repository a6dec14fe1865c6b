// Package sqlite registers the SQLite dialector with the gorm adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the file path (or ":memory:") with optional query parameters.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if c.Params != "" {
		return c.Database + "?" + c.Params
	}
	return c.Database
}
