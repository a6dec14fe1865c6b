// Package postgres registers the PostgreSQL dialector with the gorm adapter.
package postgres

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Host == "" || cfg.Database == "" {
			return nil, fmt.Errorf("postgres connection requires host and database")
		}
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the key/value DSN for PostgreSQL connections.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", portOrDefault(c.Port)),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("password=%s", c.Password),
		fmt.Sprintf("dbname=%s", c.Database),
	}
	if c.Sslmode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", c.Sslmode))
	}
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	if c.Params != "" {
		parts = append(parts, c.Params)
	}
	return strings.Join(parts, " ")
}

func portOrDefault(port int) int {
	if port == 0 {
		return 5432
	}
	return port
}
