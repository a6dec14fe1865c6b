// Package mysql registers the MySQL dialector with the gorm adapter.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Host == "" || cfg.Database == "" {
			return nil, fmt.Errorf("mysql connection requires host and database")
		}
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the go-sql-driver DSN for MySQL connections.
// Extra parameters replace the defaults when set.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	params := "charset=utf8mb4&parseTime=True&loc=UTC"
	if c.Params != "" {
		params = c.Params
	}
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.User, c.Password, c.Host, port, c.Database, params)
}
