// Package database defines the database connection abstraction shared by the bulk loader,
// the SQL checkpoint store and the migrator.
package database

import (
	"context"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/blobtosql/pkg/batch/core/adapter"
	"github.com/tigerroll/blobtosql/pkg/batch/core/tx"
)

// DBExecutor defines common write and read operations for a database.
type DBExecutor interface {
	tx.TxExecutor

	// ExecuteQueryAdvanced executes a SELECT with optional sorting and limiting.
	// A non-empty tableName overrides the table inferred from target.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, tableName string, query map[string]interface{}, orderBy string, limit int) error

	// Count counts the number of records matching the query.
	// A non-empty tableName overrides the table inferred from model.
	Count(ctx context.Context, model interface{}, tableName string, query map[string]interface{}) (int64, error)
}

// DBConnection represents an abstraction of a database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection
	DBExecutor

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// IsDuplicateKeyError checks if the given error is a unique/primary key violation.
	IsDuplicateKeyError(err error) bool
	// RefreshConnection pings the pool to make sure the connection is usable.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// TransactionManager returns a transaction manager bound to this connection.
	TransactionManager() tx.TransactionManager
}

// DBProvider provides named database connections based on configuration.
type DBProvider interface {
	// GetConnection retrieves (opening on first use) the connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
}
