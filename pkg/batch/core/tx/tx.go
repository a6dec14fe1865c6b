// Package tx provides the transaction abstraction used by the bulk loader and the SQL checkpoint store.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor defines the write operations executable within a transaction.
type TxExecutor interface {
	// ExecuteUpdate performs a write operation ("CREATE", "UPDATE", "DELETE") on model.
	// tableName overrides the table gorm would infer; query is an AND-ed column=value map
	// used as the WHERE clause of UPDATE and DELETE.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model, resolving conflicts on conflictColumns by updating updateColumns.
	// An empty updateColumns means ON CONFLICT DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor
}

// TransactionManager manages the lifecycle of database transactions.
type TransactionManager interface {
	// Begin starts a new database transaction.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit persists all changes made within tx.
	Commit(tx Tx) error
	// Rollback undoes all changes made within tx.
	Rollback(tx Tx) error
}
