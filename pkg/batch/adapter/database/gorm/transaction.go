package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/blobtosql/pkg/batch/core/tx"
)

// GormTxAdapter implements tx.Tx over a gorm transaction.
type GormTxAdapter struct {
	db *gorm.DB
}

// ExecuteUpdate implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	return executeUpdate(t.db.WithContext(ctx), model, operation, tableName, query)
}

// ExecuteUpsert implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	return executeUpsert(t.db.WithContext(ctx), model, tableName, conflictColumns, updateColumns)
}

// GormTransactionManager implements tx.TransactionManager for one connection.
type GormTransactionManager struct {
	conn *GormDBAdapter
}

// NewGormTransactionManager creates a transaction manager bound to conn.
func NewGormTransactionManager(conn *GormDBAdapter) *GormTransactionManager {
	return &GormTransactionManager{conn: conn}
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}

	gormTx := m.conn.GormDB().WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction on '%s': %w", m.conn.Name(), gormTx.Error)
	}
	return &GormTxAdapter{db: gormTx}, nil
}

func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTxAdapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter")
	}
	return gormTxAdapter.db.Commit().Error
}

func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTxAdapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter")
	}
	return gormTxAdapter.db.Rollback().Error
}
