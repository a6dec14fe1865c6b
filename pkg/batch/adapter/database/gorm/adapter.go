// Package gorm implements the database adapter on top of gorm.
// Dialects register themselves from the postgres, mysql and sqlite sub-packages.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	"github.com/tigerroll/blobtosql/pkg/batch/core/tx"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// TableNamer represents a struct that has a TableName() string method.
type TableNamer interface {
	TableName() string
}

// applyTableName points the session at the model's TableName() when the model
// (or the element type of a slice model) implements TableNamer.
func applyTableName(db *gorm.DB, model interface{}) *gorm.DB {
	if namer, ok := model.(TableNamer); ok {
		return db.Table(namer.TableName())
	}

	val := reflect.ValueOf(model)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		elemType := val.Type().Elem()
		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}
		if namer, ok := reflect.New(elemType).Interface().(TableNamer); ok {
			return db.Table(namer.TableName())
		}
	}
	return db.Model(model)
}

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

// Verify that GormDBAdapter implements database.DBConnection.
var _ database.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps an opened *gorm.DB.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB for '%s': %w", name, err)
	}
	return &GormDBAdapter{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		dbType: cfg.Type,
		name:   name,
	}, nil
}

// GormDB returns the underlying *gorm.DB instance.
func (a *GormDBAdapter) GormDB() *gorm.DB {
	return a.db
}

func (a *GormDBAdapter) Close() error {
	if a.sqlDB != nil {
		logger.Infof("Closing database connection '%s'...", a.name)
		return a.sqlDB.Close()
	}
	return nil
}

func (a *GormDBAdapter) Type() string {
	return a.dbType
}

func (a *GormDBAdapter) Name() string {
	return a.name
}

// RefreshConnection implements database.DBConnection.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	if a.sqlDB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return a.sqlDB.PingContext(ctx)
}

// Config implements database.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// TransactionManager implements database.DBConnection.
func (a *GormDBAdapter) TransactionManager() tx.TransactionManager {
	return &GormTransactionManager{conn: a}
}

// IsTableNotExistError implements database.DBConnection.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return IsTableNotExistError(err)
}

// IsDuplicateKeyError implements database.DBConnection.
func (a *GormDBAdapter) IsDuplicateKeyError(err error) bool {
	return IsDuplicateKeyError(err)
}

func (a *GormDBAdapter) session(ctx context.Context, model interface{}, tableName string) *gorm.DB {
	db := a.db.WithContext(ctx)
	if tableName != "" {
		return db.Table(tableName)
	}
	return applyTableName(db, model)
}

// ExecuteQueryAdvanced implements database.DBExecutor.
func (a *GormDBAdapter) ExecuteQueryAdvanced(ctx context.Context, target interface{}, tableName string, query map[string]interface{}, orderBy string, limit int) error {
	db := a.session(ctx, target, tableName)
	if query != nil {
		db = db.Where(query)
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	return db.Find(target).Error
}

// Count implements database.DBExecutor.
func (a *GormDBAdapter) Count(ctx context.Context, model interface{}, tableName string, query map[string]interface{}) (int64, error) {
	db := a.session(ctx, model, tableName)
	if query != nil {
		db = db.Where(query)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExecuteUpdate implements tx.TxExecutor outside of an explicit transaction.
func (a *GormDBAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	db := a.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	return executeUpdate(db, model, operation, tableName, query)
}

// ExecuteUpsert implements tx.TxExecutor outside of an explicit transaction.
func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	db := a.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	return executeUpsert(db, model, tableName, conflictColumns, updateColumns)
}

// executeUpdate is shared by the connection and the transaction adapters.
func executeUpdate(db *gorm.DB, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	if tableName != "" {
		db = db.Table(tableName)
	}

	var result *gorm.DB
	switch operation {
	case "CREATE":
		result = db.Create(model)
	case "UPDATE":
		// Model adds the primary key of model to the WHERE clause; query narrows it further
		// (the checkpoint store passes the expected version here).
		db = db.Model(model)
		if query != nil {
			db = db.Where(query)
		}
		result = db.Updates(model)
	case "DELETE":
		if query != nil {
			db = db.Where(query)
		}
		result = db.Delete(model)
	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func executeUpsert(db *gorm.DB, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (int64, error) {
	if tableName != "" {
		db = db.Table(tableName)
	}

	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
