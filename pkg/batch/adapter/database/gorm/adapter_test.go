package gorm_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
)

func newSQLiteAdapter(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:", Pool: dbconfig.PoolConfig{MaxOpenConns: 1}}
	db, err := gormadapter.OpenDialector(sqlite.Open(cfg.Database), cfg)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Person{}))

	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "workload")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGormDBAdapterUpsertPolicies(t *testing.T) {
	ctx := context.Background()
	conn := newSQLiteAdapter(t)

	rows := []model.Person{{ID: 1, Firstname: "Ada", Surname: "Lovelace"}, {ID: 2, Firstname: "Alan", Surname: "Turing"}}
	_, err := conn.ExecuteUpdate(ctx, &rows, "CREATE", "person", nil)
	require.NoError(t, err)

	_, err = conn.ExecuteUpdate(ctx, &[]model.Person{{ID: 1, Firstname: "X", Surname: "Y"}}, "CREATE", "person", nil)
	require.Error(t, err)
	assert.True(t, conn.IsDuplicateKeyError(err))

	_, err = conn.ExecuteUpsert(ctx, &[]model.Person{{ID: 1, Firstname: "Augusta", Surname: "King"}}, "person", []string{"id"}, []string{"firstname", "surname"})
	require.NoError(t, err)

	_, err = conn.ExecuteUpsert(ctx, &[]model.Person{{ID: 2, Firstname: "Ignored", Surname: "Ignored"}, {ID: 3, Firstname: "Grace", Surname: "Hopper"}}, "person", []string{"id"}, nil)
	require.NoError(t, err)

	var got []model.Person
	require.NoError(t, conn.ExecuteQueryAdvanced(ctx, &got, "", nil, "id", 0))
	require.Len(t, got, 3)
	assert.Equal(t, "Augusta", got[0].Firstname)
	assert.Equal(t, "Alan", got[1].Firstname)
	assert.Equal(t, "Grace", got[2].Firstname)

	n, err := conn.Count(ctx, &model.Person{}, "person", map[string]interface{}{"surname": "Hopper"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestGormTransactionRollback(t *testing.T) {
	ctx := context.Background()
	conn := newSQLiteAdapter(t)
	tm := conn.TransactionManager()

	tx, err := tm.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.ExecuteUpdate(ctx, &[]model.Person{{ID: 10, Firstname: "A", Surname: "B"}}, "CREATE", "person", nil)
	require.NoError(t, err)
	require.NoError(t, tm.Rollback(tx))

	n, err := conn.Count(ctx, &model.Person{}, "", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	tx, err = tm.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.ExecuteUpdate(ctx, &[]model.Person{{ID: 11, Firstname: "C", Surname: "D"}}, "CREATE", "person", nil)
	require.NoError(t, err)
	require.NoError(t, tm.Commit(tx))

	n, err = conn.Count(ctx, &model.Person{}, "", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestGormDBAdapterUnknownOperation(t *testing.T) {
	conn := newSQLiteAdapter(t)
	_, err := conn.ExecuteUpdate(context.Background(), &model.Person{}, "MERGE", "", nil)
	assert.ErrorContains(t, err, "unsupported update operation")
}

func TestMySQLUpsertStatement(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	cfg := dbconfig.DatabaseConfig{Type: "mysql"}
	db, err := gormadapter.OpenDialector(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "workload")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `person`.*ON DUPLICATE KEY UPDATE.*`firstname`.*`surname`").
		WillReturnResult(sqlmock.NewResult(0, 2))

	rows := []model.Person{{ID: 1, Firstname: "Ada", Surname: "Lovelace"}, {ID: 2, Firstname: "Alan", Surname: "Turing"}}
	n, err := conn.ExecuteUpsert(context.Background(), &rows, "person", []string{"id"}, []string{"firstname", "surname"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRepeatingAnIdIsADuplicateKey(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	cfg := dbconfig.DatabaseConfig{Type: "mysql"}
	db, err := gormadapter.OpenDialector(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "workload")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `person`").WillReturnError(&pgconn.PgError{
		Severity: "ERROR",
		Code:     "21000",
		Message:  "ON CONFLICT DO UPDATE command cannot affect row a second time",
	})

	rows := []model.Person{{ID: 7, Firstname: "Ada", Surname: "Lovelace"}, {ID: 7, Firstname: "Ada", Surname: "Byron"}}
	_, err = conn.ExecuteUpsert(context.Background(), &rows, "person", []string{"id"}, []string{"firstname", "surname"})
	require.Error(t, err)
	assert.True(t, conn.IsDuplicateKeyError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, gormadapter.IsTableNotExistError(assertErr("no such table: person")))
	assert.True(t, gormadapter.IsTableNotExistError(assertErr(`ERROR: relation "person" does not exist`)))
	assert.False(t, gormadapter.IsTableNotExistError(nil))
	assert.True(t, gormadapter.IsDuplicateKeyError(assertErr("Error 1062 (23000): Duplicate entry '1' for key 'PRIMARY'")))
	assert.True(t, gormadapter.IsDuplicateKeyError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint \"person_pkey\""}))
	assert.True(t, gormadapter.IsDuplicateKeyError(&pgconn.PgError{Code: "21000", Message: "ON CONFLICT DO UPDATE command cannot affect row a second time"}))
	assert.False(t, gormadapter.IsDuplicateKeyError(&pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"}))
	assert.False(t, gormadapter.IsDuplicateKeyError(assertErr("connection refused")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
