package loader_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/blobtosql/pkg/batch/component/loader"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

func newSQLite(t *testing.T) *gormadapter.GormDBAdapter {
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

func people(from, to int64, surname string) []model.Person {
	out := make([]model.Person, 0, to-from+1)
	for id := from; id <= to; id++ {
		out = append(out, model.Person{ID: id, Firstname: "first", Surname: surname})
	}
	return out
}

func stored(t *testing.T, conn *gormadapter.GormDBAdapter) []model.Person {
	t.Helper()
	var rows []model.Person
	require.NoError(t, conn.ExecuteQueryAdvanced(context.Background(), &rows, "person", nil, "id", 0))
	return rows
}

func TestLoadChunksWithinOneBatch(t *testing.T) {
	conn := newSQLite(t)
	l := loader.NewSQLBulkLoader(conn, loader.Options{TransferSize: 2})

	n, err := l.Load(context.Background(), model.Batch{Number: 1, Records: people(1, 5, "a")})
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	assert.Len(t, stored(t, conn), 5)
}

func TestLoadEmptyBatchIsNoop(t *testing.T) {
	l := loader.NewSQLBulkLoader(newSQLite(t), loader.Options{})
	n, err := l.Load(context.Background(), model.Batch{Number: 3})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadDuplicatePolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert overwrites", func(t *testing.T) {
		conn := newSQLite(t)
		l := loader.NewSQLBulkLoader(conn, loader.Options{Policy: model.DuplicatePolicyUpsert})
		_, err := l.Load(ctx, model.Batch{Number: 1, Records: people(1, 3, "old")})
		require.NoError(t, err)
		_, err = l.Load(ctx, model.Batch{Number: 1, Records: people(2, 4, "new")})
		require.NoError(t, err)

		rows := stored(t, conn)
		require.Len(t, rows, 4)
		assert.Equal(t, "old", rows[0].Surname)
		assert.Equal(t, "new", rows[1].Surname)
		assert.Equal(t, "new", rows[3].Surname)
	})

	t.Run("skip keeps existing", func(t *testing.T) {
		conn := newSQLite(t)
		l := loader.NewSQLBulkLoader(conn, loader.Options{Policy: model.DuplicatePolicySkip})
		_, err := l.Load(ctx, model.Batch{Number: 1, Records: people(1, 3, "old")})
		require.NoError(t, err)
		_, err = l.Load(ctx, model.Batch{Number: 1, Records: people(2, 4, "new")})
		require.NoError(t, err)

		rows := stored(t, conn)
		require.Len(t, rows, 4)
		assert.Equal(t, "old", rows[1].Surname)
		assert.Equal(t, "new", rows[3].Surname)
	})

	t.Run("fail rolls the whole batch back", func(t *testing.T) {
		conn := newSQLite(t)
		l := loader.NewSQLBulkLoader(conn, loader.Options{Policy: model.DuplicatePolicyFail, TransferSize: 2})
		_, err := l.Load(ctx, model.Batch{Number: 1, Records: people(5, 5, "old")})
		require.NoError(t, err)

		// Ids 1..4 are written in the first two chunks; Id 5 collides in the third.
		_, err = l.Load(ctx, model.Batch{Number: 2, Records: people(1, 6, "new")})
		require.Error(t, err)
		assert.ErrorIs(t, err, exception.ErrDuplicateKey)
		assert.Equal(t, exception.CategoryConstraint, exception.CategoryOf(err))
		assert.False(t, exception.IsTemporary(err))

		rows := stored(t, conn)
		require.Len(t, rows, 1)
		assert.EqualValues(t, 5, rows[0].ID)
	})
}

func TestLoadMissingTable(t *testing.T) {
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:", Pool: dbconfig.PoolConfig{MaxOpenConns: 1}}
	db, err := gormadapter.OpenDialector(sqlite.Open(cfg.Database), cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "workload")
	require.NoError(t, err)
	defer conn.Close()

	_, err = loader.NewSQLBulkLoader(conn, loader.Options{}).Load(context.Background(), model.Batch{Number: 1, Records: people(1, 1, "a")})
	require.Error(t, err)
	assert.Equal(t, exception.CategoryConfig, exception.CategoryOf(err))
}

func newMySQLMock(t *testing.T) (*gormadapter.GormDBAdapter, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := dbconfig.DatabaseConfig{Type: "mysql"}
	db, err := gormadapter.OpenDialector(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "workload")
	require.NoError(t, err)
	return conn, mock
}

func TestLoadCommitsOnceAfterAllChunks(t *testing.T) {
	conn, mock := newMySQLMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `person`").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO `person`").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO `person`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	l := loader.NewSQLBulkLoader(conn, loader.Options{TransferSize: 3})
	n, err := l.Load(context.Background(), model.Batch{Number: 1, Records: people(1, 7, "a")})
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRollsBackOnTransientFailure(t *testing.T) {
	conn, mock := newMySQLMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `person`").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO `person`").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	l := loader.NewSQLBulkLoader(conn, loader.Options{TransferSize: 2})
	_, err := l.Load(context.Background(), model.Batch{Number: 4, Records: people(1, 4, "a")})
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
	assert.Contains(t, err.Error(), "batch 4")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadDefaultTransferSizeOnSQLite(t *testing.T) {
	conn := newSQLite(t)
	l := loader.NewSQLBulkLoader(conn, loader.Options{})
	assert.Equal(t, 32766/3, l.TransferSize())

	n, err := l.Load(context.Background(), model.Batch{Number: 1, Records: people(1, 100000, "a")})
	require.NoError(t, err)
	assert.EqualValues(t, 100000, n)

	count, err := conn.Count(context.Background(), &model.Person{}, "person", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 100000, count)
}

func TestTransferSizeWithinDatabaseLimits(t *testing.T) {
	conn, _ := newMySQLMock(t)
	assert.Equal(t, loader.DefaultTransferSize, loader.NewSQLBulkLoader(conn, loader.Options{}).TransferSize())
	assert.Equal(t, 65535/3, loader.NewSQLBulkLoader(conn, loader.Options{TransferSize: 50000}).TransferSize())
	assert.Equal(t, 500, loader.NewSQLBulkLoader(newSQLite(t), loader.Options{TransferSize: 500}).TransferSize())
}

func TestLoadIdRepeatedWithinBatchIsAConstraintFailure(t *testing.T) {
	conn, mock := newMySQLMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `person`").WillReturnError(&pgconn.PgError{
		Code:    "21000",
		Message: "ON CONFLICT DO UPDATE command cannot affect row a second time",
	})
	mock.ExpectRollback()

	records := append(people(1, 3, "a"), model.Person{ID: 2, Firstname: "again", Surname: "a"})
	_, err := loader.NewSQLBulkLoader(conn, loader.Options{}).Load(context.Background(), model.Batch{Number: 6, Records: records})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrDuplicateKey)
	assert.Equal(t, exception.CategoryConstraint, exception.CategoryOf(err))
	assert.False(t, exception.IsTemporary(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
