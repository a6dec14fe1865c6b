package checkpoint_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	dbconfig "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/blobtosql/pkg/batch/component/checkpoint"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

func newSQLStore(t *testing.T, table string) *checkpoint.SQLStore {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:", Pool: dbconfig.PoolConfig{MaxOpenConns: 1}}
	db, err := gormadapter.OpenDialector(sqlite.Open(cfg.Database), cfg)
	require.NoError(t, err)
	require.NoError(t, db.Table(table).AutoMigrate(&model.Checkpoint{}))
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "workload")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return checkpoint.NewSQLStore(conn, table, "people")
}

func newRedisStore(t *testing.T) (*checkpoint.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return checkpoint.NewRedisStore(client, "blobtosql", "people"), s
}

func stores(t *testing.T) map[string]checkpoint.Store {
	redisStore, _ := newRedisStore(t)
	return map[string]checkpoint.Store{
		"sql":   newSQLStore(t, "batch_checkpoint"),
		"redis": redisStore,
	}
}

func TestStoreColdStartAndAdvance(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Peek(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			cur, err := checkpoint.Current(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, int64(1), cur.BatchNumber)
			assert.Equal(t, int64(0), cur.Version)

			first, err := store.Advance(ctx, cur, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(2), first.BatchNumber)
			assert.Equal(t, int64(1), first.Version)

			second, err := store.Advance(ctx, first, 3)
			require.NoError(t, err)
			assert.Equal(t, int64(2), second.Version)

			got, ok, err := store.Peek(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "people", got.Dataset)
			assert.Equal(t, int64(3), got.BatchNumber)
			assert.Equal(t, int64(2), got.Version)

			// Peek does not consume.
			again, ok, err := store.Peek(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, got.BatchNumber, again.BatchNumber)
		})
	}
}

func TestStoreRejectsStaleVersion(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cold := model.ColdStart("people")

			first, err := store.Advance(ctx, cold, 2)
			require.NoError(t, err)

			_, err = store.Advance(ctx, cold, 5)
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrOptimisticLockingFailure)
			assert.Equal(t, exception.CategoryConflict, exception.CategoryOf(err))

			_, err = store.Advance(ctx, first, 3)
			require.NoError(t, err)
			_, err = store.Advance(ctx, first, 4)
			assert.ErrorIs(t, err, exception.ErrOptimisticLockingFailure)

			got, err := checkpoint.Current(ctx, store)
			require.NoError(t, err)
			assert.Equal(t, int64(3), got.BatchNumber)
		})
	}
}

func TestStoreConcurrentAdvanceHasOneWinner(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cold := model.ColdStart("people")

			const writers = 4
			var wg sync.WaitGroup
			errs := make([]error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = store.Advance(ctx, cold, int64(i+2))
				}(i)
			}
			wg.Wait()

			wins := 0
			for _, err := range errs {
				if err == nil {
					wins++
					continue
				}
				assert.ErrorIs(t, err, exception.ErrOptimisticLockingFailure)
			}
			assert.Equal(t, 1, wins)
		})
	}
}

func TestForce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			cp, err := checkpoint.Force(ctx, store, 7)
			require.NoError(t, err)
			assert.Equal(t, int64(7), cp.BatchNumber)

			cp, err = checkpoint.Force(ctx, store, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(1), cp.BatchNumber)
			assert.Equal(t, int64(2), cp.Version)

			_, err = checkpoint.Force(ctx, store, 0)
			assert.Equal(t, exception.CategoryConfig, exception.CategoryOf(err))
		})
	}
}

func TestSQLStoreCustomTable(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t, "loader_checkpoint")

	_, err := store.Advance(ctx, model.ColdStart("people"), 4)
	require.NoError(t, err)

	got, ok, err := store.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(4), got.BatchNumber)
}

func TestSQLStoreMissingTable(t *testing.T) {
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:", Pool: dbconfig.PoolConfig{MaxOpenConns: 1}}
	db, err := gormadapter.OpenDialector(sqlite.Open(cfg.Database), cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "workload")
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = checkpoint.NewSQLStore(conn, "", "people").Peek(context.Background())
	require.Error(t, err)
	assert.Equal(t, exception.CategoryConfig, exception.CategoryOf(err))
	assert.Contains(t, err.Error(), "migrate")
}

func TestRedisStoreWireFormat(t *testing.T) {
	ctx := context.Background()
	store, s := newRedisStore(t)

	_, err := store.Advance(ctx, model.ColdStart("people"), 12)
	require.NoError(t, err)

	assert.Equal(t, "blobtosql:checkpoint:people", store.Key())
	assert.Equal(t, `{"BatchNumber":12}`, s.HGet(store.Key(), "message"))
	assert.Equal(t, "1", s.HGet(store.Key(), "version"))
}

func TestRedisStoreCorruptHash(t *testing.T) {
	store, s := newRedisStore(t)
	s.HSet(store.Key(), "version", "one")

	_, _, err := store.Peek(context.Background())
	assert.ErrorIs(t, err, exception.ErrMalformedInput)
}
