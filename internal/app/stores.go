package app

import (
	"time"

	"github.com/go-redis/redis"
	"go.uber.org/fx"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/redisclient"
	"github.com/tigerroll/blobtosql/pkg/batch/component/checkpoint"
	"github.com/tigerroll/blobtosql/pkg/batch/component/lease"
	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
)

// StoreParams defines the dependencies of NewStoreFactory.
type StoreParams struct {
	fx.In
	Config      *config.Config
	Destination database.DBConnection
	Redis       redis.UniversalClient
}

// StoreFactory creates the per-dataset checkpoint store and lease.
type StoreFactory struct {
	cfg  *config.Config
	conn database.DBConnection
	db   redis.UniversalClient
}

// NewStoreFactory creates a StoreFactory.
func NewStoreFactory(p StoreParams) *StoreFactory {
	return &StoreFactory{cfg: p.Config, conn: p.Destination, db: p.Redis}
}

// Checkpoint returns the checkpoint store of dataset on the configured backend.
func (f *StoreFactory) Checkpoint(dataset string) checkpoint.Store {
	c := f.cfg.Blobtosql
	if c.Checkpoint.Backend == "redis" {
		return checkpoint.NewRedisStore(f.db, c.Redis.KeyPrefix, dataset)
	}
	return checkpoint.NewSQLStore(f.conn, c.Checkpoint.Table, dataset)
}

// Lease returns the run lease of dataset, or nil when leases are disabled.
func (f *StoreFactory) Lease(dataset string) lease.Lease {
	l := f.cfg.Blobtosql.Lease
	if !l.Enabled {
		return nil
	}
	return lease.NewRedisLease(f.db,
		redisclient.Key(f.cfg.Blobtosql.Redis.KeyPrefix, "lease", dataset),
		time.Duration(l.TTLSeconds)*time.Second,
		uint(max(l.AcquireAttempts, 1)),
		time.Duration(l.AcquireDelayMillis)*time.Millisecond)
}

// LeaseTTL returns the lifetime of a lease after its last renewal.
func (f *StoreFactory) LeaseTTL() time.Duration {
	return time.Duration(f.cfg.Blobtosql.Lease.TTLSeconds) * time.Second
}

// RenewInterval returns how often a held lease is renewed. 0 means leases are disabled.
func (f *StoreFactory) RenewInterval() time.Duration {
	l := f.cfg.Blobtosql.Lease
	if !l.Enabled {
		return 0
	}
	return time.Duration(l.RenewIntervalSeconds) * time.Second
}
