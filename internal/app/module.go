// Package app wires the loader's components with uber-fx and exposes the operations
// the command line drives: run an archive, migrate the destination, inspect or set a checkpoint.
package app

import (
	"github.com/go-redis/redis"
	"go.uber.org/fx"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/queue"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/queue/redisqueue"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/redisclient"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/storage"
	"github.com/tigerroll/blobtosql/pkg/batch/component/loader"
	"github.com/tigerroll/blobtosql/pkg/batch/component/migration"
	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/infrastructure/metrics"
	reposql "github.com/tigerroll/blobtosql/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/blobtosql/pkg/batch/infrastructure/telemetry"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

const moduleName = "app"

// NewBulkLoader creates the bulk loader of the destination table.
func NewBulkLoader(conn database.DBConnection, cfg *config.Config) (loader.BulkLoader, error) {
	b := cfg.Blobtosql.Batch
	policy, err := model.ParseDuplicatePolicy(b.DuplicatePolicy)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid duplicate policy", err, exception.CategoryConfig)
	}
	return loader.NewSQLBulkLoader(conn, loader.Options{
		Table:        b.DestinationTable,
		TransferSize: b.TransferSize,
		Policy:       policy,
	}), nil
}

// NewPublisher creates the redis list publisher ranges are sent to.
func NewPublisher(db redis.UniversalClient, cfg *config.Config) queue.Publisher {
	return redisqueue.NewQueueFromConfig(db, cfg)
}

// Module assembles every component a command may need. fx only constructs what a
// command populates, so migrate never connects to redis.
var Module = fx.Options(
	logger.Module,
	config.Module,
	gormadapter.Module,
	storage.Module,
	redisclient.Module,
	telemetry.Module,
	metrics.Module,
	migration.Module,
	reposql.Module,

	fx.Provide(NewBulkLoader),
	fx.Provide(NewPublisher),
	fx.Provide(NewStoreFactory),
	fx.Provide(NewRunner),
)
