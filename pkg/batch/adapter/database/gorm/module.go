package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
)

// NewDestinationConnection opens the connection records are loaded into.
func NewDestinationConnection(lc fx.Lifecycle, provider database.DBProvider, cfg *config.Config) (database.DBConnection, error) {
	conn, err := provider.GetConnection(cfg.Blobtosql.Infrastructure.DestinationDBRef)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return conn.RefreshConnection(ctx)
		},
	})
	return conn, nil
}

func newProviderWithLifecycle(lc fx.Lifecycle, cfg *config.Config) database.DBProvider {
	p := NewProvider(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.CloseAll()
		},
	})
	return p
}

// Module provides the database provider and the destination connection.
// Dialects are made available by importing the postgres, mysql and sqlite sub-packages.
var Module = fx.Options(
	fx.Provide(newProviderWithLifecycle),
	fx.Provide(NewDestinationConnection),
)
