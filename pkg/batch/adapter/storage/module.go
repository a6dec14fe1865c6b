package storage

import (
	"context"

	"go.uber.org/fx"

	coreConfig "github.com/tigerroll/blobtosql/pkg/batch/core/config"
)

// NewArchiveConnection opens the storage connection archives are read from.
func NewArchiveConnection(p *Provider, cfg *coreConfig.Config) (StorageConnection, error) {
	return p.GetConnection(cfg.Blobtosql.Source.StorageRef)
}

func newProviderWithLifecycle(lc fx.Lifecycle, cfg *coreConfig.Config) *Provider {
	p := NewProvider(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return p.CloseAll()
		},
	})
	return p
}

// Module provides the storage provider and the archive connection.
// Adapters are made available by importing the local and gcs sub-packages.
var Module = fx.Options(
	fx.Provide(newProviderWithLifecycle),
	fx.Provide(NewArchiveConnection),
)
