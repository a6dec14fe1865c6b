// Package redisclient builds the redis client shared by the range queue, the dataset lease
// and the redis checkpoint store.
package redisclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis"
	"go.uber.org/fx"

	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// NewClient creates a client for cfg. A comma-separated Addr selects cluster or sentinel mode
// the way redis.NewUniversalClient does.
func NewClient(cfg config.RedisConfig) redis.UniversalClient {
	addrs := strings.Split(cfg.Addr, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Key joins prefix and parts with ':'.
func Key(prefix string, parts ...string) string {
	if prefix == "" {
		return strings.Join(parts, ":")
	}
	return prefix + ":" + strings.Join(parts, ":")
}

func newClientWithLifecycle(lc fx.Lifecycle, cfg *config.Config) redis.UniversalClient {
	client := NewClient(cfg.Blobtosql.Redis)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping().Err(); err != nil {
				return fmt.Errorf("redis at %s is not reachable: %w", cfg.Blobtosql.Redis.Addr, err)
			}
			logger.Debugf("Connected to redis at %s.", cfg.Blobtosql.Redis.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// Module provides the shared redis.UniversalClient.
var Module = fx.Options(
	fx.Provide(newClientWithLifecycle),
)
