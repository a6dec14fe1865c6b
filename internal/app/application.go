package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// lifecycleTimeout bounds the fx start and stop hooks.
const lifecycleTimeout = 30 * time.Second

// Options selects the configuration of an Execute call.
type Options struct {
	// EnvFilePath is the .env file loaded before the configuration. Empty means ".env" when present.
	EnvFilePath    string
	EmbeddedConfig config.EmbeddedConfig
	// Extra is appended to Module, typically to replace a provider in tests.
	Extra []fx.Option
}

// Execute builds the application, populates targets, starts the lifecycle, calls fn and stops it again.
// targets are pointers to the components fn uses, e.g. *Runner or *migration.Params; only they and
// their dependencies are constructed.
func Execute(ctx context.Context, opts Options, fn func(ctx context.Context) error, targets ...interface{}) error {
	fxApp := fx.New(
		fx.Supply(
			opts.EmbeddedConfig,
			fx.Annotate(opts.EnvFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		Module,
		fx.Options(opts.Extra...),
		fx.Populate(targets...),
	)
	if err := fxApp.Err(); err != nil {
		return exception.NewBatchError(moduleName, "failed to build application", err, exception.CategoryConfig)
	}

	startCtx, cancel := context.WithTimeout(ctx, lifecycleTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return exception.NewBatchError(moduleName, "failed to start application", err, exception.CategoryTransient)
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), lifecycleTimeout)
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil {
		logger.Warnf("Application did not stop cleanly: %v", err)
	}
	logger.Debugf("Application stopped.")
	return runErr
}
