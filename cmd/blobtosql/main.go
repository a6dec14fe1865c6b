package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	_ "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/blobtosql/pkg/batch/adapter/database/gorm/sqlite"
	_ "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage/gcs"
	_ "github.com/tigerroll/blobtosql/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"

	_ "embed"
)

// embeddedConfig is the default configuration. ${VAR} references are expanded and
// BLOBTOSQL_* environment variables override individual keys.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Stopping after the current stage...", sig)
		cancel()
	}()

	if err := RootCmd(embeddedConfig).ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		cancel()
		os.Exit(exitCode(err))
	}
}
