package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/tigerroll/blobtosql/internal/app"
	"github.com/tigerroll/blobtosql/pkg/batch/component/checkpoint"
	"github.com/tigerroll/blobtosql/pkg/batch/component/migration"
	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

// Exit codes of a failed command.
const (
	exitFailure = 1
	exitConfig  = 2
	exitLease   = 3
)

func exitCode(err error) int {
	switch exception.CategoryOf(err) {
	case exception.CategoryConfig:
		return exitConfig
	case exception.CategoryLease:
		return exitLease
	default:
		return exitFailure
	}
}

// RootCmd is the root command; every sub-command builds its own application from embedded.
func RootCmd(embedded []byte) *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           "blobtosql",
		Short:         "blobtosql loads zipped CSV datasets into SQL in resumable batches and publishes row ranges.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", envOr("ENV_FILE_PATH", ".env"), "path of the .env file loaded before the configuration")

	opts := func(extra ...fx.Option) app.Options {
		return app.Options{EnvFilePath: envFile, EmbeddedConfig: config.EmbeddedConfig(embedded), Extra: extra}
	}

	cmd.AddCommand(
		runCmd(opts),
		migrateCmd(opts),
		checkpointCmd(opts),
		datasetsCmd(opts),
		historyCmd(opts),
	)
	return cmd
}

type optionsFunc func(extra ...fx.Option) app.Options

func runCmd(opts optionsFunc) *cobra.Command {
	var archive string
	var maxBatch int64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load an archive from the source bucket, resuming from its checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var extra []fx.Option
			if cmd.Flags().Changed("max-batch-number") {
				extra = append(extra, fx.Decorate(func(cfg *config.Config) *config.Config {
					cfg.Blobtosql.Batch.MaxBatchNumber = maxBatch
					return cfg
				}))
			}

			var runner *app.Runner
			return app.Execute(cmd.Context(), opts(extra...), func(ctx context.Context) error {
				result, err := runner.Run(ctx, archive)
				if result.RunID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "run %s: dataset %s %s, batches %d, records %d, ranges %d, next batch %d, %s\n",
						result.RunID, result.Dataset, result.FinalState, result.Batches, result.Records,
						result.RangesEmitted, result.NextBatch, result.Duration().Round(time.Millisecond))
				}
				return err
			}, &runner)
		},
	}
	cmd.Flags().StringVar(&archive, "archive", "", "object name of the zip archive in the source bucket")
	cmd.Flags().Int64Var(&maxBatch, "max-batch-number", 0, "last batch to process in this run (overrides batch.max_batch_number)")
	_ = cmd.MarkFlagRequired("archive")
	return cmd
}

func migrateCmd(opts optionsFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Apply, revert or inspect the destination schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			var params migration.Params
			return app.Execute(cmd.Context(), opts(), func(ctx context.Context) error {
				if command != "version" {
					return app.Migrate(ctx, params, command)
				}
				version, dirty, ok, err := params.Migrator.Version(ctx, params.MigrationsFS, "")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "no migration applied")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			}, &params)
		},
	}
	return cmd
}

func checkpointCmd(opts optionsFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or set the checkpoint of a dataset",
	}

	show := &cobra.Command{
		Use:   "show <dataset|archive>",
		Short: "Print the next batch a run of the dataset starts at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := model.DatasetFromArchive(args[0])
			var stores *app.StoreFactory
			var runner *app.Runner
			return app.Execute(cmd.Context(), opts(), func(ctx context.Context) error {
				cp, err := checkpoint.Current(ctx, stores.Checkpoint(dataset))
				if err != nil {
					return err
				}
				rows, err := runner.LoadedRows(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dataset %s: next batch %d, version %d, destination rows %d\n",
					dataset, cp.BatchNumber, cp.Version, rows)
				return nil
			}, &stores, &runner)
		},
	}

	var batch int64
	set := &cobra.Command{
		Use:   "set <dataset|archive> --batch N",
		Short: "Force the next batch of the dataset, e.g. to reprocess or skip batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := model.DatasetFromArchive(args[0])
			var stores *app.StoreFactory
			return app.Execute(cmd.Context(), opts(), func(ctx context.Context) error {
				cp, err := checkpoint.Force(ctx, stores.Checkpoint(dataset), batch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dataset %s: next batch %d, version %d\n", dataset, cp.BatchNumber, cp.Version)
				return nil
			}, &stores)
		},
	}
	set.Flags().Int64Var(&batch, "batch", 0, "batch number the next run starts at (>= 1)")
	_ = set.MarkFlagRequired("batch")

	cmd.AddCommand(show, set)
	return cmd
}

func datasetsCmd(opts optionsFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Work with the archives of the source bucket",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List the archives of the source bucket and their checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runner *app.Runner
			return app.Execute(cmd.Context(), opts(), func(ctx context.Context) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ARCHIVE\tDATASET\tNEXT BATCH\tVERSION")
				err := runner.Datasets(ctx, func(archive string, cp model.Checkpoint) error {
					_, err := fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", archive, cp.Dataset, cp.BatchNumber, cp.Version)
					return err
				})
				if err != nil {
					return err
				}
				return w.Flush()
			}, &runner)
		},
	}
	cmd.AddCommand(list)
	return cmd
}

func historyCmd(opts optionsFunc) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <dataset|archive>",
		Short: "List the recorded runs of a dataset, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := model.DatasetFromArchive(args[0])
			var runner *app.Runner
			return app.Execute(cmd.Context(), opts(), func(ctx context.Context) error {
				runs, err := runner.History(ctx, dataset, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "RUN\tSTARTED\tSTATE\tBATCHES\tFIRST\tNEXT\tRECORDS\tFAILURE")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n", r.RunID, r.StartTime.Format(time.RFC3339),
						r.FinalState, r.Batches, r.FirstBatch, r.NextBatch, r.Records, r.Failure)
				}
				return w.Flush()
			}, &runner)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list (0 lists all)")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
