package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strconv"

	"fx-advisor/internal/config"
	"fx-advisor/internal/db"
	"fx-advisor/internal/logging"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	loadEnvFunc = godotenv.Load
	openDB      = func(ctx context.Context, url string) (migrationDB, func(), error) {
		pool, err := db.InitPostgres(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return pool, pool.Close, nil
	}
)

func main() {
	_ = loadEnvFunc()

	cfg := config.Load()
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		logger.Error().Err(err).Msg("migrate failed")
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply or roll back the prediction log schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	withRunner := func(fn func(ctx context.Context, r *runner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			migrations, err := loadMigrations(migrationsFS)
			if err != nil {
				return fmt.Errorf("load migrations: %w", err)
			}
			conn, closeFn, err := openDB(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer closeFn()

			r := &runner{db: conn, migrations: migrations, logger: logger}
			if err := r.ensureTable(ctx); err != nil {
				return fmt.Errorf("ensure schema_migrations table: %w", err)
			}
			return fn(ctx, r)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withRunner(func(ctx context.Context, r *runner) error {
				n, err := r.up(ctx)
				if err != nil {
					return err
				}
				logger.Info().Int("applied", n).Msg("migrations up complete")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the most recent migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			PreRunE: func(cmd *cobra.Command, args []string) error {
				_, err := parseSteps(args)
				return err
			},
			RunE: func(cmd *cobra.Command, args []string) error {
				steps, _ := parseSteps(args)
				return withRunner(func(ctx context.Context, r *runner) error {
					n, err := r.down(ctx, steps)
					if err != nil {
						return err
					}
					logger.Info().Int("rolled_back", n).Msg("migrations down complete")
					return nil
				})(cmd, args)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withRunner(func(ctx context.Context, r *runner) error {
				version, name, err := r.version(ctx)
				if err != nil {
					return fmt.Errorf("read current version: %w", err)
				}
				if version == 0 {
					logger.Info().Msg("no migrations applied")
					return nil
				}
				logger.Info().Int64("version", version).Str("name", name).Msg("current version")
				return nil
			}),
		},
	)
	return root
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid down steps: %q", args[0])
	}
	return n, nil
}
