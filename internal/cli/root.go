// Package cli implements the memed command line: the HTTP server, a one-off
// settlement run for schedulers without HTTP access, and schema migration.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/meme-daily-backend/internal/config"
	"github.com/tbourn/meme-daily-backend/internal/observability"
	"github.com/tbourn/meme-daily-backend/internal/repo"
	"github.com/tbourn/meme-daily-backend/internal/sysutil"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Version string

	// loadConfig is replaced in tests.
	loadConfig func() (config.Config, error)
	logOut     io.Writer
}

// NewRootCommand creates the memed root command.
func NewRootCommand(version string) *cobra.Command {
	return newRoot(&RootOptions{Version: version, loadConfig: config.Load})
}

func newRoot(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "memed",
		Short:         "Daily meme caption contest backend",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSettleCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	return cmd
}

// setup loads .env and configuration and installs the process logger.
func (o *RootOptions) setup(cmd *cobra.Command) (config.Config, error) {
	if o.EnvFile != "" {
		if err := godotenv.Load(o.EnvFile); err != nil && cmd.Flags().Changed("env-file") {
			return config.Config{}, fmt.Errorf("load env file %s: %w", o.EnvFile, err)
		}
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	out := o.logOut
	if out == nil {
		out = cmd.ErrOrStderr()
	}
	sysutil.SetupLogger(out, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	return cfg, nil
}

// openDB opens the configured database and migrates the schema.
func openDB(cfg config.Config) (*gorm.DB, error) {
	dsn := cfg.DB.Path
	if cfg.DB.Driver == "postgres" {
		dsn = cfg.DB.URL
	}
	db, err := repo.Open(cfg.DB.Driver, sysutil.FirstNonEmpty(dsn, cfg.DB.Path, cfg.DB.URL))
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DB.Driver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}
}

// startTracing installs the tracer provider and returns its shutdown.
func startTracing(ctx context.Context, cfg config.Config, version string) func() {
	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		return func() {}
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}
}
