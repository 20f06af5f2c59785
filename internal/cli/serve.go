package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/meme-daily-backend/internal/app"
	"github.com/tbourn/meme-daily-backend/internal/config"
	httpapi "github.com/tbourn/meme-daily-backend/internal/http"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	PurgeEvery time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM.

The daily settlement is triggered externally with GET /settlement/run.

Example:
  memed serve
  PORT=9090 LOG_PRETTY=true memed serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}
	cmd.Flags().DurationVar(&opts.PurgeEvery, "purge-every", time.Hour, "interval for deleting expired idempotency keys (0 disables)")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	defer startTracing(ctx, cfg, opts.Version)()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db)

	in, closeIntegrations, err := app.NewIntegrations(ctx, db, cfg)
	if err != nil {
		return err
	}
	defer closeIntegrations()
	a := app.Build(db, cfg, in)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, a.Deps(), a.Idempotency.Exists)

	srv := newServer(cfg, r)
	go purgeLoop(ctx, a.Idempotency, opts.PurgeEvery)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return <-errCh
}

func newServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

type purger interface {
	Purge(ctx context.Context) (int64, error)
}

// purgeLoop deletes expired idempotency records every interval until ctx ends.
func purgeLoop(ctx context.Context, p purger, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.Purge(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge idempotency keys")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("purged idempotency keys")
			}
		}
	}
}
