package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/Sternrassler/polyfill-cache/pkg/config"
	"github.com/Sternrassler/polyfill-cache/pkg/logging"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", os.Getenv("POLYFILL_CONFIG"), "path to a TOML, YAML or JSON config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "polyfill-server: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:      logging.LogLevel(cfg.Log.Level),
		Pretty:     cfg.Log.Pretty,
		Output:     os.Stderr,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}

// run wires the service, restores the snapshot, serves until ctx is done and
// writes the snapshot back on shutdown.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	service, err := buildService(cfg)
	if err != nil {
		return err
	}

	snapshot, closeSnapshot, err := buildSnapshotter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSnapshot()

	if snapshot != nil {
		restoreSnapshot(ctx, service, snapshot, logger)
	}

	if cfg.Prime.OnStart {
		go func() {
			if _, err := service.PrimeCache(ctx, logging.NewLogger("primer")); err != nil {
				logger.Error().Err(err).Msg("Cache priming failed")
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: newServer(service, snapshot, cfg.Server.CacheMaxAge, logging.NewLogger("http")).routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Listen).Msg("Starting polyfill server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down polyfill server")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Graceful shutdown incomplete")
	}

	if snapshot != nil {
		if _, err := service.SerializeTo(shutdownCtx, snapshot); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	return nil
}
