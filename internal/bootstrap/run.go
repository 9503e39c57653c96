package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/scolay/storefront/config"
	httpx "github.com/scolay/storefront/internal/http"
)

// RunConfig contains everything needed to run the storefront until shutdown.
type RunConfig struct {
	Config       *config.AppConfig
	Services     ServiceContainer
	HealthChecks map[string]httpx.HealthCheck
	Logger       *slog.Logger
}

// Run serves HTTP and sweeps idle auth contexts until SIGINT/SIGTERM or until
// either fails. The registry is closed before Run returns.
func Run(ctx context.Context, cfg *RunConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("run config is required")
	}
	if cfg.Services.Registry == nil {
		return errors.New("auth context registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server, err := NewHTTPServer(&HTTPServerConfig{
		Config:       cfg.Config,
		Services:     cfg.Services,
		HealthChecks: cfg.HealthChecks,
		Logger:       logger,
	})
	if err != nil {
		cfg.Services.Registry.Close()
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error { return ServeHTTP(gctx, server, logger) })
	g.Go(func() error { return cfg.Services.Registry.Run(gctx) })

	err = g.Wait()
	logger.Info("storefront stopped")
	return err
}
