// Package app owns the leaguebot process lifecycle. It wires the ledger, its
// store and the optional infrastructure (Redis, S3, notifications, metrics)
// from configuration and releases them on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/predictionleague/internal/config"
)

// metricsPushTimeout bounds the final Pushgateway push on Close.
const metricsPushTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, the
// wired dependencies and a list of cleanup functions that are called in
// reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	deps    *Dependencies
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Open wires all dependencies on first use and returns them.
func (a *App) Open(ctx context.Context) (*Dependencies, error) {
	if a.deps != nil {
		return a.deps, nil
	}
	a.logger.DebugContext(ctx, "wiring dependencies",
		slog.String("store", a.cfg.Store.Driver),
		slog.Bool("redis", a.cfg.Redis.Enabled),
		slog.Bool("s3", a.cfg.S3.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.deps = deps
	a.closers = append(a.closers, cleanup)
	return deps, nil
}

// Close pushes metrics when a Pushgateway is configured and tears down all
// resources in reverse registration order. It is safe to call multiple times;
// subsequent calls are no-ops.
func (a *App) Close() {
	if a.deps != nil && a.deps.Metrics != nil && a.cfg.Metrics.PushgatewayURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), metricsPushTimeout)
		if err := a.deps.Metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
			a.logger.Warn("metrics push failed", slog.String("error", err.Error()))
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.deps = nil
}
