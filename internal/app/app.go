// Package app owns the mock exchange lifecycle: it wires the simulators,
// order desk, wallet and signal bus, then runs the configured mode until the
// context ends.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/config"
)

// modeFunc runs one operating mode until ctx is cancelled.
type modeFunc func(a *App, ctx context.Context, deps *Dependencies) error

var modes = map[string]modeFunc{
	"server":   (*App).ServerMode,
	"headless": (*App).HeadlessMode,
}

// App holds the configuration, logger and the cleanup hooks registered while
// wiring. Hooks run in reverse order on Close.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	startedAt time.Time

	closeOnce sync.Once
	closers   []func()
}

// New creates an App. Nothing is started until Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "app")),
		startedAt: time.Now(),
	}
}

// Uptime reports how long the App has existed.
func (a *App) Uptime() time.Duration {
	return time.Since(a.startedAt)
}

// Run resolves the mode, wires dependencies and blocks in the mode loop.
// An unknown mode fails before anything is connected.
func (a *App) Run(ctx context.Context) error {
	run, ok := modes[strings.ToLower(a.cfg.Mode)]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}

	a.logger.InfoContext(ctx, "starting mock exchange",
		slog.String("mode", a.cfg.Mode),
		slog.String("symbol", a.cfg.Market.Symbol),
		slog.String("bus", a.cfg.Bus.Driver),
		slog.Uint64("seed", a.cfg.Market.Seed),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	return run(a, ctx, deps)
}

// Close runs the cleanup hooks once; later calls do nothing.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.logger.Info("shutting down", slog.Duration("uptime", a.Uptime()))
		for i := len(a.closers) - 1; i >= 0; i-- {
			a.closers[i]()
		}
		a.closers = nil
	})
}
