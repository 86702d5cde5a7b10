package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/mockexchange/internal/domain"
	"github.com/alanyoungcy/mockexchange/internal/server"
	"github.com/alanyoungcy/mockexchange/internal/server/handler"
	"github.com/alanyoungcy/mockexchange/internal/server/ws"
)

const (
	// statusInterval is how often server mode publishes a status envelope.
	statusInterval = 10 * time.Second

	// chartTail is how many trailing chart points the headless ticker logs.
	chartTail = 5

	shutdownTimeout = 5 * time.Second
)

// startSimulation runs the simulators, the order desk and the market service
// inside g.
func (a *App) startSimulation(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error { return deps.Price.Run(ctx) })
	g.Go(func() error { return deps.Trades.Run(ctx) })
	g.Go(func() error { return deps.Book.Run(ctx) })
	g.Go(func() error { return deps.Chart.Run(ctx) })
	g.Go(func() error { return deps.Desk.Run(ctx) })
	g.Go(func() error { return deps.Market.Run(ctx) })
}

// status summarises the running service. hub may be nil.
func (a *App) status(deps *Dependencies, hub *ws.Hub) domain.Status {
	st := domain.Status{
		Mode:          a.cfg.Mode,
		Symbol:        a.cfg.Market.Symbol,
		UptimeSeconds: int64(a.Uptime().Seconds()),
		OpenDrafts:    deps.Desk.Len(),
	}
	if hub != nil {
		st.WSClients = hub.ClientCount()
	}
	return st
}

// ServerMode runs the simulation behind the HTTP + WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSimulation(ctx, g, deps)

	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "server.enabled is false; running simulation only")
		return g.Wait()
	}

	var hub *ws.Hub
	hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Status:   func() domain.Status { return a.status(deps, hub) },
		Snapshot: deps.Market.Latest,
	})
	g.Go(func() error { return hub.Run(ctx) })

	// Periodic status for connected views.
	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				deps.Market.PublishStatus(ctx, a.status(deps, hub))
			}
		}
	})

	var pinger handler.Pinger
	if deps.Redis != nil {
		pinger = deps.Redis
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health: handler.NewHealthHandler(pinger, a.logger),
		Status: handler.NewStatusHandler(func() domain.Status { return a.status(deps, hub) }),
		Market: handler.NewMarketHandler(a.cfg.Market.Symbol, deps.Price, deps.Trades, deps.Book, deps.Chart, a.logger),
		Drafts: handler.NewDraftHandler(deps.Desk, a.logger),
		Wallet: handler.NewWalletHandler(deps.Wallet, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// HeadlessMode runs the simulation and logs a compact rendering of every view
// each headless.log_interval.
func (a *App) HeadlessMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting headless mode",
		slog.Duration("log_interval", a.cfg.Headless.LogInterval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)
	a.startSimulation(ctx, g, deps)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Headless.LogInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.logger.LogAttrs(ctx, slog.LevelInfo, "market snapshot", renderSnapshot(deps)...)
			}
		}
	})

	return g.Wait()
}

// renderSnapshot flattens the header price, best bid/ask, latest trade and
// chart tail into log attributes.
func renderSnapshot(deps *Dependencies) []slog.Attr {
	tick := deps.Price.Current()
	book := deps.Book.Snapshot()
	series := deps.Chart.Snapshot()

	attrs := []slog.Attr{
		slog.String("price", fmt.Sprintf("%.2f", tick.Price)),
		slog.String("change", fmt.Sprintf("%+.2f (%+.2f%%)", tick.Change, tick.ChangePercent)),
		slog.String("best_bid", fmt.Sprintf("%.2f", book.BestBid())),
		slog.String("best_ask", fmt.Sprintf("%.2f", book.BestAsk())),
	}

	if recent := deps.Trades.Recent(1); len(recent) > 0 {
		t := recent[0]
		attrs = append(attrs, slog.String("last_trade",
			fmt.Sprintf("%s %.4f @ %.2f", t.Side, t.Amount, t.Price)))
	}

	pts := series.Points[max(0, len(series.Points)-chartTail):]
	tail := make([]string, len(pts))
	for i, p := range pts {
		tail[i] = fmt.Sprintf("%s=%.2f", p.Label, p.Value)
	}
	attrs = append(attrs,
		slog.String("timeframe", string(series.Timeframe)),
		slog.String("chart_tail", strings.Join(tail, " ")),
	)
	return attrs
}
