package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/server/handler"
	"github.com/alanyoungcy/mockexchange/internal/server/middleware"
	"github.com/alanyoungcy/mockexchange/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Market *handler.MarketHandler
	Drafts *handler.DraftHandler
	Wallet *handler.WalletHandler
}

// Server is the HTTP + WebSocket API behind the mock trading dashboard.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// route binds a method-qualified ServeMux pattern to its handler.
type route struct {
	pattern string
	handle  http.HandlerFunc
}

func (h Handlers) routes() []route {
	return []route{
		{"GET /api/health", h.Health.HealthCheck},
		{"GET /api/status", h.Status.GetStatus},

		{"GET /api/ticker", h.Market.GetTicker},
		{"GET /api/trades", h.Market.ListTrades},
		{"GET /api/orderbook", h.Market.GetOrderbook},
		{"GET /api/chart", h.Market.GetChart},
		{"PUT /api/chart/timeframe", h.Market.SetTimeframe},

		{"POST /api/drafts", h.Drafts.CreateDraft},
		{"GET /api/drafts/{id}", h.Drafts.GetDraft},
		{"PATCH /api/drafts/{id}", h.Drafts.UpdateDraft},
		{"DELETE /api/drafts/{id}", h.Drafts.DeleteDraft},
		{"POST /api/drafts/{id}/quickfill", h.Drafts.QuickFill},
		{"POST /api/drafts/{id}/submit", h.Drafts.SubmitDraft},

		{"GET /api/wallet", h.Wallet.GetWallet},
		{"POST /api/wallet/connect", h.Wallet.Connect},
		{"POST /api/wallet/disconnect", h.Wallet.Disconnect},
		{"POST /api/wallet/copy", h.Wallet.CopyAddress},
	}
}

// NewServer registers every API route, plus /ws when a hub is given, behind
// the logging and CORS middleware.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	for _, rt := range handlers.routes() {
		mux.HandleFunc(rt.pattern, rt.handle)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured port and serves until Shutdown. The bound
// address is logged, so port 0 is usable.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("server: listening", slog.String("addr", ln.Addr().String()))

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
