package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/domain"
	"github.com/alanyoungcy/mockexchange/internal/sim"
)

// Ticker exposes the current reference price.
type Ticker interface {
	Current() domain.PriceTick
}

// TradeTape exposes the recent-trade history, most recent first.
type TradeTape interface {
	Recent(limit int) []domain.Trade
}

// DepthBook exposes the depth ladder trimmed for display.
type DepthBook interface {
	Display(compact bool) domain.DepthLadder
}

// Chart exposes the chart series and its timeframe control.
type Chart interface {
	Snapshot() domain.ChartSeries
	SetTimeframe(tf domain.Timeframe) (domain.ChartSeries, error)
}

// MarketHandler serves the simulated market views.
type MarketHandler struct {
	symbol string
	ticker Ticker
	trades TradeTape
	book   DepthBook
	chart  Chart
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler over the simulators.
func NewMarketHandler(symbol string, ticker Ticker, trades TradeTape, book DepthBook, chart Chart, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		symbol: symbol,
		ticker: ticker,
		trades: trades,
		book:   book,
		chart:  chart,
		logger: logHandler(logger, "market"),
	}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	domain.PriceTick
}

// GetTicker returns the latest reference price tick.
// GET /api/ticker
func (h *MarketHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tickerResponse{Symbol: h.symbol, PriceTick: h.ticker.Current()})
}

type tradesResponse struct {
	Symbol string         `json:"symbol"`
	Trades []domain.Trade `json:"trades"`
}

// ListTrades returns recent trades, most recent first.
// GET /api/trades?compact=true&limit=20
func (h *MarketHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	def := sim.TradeDisplayLimit(parseCompact(r))
	trades := h.trades.Recent(parseLimit(r, def, sim.TradeHistoryCap))
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, tradesResponse{Symbol: h.symbol, Trades: trades})
}

type depthRow struct {
	domain.DepthLevel
	DepthPercent float64 `json:"depth_percent"`
}

type orderbookResponse struct {
	Symbol    string     `json:"symbol"`
	Reference float64    `json:"reference"`
	Bids      []depthRow `json:"bids"`
	Asks      []depthRow `json:"asks"`
	MaxTotal  float64    `json:"max_total"`
	Spread    float64    `json:"spread"`
	Time      time.Time  `json:"time"`
}

func depthRows(l domain.DepthLadder, levels []domain.DepthLevel) []depthRow {
	rows := make([]depthRow, len(levels))
	for i, lvl := range levels {
		rows[i] = depthRow{DepthLevel: lvl, DepthPercent: l.DepthPercent(lvl)}
	}
	return rows
}

// GetOrderbook returns the display ladder with a depth bar width per row.
// Asks are listed farthest first so the ladder reads top to bottom.
// GET /api/orderbook?compact=true
func (h *MarketHandler) GetOrderbook(w http.ResponseWriter, r *http.Request) {
	l := h.book.Display(parseCompact(r))
	resp := orderbookResponse{
		Symbol:    h.symbol,
		Reference: l.Reference,
		Bids:      depthRows(l, l.Bids),
		Asks:      depthRows(l, l.Asks),
		MaxTotal:  l.MaxTotal,
		Time:      l.Time,
	}
	if len(l.Bids) > 0 && len(l.Asks) > 0 {
		resp.Spread = l.Asks[len(l.Asks)-1].Price - l.Bids[0].Price
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetChart returns the current chart series.
// GET /api/chart
func (h *MarketHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chart.Snapshot())
}

type timeframeRequest struct {
	Timeframe string `json:"timeframe"`
}

// SetTimeframe switches the chart timeframe and returns the regenerated series.
// PUT /api/chart/timeframe
func (h *MarketHandler) SetTimeframe(w http.ResponseWriter, r *http.Request) {
	var req timeframeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tf, err := domain.ParseTimeframe(req.Timeframe)
	if err != nil {
		writeDomainError(w, r, h.logger, "set timeframe", err)
		return
	}
	series, err := h.chart.SetTimeframe(tf)
	if err != nil {
		writeDomainError(w, r, h.logger, "set timeframe", err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}
