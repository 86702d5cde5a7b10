package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/mockexchange/internal/domain"
)

const (
	// ChartFloor is the lowest value a chart point can take.
	ChartFloor = 1800.0

	// DefaultTimeframe is the chart resolution a session starts with.
	DefaultTimeframe = domain.TimeframeHour

	chartNoise = 25.0
)

// ChartSimulator derives a synthetic price history for the selected
// timeframe. Every regeneration replaces the whole series, so a timeframe
// switch or a price tick may redraw history discontinuously.
type ChartSimulator struct {
	mu        sync.RWMutex
	timeframe domain.Timeframe
	series    domain.ChartSeries
	ref       ReferenceSource

	src    Source
	now    func() time.Time
	logger *slog.Logger

	feed Feed[domain.ChartSeries]
	runner
}

// NewChartSimulator creates a ChartSimulator for tf and builds the first
// series. An invalid tf falls back to DefaultTimeframe.
func NewChartSimulator(ref ReferenceSource, tf domain.Timeframe, opts ...Option) *ChartSimulator {
	o := buildOptions(0, "chart_simulator", opts)
	if !tf.Valid() {
		tf = DefaultTimeframe
	}
	s := &ChartSimulator{
		timeframe: tf,
		ref:       ref,
		src:       o.src,
		now:       o.now,
		logger:    o.logger,
	}
	s.series = generateSeries(s.src, tf, ref.Price(), s.now())
	return s
}

// generateSeries walks backward from reference through tf.Points() steps,
// each adding uniform(-25, +25) noise clamped to ChartFloor. The result runs
// left to right from the oldest offset down to "0<unit>".
func generateSeries(src Source, tf domain.Timeframe, reference float64, ts time.Time) domain.ChartSeries {
	n := tf.Points()
	unit := tf.Unit()
	points := make([]domain.SeriesPoint, n+1)

	base := reference
	for k := 0; k <= n; k++ {
		base = math.Max(ChartFloor, base+uniform(src, -chartNoise, chartNoise))
		points[n-k] = domain.SeriesPoint{
			Label: fmt.Sprintf("%d%s", k, unit),
			Value: base,
		}
	}

	return domain.ChartSeries{
		Timeframe: tf,
		Reference: reference,
		Points:    points,
		Time:      ts,
	}
}

// Timeframe returns the selected timeframe.
func (s *ChartSimulator) Timeframe() domain.Timeframe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeframe
}

// SetTimeframe selects a new timeframe and regenerates the series from the
// live reference price.
func (s *ChartSimulator) SetTimeframe(tf domain.Timeframe) (domain.ChartSeries, error) {
	if !tf.Valid() {
		return domain.ChartSeries{}, fmt.Errorf("sim: set timeframe %q: %w", tf, domain.ErrInvalidTimeframe)
	}

	s.mu.Lock()
	s.timeframe = tf
	s.mu.Unlock()

	return s.Regenerate(s.ref.Price()), nil
}

// Regenerate rebuilds the series for the selected timeframe around
// reference and publishes it.
func (s *ChartSimulator) Regenerate(reference float64) domain.ChartSeries {
	s.mu.Lock()
	series := generateSeries(s.src, s.timeframe, reference, s.now())
	s.series = series
	s.mu.Unlock()

	s.feed.Publish(series)
	return series
}

// Snapshot returns the current series. The points slice is a copy.
func (s *ChartSimulator) Snapshot() domain.ChartSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.series
	out.Points = slices.Clone(s.series.Points)
	return out
}

// Subscribe returns a channel receiving each regenerated series.
func (s *ChartSimulator) Subscribe() (<-chan domain.ChartSeries, func()) {
	return s.feed.Subscribe()
}

// Run regenerates the series on every reference tick until ctx is
// cancelled.
func (s *ChartSimulator) Run(ctx context.Context) error {
	ticks, cancel := s.ref.Subscribe()
	defer cancel()

	s.logger.InfoContext(ctx, "chart simulator started",
		slog.String("timeframe", string(s.Timeframe())),
	)
	defer s.logger.Info("chart simulator stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			s.Regenerate(tick.Price)
		}
	}
}

// Start runs the simulator in the background until Stop or ctx cancellation.
func (s *ChartSimulator) Start(ctx context.Context) { s.start(ctx, s.Run) }

// Stop halts a simulator started with Start and waits for it to exit.
func (s *ChartSimulator) Stop() { s.stop() }
