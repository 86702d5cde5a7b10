package sim

import (
	"log/slog"
	"math/rand/v2"
	"time"
)

// Source is the randomness a simulator draws from. *rand.Rand satisfies it.
// A Source is owned by one simulator and only used under its lock.
type Source interface {
	Float64() float64
}

// NewSource returns a PCG-backed Source. A zero seed picks a random one.
func NewSource(seed uint64) Source {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// uniform draws from [lo, hi).
func uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Option configures a simulator.
type Option func(*options)

type options struct {
	src      Source
	now      func() time.Time
	interval time.Duration
	logger   *slog.Logger
}

// WithSource sets the random source.
func WithSource(src Source) Option {
	return func(o *options) { o.src = src }
}

// WithClock sets the function used to timestamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithInterval overrides the simulator's tick cadence.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithLogger sets the logger. The simulator adds its own component field.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(interval time.Duration, component string, opts []Option) options {
	o := options{
		now:      time.Now,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = NewSource(0)
	}
	if o.interval <= 0 {
		o.interval = interval
	}
	o.logger = o.logger.With(slog.String("component", component))
	return o
}
