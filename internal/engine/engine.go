package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/idsync/internal/metrics"
)

// DefaultWorkers is the number of concurrent writers used when none is set.
const DefaultWorkers = 1

// Engine runs reconcile, sync, propagate and snapshot operations against
// caller-supplied collections. It holds no store handles of its own.
//
// Thread-safety: an Engine is safe for concurrent use; each call builds its
// own index and report.
type Engine struct {
	workers int
	dryRun  bool
	runIDs  RunIDGenerator
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many updates may be in flight at once.
// Values below 1 are treated as 1.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// WithDryRun makes write operations plan and report without writing.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithClock sets the wall clock used for report timings.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMetrics records outcomes on m. A nil m records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		workers: DefaultWorkers,
		runIDs:  UUIDv7Generator{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DryRun reports whether the engine skips writes.
func (e *Engine) DryRun() bool {
	return e.dryRun
}
