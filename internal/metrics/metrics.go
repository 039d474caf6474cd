// Package metrics holds the Prometheus collectors for reconcile runs.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts resolver outcomes and store writes. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Outcomes      *prometheus.CounterVec
	TierMatches   *prometheus.CounterVec
	Writes        *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	DocumentsSeen prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idsync_records_total",
			Help: "Target records classified, by collection and outcome",
		}, []string{"collection", "outcome"}),
		TierMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idsync_tier_matches_total",
			Help: "Resolved records, by the match key tier that hit",
		}, []string{"collection", "tier"}),
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idsync_store_writes_total",
			Help: "Store update calls, by collection and result",
		}, []string{"collection", "result"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idsync_run_duration_seconds",
			Help:    "Duration of engine runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"command"}),
		DocumentsSeen: factory.NewCounter(prometheus.CounterOpts{
			Name: "idsync_documents_scanned_total",
			Help: "Documents read from target collections",
		}),
	}
}

// ObserveOutcome adds n records with the given outcome.
func (m *Metrics) ObserveOutcome(collection, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Outcomes.WithLabelValues(collection, outcome).Add(float64(n))
}

func (m *Metrics) ObserveTier(collection, tier string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.TierMatches.WithLabelValues(collection, tier).Add(float64(n))
}

// ObserveWrite records one store write; result is "ok", "unchanged" or "failed".
func (m *Metrics) ObserveWrite(collection, result string) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(collection, result).Inc()
}

func (m *Metrics) ObserveScanned(n int) {
	if m == nil {
		return
	}
	m.DocumentsSeen.Add(float64(n))
}

func (m *Metrics) ObserveRun(command string, start time.Time) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes every collector in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
