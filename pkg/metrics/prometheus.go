package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes tracking-core counters on its own registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	batchOutcomes  *prometheus.CounterVec
	lockEvents     *prometheus.CounterVec
	saveFailures   *prometheus.CounterVec
	gateDecisions  *prometheus.CounterVec
	trackedSymbols prometheus.Gauge
	fetchLatency   prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		batchOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predtracker_actual_update_total",
				Help: "Per-symbol outcomes of the daily actual price batch",
			},
			[]string{"outcome"},
		),
		lockEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predtracker_lock_events_total",
				Help: "Lock transitions by horizon and kind",
			},
			[]string{"horizon", "event"},
		),
		saveFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predtracker_save_failures_total",
				Help: "Failed persistence attempts by store",
			},
			[]string{"store"},
		),
		gateDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predtracker_stability_decisions_total",
				Help: "Stability gate decisions",
			},
			[]string{"action"},
		),
		trackedSymbols: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "predtracker_tracked_symbols",
				Help: "Number of symbols currently tracked",
			},
		),
		fetchLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "predtracker_market_fetch_duration_seconds",
				Help:    "Duration of closing price fetches",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Handler returns the /metrics handler for this registry
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (tests)
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordBatchOutcome records updated / failed / skipped per symbol
func (r *Recorder) RecordBatchOutcome(outcome string) {
	if r == nil {
		return
	}
	r.batchOutcomes.WithLabelValues(outcome).Inc()
}

// RecordLockEvent records lock, unlock and expire transitions
func (r *Recorder) RecordLockEvent(horizon, event string) {
	if r == nil {
		return
	}
	r.lockEvents.WithLabelValues(horizon, event).Inc()
}

// RecordSaveFailure records a failed save attempt
func (r *Recorder) RecordSaveFailure(store string) {
	if r == nil {
		return
	}
	r.saveFailures.WithLabelValues(store).Inc()
}

// RecordGateDecision records an updated / stable decision
func (r *Recorder) RecordGateDecision(action string) {
	if r == nil {
		return
	}
	r.gateDecisions.WithLabelValues(action).Inc()
}

// SetTrackedSymbols sets the tracked symbol gauge
func (r *Recorder) SetTrackedSymbols(n int) {
	if r == nil {
		return
	}
	r.trackedSymbols.Set(float64(n))
}

// ObserveFetch records a market-data fetch duration in seconds
func (r *Recorder) ObserveFetch(seconds float64) {
	if r == nil {
		return
	}
	r.fetchLatency.Observe(seconds)
}
