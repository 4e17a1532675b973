package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for evaluations.
const (
	OutcomeOK         = "ok"
	OutcomeStderr     = "stderr"
	OutcomeCancelled  = "cancelled"
	OutcomeTimeout    = "timeout"
	OutcomeTerminated = "terminated"
)

// Metrics holds all Prometheus metrics for the notebook core.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	RestartsTotal      *prometheus.CounterVec

	// Highlight metrics
	TokenizerCallsTotal *prometheus.CounterVec
	TokenizerDuration   *prometheus.HistogramVec
	CacheLookupsTotal   *prometheus.CounterVec
	CacheEntries        prometheus.Gauge
	CacheBytes          prometheus.Gauge
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		EvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_evaluations_total",
				Help: "Total number of evaluations delivered, by outcome",
			},
			[]string{"outcome"},
		),
		EvaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scribe_evaluation_duration_seconds",
				Help:    "Time from submission to delivery of an evaluation",
				Buckets: prometheus.DefBuckets,
			},
		),
		RestartsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_session_restarts_total",
				Help: "Interpreter session restarts, by reason",
			},
			[]string{"reason"},
		),

		TokenizerCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_tokenizer_calls_total",
				Help: "Tokenizer invocations, by language and status",
			},
			[]string{"language", "status"},
		),
		TokenizerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_tokenizer_duration_seconds",
				Help:    "Duration of tokenizer invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"language"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_highlight_cache_lookups_total",
				Help: "Highlight cache lookups, by result (hit, store_hit, miss)",
			},
			[]string{"result"},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_highlight_cache_entries",
				Help: "Number of fragments held in the highlight cache",
			},
		),
		CacheBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_highlight_cache_bytes",
				Help: "Approximate bytes held in the highlight cache",
			},
		),
	}

	registry.MustRegister(
		m.EvaluationsTotal,
		m.EvaluationDuration,
		m.RestartsTotal,
		m.TokenizerCallsTotal,
		m.TokenizerDuration,
		m.CacheLookupsTotal,
		m.CacheEntries,
		m.CacheBytes,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvaluation records a delivered evaluation.
func (m *Metrics) RecordEvaluation(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(outcome).Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
}

// RecordRestart records a session relaunch.
func (m *Metrics) RecordRestart(reason string) {
	if m == nil {
		return
	}
	m.RestartsTotal.WithLabelValues(reason).Inc()
}

// RecordTokenizerCall records one tokenizer invocation.
func (m *Metrics) RecordTokenizerCall(language string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TokenizerCallsTotal.WithLabelValues(language, status).Inc()
	m.TokenizerDuration.WithLabelValues(language).Observe(elapsed.Seconds())
}

// RecordCacheLookup records a lookup result: "hit", "store_hit" or "miss".
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetCacheSize updates the cache gauges.
func (m *Metrics) SetCacheSize(entries, bytes int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(entries))
	m.CacheBytes.Set(float64(bytes))
}
