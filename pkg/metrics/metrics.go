package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trend_agent"

// Metrics holds the pipeline collectors
type Metrics struct {
	gatherer prometheus.Gatherer

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	generationsTotal *prometheus.CounterVec
	fallbacksTotal   prometheus.Counter
	publishAttempts  prometheus.Histogram
	trendFetchTotal  *prometheus.CounterVec
	lastRunTimestamp prometheus.Gauge
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total pipeline runs by outcome",
			},
			[]string{"outcome", "origin"},
		),

		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a pipeline run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
			},
		),

		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Text generation results per backend",
			},
			[]string{"backend", "status"},
		),

		fallbacksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_posts_total",
				Help:      "Posts built from a fallback template",
			},
		),

		publishAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_attempts",
				Help:      "Attempts used per publish call",
				Buckets:   []float64{1, 2, 3, 4, 5, 8},
			},
		),

		trendFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trend_fetches_total",
				Help:      "Trend retrievals by provider and whether the fallback list was used",
			},
			[]string{"source", "result"},
		),

		lastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last finished run",
			},
		),
	}
}

// ObserveRun records one finished run
func (m *Metrics) ObserveRun(outcome, origin string, attempts int, d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome, origin).Inc()
	m.runDuration.Observe(d.Seconds())
	if attempts > 0 {
		m.publishAttempts.Observe(float64(attempts))
	}
	m.lastRunTimestamp.Set(float64(finished.Unix()))
}

// ObserveGeneration records the backend that produced text, or a failure
// when backend is empty
func (m *Metrics) ObserveGeneration(backend string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
		m.fallbacksTotal.Inc()
	}
	if backend == "" {
		backend = "none"
	}
	m.generationsTotal.WithLabelValues(backend, status).Inc()
}

// ObserveTrendFetch records one retrieval from the named provider
func (m *Metrics) ObserveTrendFetch(source string, fellBack bool) {
	if m == nil {
		return
	}
	result := "ok"
	if fellBack {
		result = "fallback"
	}
	m.trendFetchTotal.WithLabelValues(source, result).Inc()
}

// Handler exposes the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
