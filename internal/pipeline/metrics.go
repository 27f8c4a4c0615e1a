package pipeline

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	completions *prometheus.CounterVec
	latency     prometheus.Histogram
	pieces      prometheus.Histogram
	retries     prometheus.Counter
	overflow    prometheus.Counter
	queueDepth  prometheus.GaugeFunc
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docanalyze",
			Name:      "runs_total",
			Help:      "Analysis runs by path and outcome.",
		}, []string{"path", "outcome"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docanalyze",
			Name:      "completions_total",
			Help:      "Completion calls by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docanalyze",
			Name:      "completion_duration_seconds",
			Help:      "Completion call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		pieces: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docanalyze",
			Name:      "pieces_per_run",
			Help:      "Pieces produced per chunked run.",
			Buckets:   []float64{2, 3, 5, 8, 13, 21, 34, 55},
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docanalyze",
			Name:      "completion_retries_total",
			Help:      "Repeated completion calls after a retryable failure.",
		}),
		overflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docanalyze",
			Name:      "overflow_pieces_total",
			Help:      "Pieces emitted over budget because they could not be split.",
		}),
	}
	reg.MustRegister(m.runs, m.completions, m.latency, m.pieces, m.retries, m.overflow,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// WatchQueue exports the depth reported by fn as a gauge.
func (m *Metrics) WatchQueue(fn func() int) {
	if m == nil || m.queueDepth != nil {
		return
	}
	m.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "docanalyze",
		Name:      "queue_depth",
		Help:      "Jobs waiting for a worker.",
	}, func() float64 { return float64(fn()) })
	m.registry.MustRegister(m.queueDepth)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Nil-safe recorders; a nil *Metrics records nothing.

func (m *Metrics) observeRun(path, outcome string) {
	if m != nil {
		m.runs.WithLabelValues(path, outcome).Inc()
	}
}

func (m *Metrics) observeCompletion(outcome string, seconds float64) {
	if m != nil {
		m.completions.WithLabelValues(outcome).Inc()
		m.latency.Observe(seconds)
	}
}

func (m *Metrics) observePieces(n, overflow int) {
	if m != nil {
		m.pieces.Observe(float64(n))
		m.overflow.Add(float64(overflow))
	}
}

func (m *Metrics) observeRetry() {
	if m != nil {
		m.retries.Inc()
	}
}
