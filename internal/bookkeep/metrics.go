package bookkeep

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of process-wide counters/gauges registered for the
// update pipeline and query surface. The pipeline updates BlobsIndexed,
// TagsIndexed and ParserTimeouts; WorkerPanics, QueryLatency and
// ActiveQueries are registered but nothing updates them. It is the first direct consumer
// of the teacher's declared-but-dormant prometheus/client_golang
// dependency (turbo-geth's go.mod requires it directly; no copied file
// exercised it, since its own metrics package — the thing that would
// have — wasn't part of the retrieved slice).
type Metrics struct {
	BlobsIndexed   prometheus.Counter
	TagsIndexed    prometheus.Counter
	ParserTimeouts prometheus.Counter
	WorkerPanics   prometheus.Counter
	QueryLatency   prometheus.Histogram
	ActiveQueries  prometheus.Gauge
}

// NewMetrics constructs and registers every metric against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlobsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elixir", Subsystem: "pipeline", Name: "blobs_indexed_total",
			Help: "Number of blobs assigned a blob id by the Ids stage.",
		}),
		TagsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elixir", Subsystem: "pipeline", Name: "tags_indexed_total",
			Help: "Number of tags that completed every pipeline stage.",
		}),
		ParserTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elixir", Subsystem: "pipeline", Name: "parser_timeouts_total",
			Help: "Number of parser subprocess invocations that exceeded the 10s deadline and were skipped.",
		}),
		WorkerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "elixir", Subsystem: "pipeline", Name: "worker_panics_total",
			Help: "Number of partitioned-stage worker panics.",
		}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "elixir", Subsystem: "query", Name: "latency_seconds",
			Help:    "search_ident/autocomplete/file_exists latency.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveQueries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "elixir", Subsystem: "query", Name: "active",
			Help: "Number of in-flight queries holding read cursors.",
		}),
	}
	reg.MustRegister(m.BlobsIndexed, m.TagsIndexed, m.ParserTimeouts, m.WorkerPanics, m.QueryLatency, m.ActiveQueries)
	return m
}
