package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ytmon/internal/structures"
)

// StoreCounts is the read-only slice of the service the store gauges
// sample.
type StoreCounts interface {
	EventCount() int
	DayCount() int
	SnapshotCount() int
	DedupSize() int
}

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncPersistenceFailures()
	IncIngestOutcome(path, outcome string)
	IncPollCycles(result string)
	RegisterStoreGauges(counts StoreCounts)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	persistenceFailures prometheus.Counter
	ingestOutcomes      *prometheus.CounterVec
	pollCycles          *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncPersistenceFailures() {
	m.persistenceFailures.Inc()
}

func (m *MetricsProvider) IncIngestOutcome(path, outcome string) {
	m.ingestOutcomes.WithLabelValues(path, outcome).Inc()
}

func (m *MetricsProvider) IncPollCycles(result string) {
	m.pollCycles.WithLabelValues(result).Inc()
}

// RegisterStoreGauges wires the store-size gauges once the service
// exists. Kept out of the constructor: the persistence layer depends on
// metrics, so constructing metrics cannot depend on the service.
func (m *MetricsProvider) RegisterStoreGauges(counts StoreCounts) {
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ytmon_events_total",
		Help: "Number of stored watch events",
	}, func() float64 {
		return float64(counts.EventCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ytmon_days_total",
		Help: "Number of day buckets in the store",
	}, func() float64 {
		return float64(counts.DayCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ytmon_subscription_months_total",
		Help: "Number of retained subscription snapshots",
	}, func() float64 {
		return float64(counts.SnapshotCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "ytmon_dedup_identities",
		Help: "Identities currently tracked by the dedup gate",
	}, func() float64 {
		return float64(counts.DedupSize())
	})
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ytmon_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ytmon_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ytmon_cache_hits_total",
			Help: "Total number of response cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ytmon_cache_misses_total",
			Help: "Total number of response cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ytmon_persistence_duration_seconds",
			Help:    "Duration of store write operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		persistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ytmon_persistence_failures_total",
			Help: "Total number of failed store writes",
		}),

		ingestOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ytmon_ingest_outcomes_total",
			Help: "Event submissions by entry path and outcome",
		}, []string{"path", "outcome"}),

		pollCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ytmon_poll_cycles_total",
			Help: "Poll scheduler ticks by result",
		}, []string{"result"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncPersistenceFailures()                          {}
func (n *noopMetrics) IncIngestOutcome(_ string, _ string)              {}
func (n *noopMetrics) IncPollCycles(_ string)                           {}
func (n *noopMetrics) RegisterStoreGauges(_ StoreCounts)                {}
