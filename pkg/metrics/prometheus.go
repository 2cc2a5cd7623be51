package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheLoads     *prometheus.CounterVec
	CacheEvictions prometheus.Counter

	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  prometheus.Histogram

	EventsPublished prometheus.Counter
	PublishFailures prometheus.Counter
	EventsConsumed  prometheus.Counter
	ArchiveFailures prometheus.Counter

	BroadcastTicks *prometheus.CounterVec
	Subscribers    prometheus.Gauge
	DroppedBatches prometheus.Counter
	Predictions    *prometheus.CounterVec
	TrainingRuns   *prometheus.CounterVec
	ErrorsCount    *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics registered on reg.
// A nil reg registers on the default prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "The total number of result cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "The total number of result cache misses",
		}),
		CacheLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_loads_total",
			Help:      "The total number of loader invocations by outcome",
		}, []string{"outcome"}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "The total number of entries evicted from the result cache",
		}),
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "The total number of requests to the flight data provider",
		}, []string{"outcome"}),
		UpstreamLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Time taken by requests to the flight data provider",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "The total number of flight events handed to the event log",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "The total number of flight events that failed to publish",
		}),
		EventsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "The total number of flight events drained from the event log",
		}),
		ArchiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_failures_total",
			Help:      "The total number of consumed batches that failed to archive",
		}),
		BroadcastTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_ticks_total",
			Help:      "The total number of scheduler ticks by outcome",
		}, []string{"outcome"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "The number of live dashboard subscribers",
		}),
		DroppedBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_batches_total",
			Help:      "Batches dropped because a subscriber queue was full",
		}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "The total number of status predictions by outcome",
		}, []string{"outcome"}),
		TrainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "The total number of predictor training runs by outcome",
		}, []string{"outcome"}),
		ErrorsCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
	}
}

// NewTestMetrics returns metrics on a private registry
func NewTestMetrics() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}
