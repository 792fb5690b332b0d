package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks ambient HTTP surface latency (health/readyz/metrics).
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// CacheLayerHits counts C4 reads satisfied at each tier (spec §4.4 Metrics).
var CacheLayerHits = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "storage",
		Name:      "layer_hits_total",
		Help:      "Total reads satisfied by each storage tier.",
	},
	[]string{"layer"},
)

// CacheMisses counts C4 reads that found nothing in any tier.
var CacheMisses = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "storage",
		Name:      "cache_misses_total",
		Help:      "Total reads that missed every storage tier.",
	},
)

// CacheWrites counts C4 writes and deletes.
var CacheWrites = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "storage",
		Name:      "writes_total",
		Help:      "Total successful writes through the storage engine.",
	},
)

var CacheDeletes = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "storage",
		Name:      "deletes_total",
		Help:      "Total deletes issued through the storage engine.",
	},
)

// L1MemorySize reports the current number of entries held in the in-memory tier.
var L1MemorySize = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "storage",
		Name:      "l1_memory_size",
		Help:      "Current number of entries held in the in-memory tier.",
	},
)

// QueueEventsConsumedTotal counts events popped from the webhook queue by outcome.
var QueueEventsConsumedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "queue",
		Name:      "events_consumed_total",
		Help:      "Total webhook queue events popped, labeled by outcome.",
	},
	[]string{"outcome"}, // dispatched, malformed, invalid, unknown_type, handler_error
)

// ThreadLookupRetries counts C8 retry attempts by outcome.
var ThreadLookupRetries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "thread_lookup",
		Name:      "attempts_total",
		Help:      "Total thread-lookup attempts, labeled by outcome.",
	},
	[]string{"outcome"}, // found, exhausted
)

// All returns every bridge-specific collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		CacheLayerHits,
		CacheMisses,
		CacheWrites,
		CacheDeletes,
		L1MemorySize,
		QueueEventsConsumedTotal,
		ThreadLookupRetries,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTP histogram, and any additional service-specific collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
