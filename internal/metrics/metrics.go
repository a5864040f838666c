// Package metrics publishes Prometheus metrics for the Rule Engine and its
// supporting layers. Shape grounded on the teacher's Recorder (CounterVec +
// HistogramVec pairs, nil-receiver-safe observe methods, a dedicated
// registry so tests can construct multiple isolated recorders).
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheOperation identifies the result-cache method being instrumented.
type CacheOperation string

const (
	// CacheOperationLookup records result-cache lookup calls.
	CacheOperationLookup CacheOperation = "lookup"
	// CacheOperationStore records result-cache store attempts.
	CacheOperationStore CacheOperation = "store"
)

// CacheLookupOutcome captures the result of a result-cache lookup.
type CacheLookupOutcome string

const (
	// CacheLookupHit indicates the lookup reused a cached validate result.
	CacheLookupHit CacheLookupOutcome = "hit"
	// CacheLookupMiss indicates no cached result was present.
	CacheLookupMiss CacheLookupOutcome = "miss"
	// CacheLookupError indicates the lookup failed due to an error.
	CacheLookupError CacheLookupOutcome = "error"
)

// CacheStoreOutcome captures the result of a result-cache store attempt.
type CacheStoreOutcome string

const (
	// CacheStoreStored indicates the result-cache entry was persisted.
	CacheStoreStored CacheStoreOutcome = "stored"
	// CacheStoreError indicates the store operation failed.
	CacheStoreError CacheStoreOutcome = "error"
)

// ValidateOutcome captures the result of a Validate call.
type ValidateOutcome string

const (
	// ValidateMatched indicates a variant matched (permission granted).
	ValidateMatched ValidateOutcome = "matched"
	// ValidateDenied indicates every variant produced an error (permission denied).
	ValidateDenied ValidateOutcome = "denied"
	// ValidateFault indicates Validate returned an error (accessor fault,
	// cancellation). An unknown collection or action is a denial, not a fault.
	ValidateFault ValidateOutcome = "fault"
)

// Recorder publishes Prometheus metrics for compile operations, Validate
// calls, accessor round-trips, and result-cache activity. The zero value
// (a nil *Recorder) is safe to call every method on — every observe method
// is a no-op when r is nil, so callers never need a feature flag to
// disable metrics.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	compileTotal *prometheus.CounterVec

	validateTotal   *prometheus.CounterVec
	validateLatency *prometheus.HistogramVec

	accessorTotal   *prometheus.CounterVec
	accessorLatency *prometheus.HistogramVec

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	compileTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "passgate",
		Subsystem: "engine",
		Name:      "compile_total",
		Help:      "Total rule-compilation calls (load/add/set), by collection and result.",
	}, []string{"collection", "result"})

	validateTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "passgate",
		Subsystem: "engine",
		Name:      "validate_total",
		Help:      "Total Validate calls, by collection, action, and outcome.",
	}, []string{"collection", "action", "outcome"})

	validateLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "passgate",
		Subsystem: "engine",
		Name:      "validate_duration_seconds",
		Help:      "Latency distribution for Validate calls.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	}, []string{"collection", "action"})

	accessorTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "passgate",
		Subsystem: "accessor",
		Name:      "operations_total",
		Help:      "Accessor round-trips, by collection, operation, and result.",
	}, []string{"collection", "operation", "result"})

	accessorLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "passgate",
		Subsystem: "accessor",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for accessor round-trips.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"collection", "operation"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "passgate",
		Subsystem: "resultcache",
		Name:      "operations_total",
		Help:      "Result-cache operations executed by the Entry Facade.",
	}, []string{"operation", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "passgate",
		Subsystem: "resultcache",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for result-cache operations.",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	}, []string{"operation", "result"})

	reg.MustRegister(compileTotal, validateTotal, validateLatency, accessorTotal, accessorLatency, cacheOperations, cacheLatency)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		compileTotal:    compileTotal,
		validateTotal:   validateTotal,
		validateLatency: validateLatency,
		accessorTotal:   accessorTotal,
		accessorLatency: accessorLatency,
		cacheOperations: cacheOperations,
		cacheLatency:    cacheLatency,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveCompile records a load/add/set call outcome for collection.
func (r *Recorder) ObserveCompile(collection string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.compileTotal.WithLabelValues(normalizeLabel(collection), result).Inc()
}

// ObserveValidate records the outcome and latency of a Validate call.
func (r *Recorder) ObserveValidate(collection, action string, outcome ValidateOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	collectionLabel := normalizeLabel(collection)
	actionLabel := normalizeLabel(action)
	r.validateTotal.WithLabelValues(collectionLabel, actionLabel, string(outcome)).Inc()
	r.validateLatency.WithLabelValues(collectionLabel, actionLabel).Observe(duration.Seconds())
}

// ObserveAccessor records one accessor round-trip.
func (r *Recorder) ObserveAccessor(collection, operation string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	collectionLabel := normalizeLabel(collection)
	r.accessorTotal.WithLabelValues(collectionLabel, operation, result).Inc()
	r.accessorLatency.WithLabelValues(collectionLabel, operation).Observe(duration.Seconds())
}

// ObserveCacheLookup records the result of a result-cache lookup.
func (r *Recorder) ObserveCacheLookup(result CacheLookupOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheLookupMiss)
	}
	r.observeCache(CacheOperationLookup, resultLabel, duration)
}

// ObserveCacheStore records the result of a result-cache store attempt.
func (r *Recorder) ObserveCacheStore(result CacheStoreOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(CacheStoreError)
	}
	r.observeCache(CacheOperationStore, resultLabel, duration)
}

func (r *Recorder) observeCache(operation CacheOperation, result string, duration time.Duration) {
	opLabel := string(operation)
	resLabel := normalizeLabel(result)
	r.cacheOperations.WithLabelValues(opLabel, resLabel).Inc()
	r.cacheLatency.WithLabelValues(opLabel, resLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
