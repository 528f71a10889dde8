package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the follow-up API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	actionsCreated  *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	deletions       *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	eventFailures   prometheus.Counter
	subscribers     prometheus.Gauge

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
}

// MetricsSnapshot is the compact view returned by the health endpoint.
type MetricsSnapshot struct {
	Requests      uint64  `json:"requests"`
	CacheHitRatio float64 `json:"cache_hit_ratio"`
	Goroutines    int     `json:"goroutines"`
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	actionsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absence_actions_created_total",
		Help: "Absence follow-up steps registered, by step type",
	}, []string{"action_type"})

	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absence_actions_rejected_total",
		Help: "Absence follow-up writes refused by process rules, by reason",
	}, []string{"reason"})

	deletions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absence_actions_deleted_total",
		Help: "Absence follow-up deletions, split into single and cascade",
	}, []string{"mode"})

	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "record_events_published_total",
		Help: "Change events delivered, by record type and transport",
	}, []string{"record_type", "transport"})

	eventFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "record_events_failed_total",
		Help: "Change events that exhausted their delivery retries",
	})

	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "record_event_subscribers",
		Help: "Open change-feed subscriptions on this node",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		actionsCreated, rejections, deletions, eventsPublished, eventFailures, subscribers, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		actionsCreated:  actionsCreated,
		rejections:      rejections,
		deletions:       deletions,
		eventsPublished: eventsPublished,
		eventFailures:   eventFailures,
		subscribers:     subscribers,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a cache lookup and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	m.cacheHitRatio.Set(m.hitRatio())
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordActionCreated counts a registered step.
func (m *MetricsService) RecordActionCreated(t models.AbsenceActionType) {
	if m == nil {
		return
	}
	m.actionsCreated.WithLabelValues(string(t)).Inc()
}

// RecordRejection counts a write refused by the process rules. reason is an error code.
func (m *MetricsService) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordDeletion counts a deletion; cascade marks the two-record batch.
func (m *MetricsService) RecordDeletion(cascade bool) {
	if m == nil {
		return
	}
	mode := "single"
	if cascade {
		mode = "cascade"
	}
	m.deletions.WithLabelValues(mode).Inc()
}

// RecordEventPublished counts an event handed to a transport.
func (m *MetricsService) RecordEventPublished(recordType models.RecordType, transport string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(string(recordType), transport).Inc()
}

// RecordEventFailure counts an event dropped after retries.
func (m *MetricsService) RecordEventFailure() {
	if m == nil {
		return
	}
	m.eventFailures.Inc()
}

// SetSubscribers reports the number of open change-feed subscriptions.
func (m *MetricsService) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// Snapshot returns aggregated figures for the health endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Requests:      atomic.LoadUint64(&m.requestCount),
		CacheHitRatio: m.hitRatio(),
		Goroutines:    runtime.NumGoroutine(),
	}
}

func (m *MetricsService) hitRatio() float64 {
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
