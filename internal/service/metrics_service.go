package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Draft submission outcomes recorded by ObserveDraftSubmission.
const (
	SubmissionCreated  = "created"
	SubmissionInvalid  = "invalid"
	SubmissionFailed   = "store_failed"
	SubmissionInFlight = "in_flight"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheLookups      *prometheus.CounterVec
	draftSubmissions  *prometheus.CounterVec
	classAdds         *prometheus.CounterVec
	rosterStaleServes prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the service collectors on a private registry.
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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	draftSubmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teacher_draft_submissions_total",
		Help: "Teacher draft submissions by outcome",
	}, []string{"outcome"})

	classAdds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teacher_draft_class_adds_total",
		Help: "Class additions to teacher drafts by outcome",
	}, []string{"outcome"})

	rosterStaleServes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_stale_responses_total",
		Help: "Roster listings served from cache after a store failure",
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheHitRatio, cacheLookups,
		draftSubmissions, classAdds, rosterStaleServes,
		collectors.NewGoCollector(),
	)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheHitRatio:     cacheHitRatio,
		cacheLookups:      cacheLookups,
		draftSubmissions:  draftSubmissions,
		classAdds:         classAdds,
		rosterStaleServes: rosterStaleServes,
	}
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveDraftSubmission counts a submission attempt by outcome.
func (m *MetricsService) ObserveDraftSubmission(outcome string) {
	if m == nil {
		return
	}
	m.draftSubmissions.WithLabelValues(outcome).Inc()
}

// ObserveClassAdd counts class additions by outcome.
func (m *MetricsService) ObserveClassAdd(outcome string) {
	if m == nil {
		return
	}
	m.classAdds.WithLabelValues(outcome).Inc()
}

// ObserveStaleRoster counts a roster listing served from the fallback cache.
func (m *MetricsService) ObserveStaleRoster() {
	if m == nil {
		return
	}
	m.rosterStaleServes.Inc()
}
