package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   prometheus.CounterVec
	HTTPRequestDuration prometheus.HistogramVec

	// Page cache metrics
	CacheHitsTotal         prometheus.CounterVec
	CacheMissesTotal       prometheus.CounterVec
	CacheOperationDuration prometheus.HistogramVec
	CacheInvalidationsTotal prometheus.CounterVec

	// Feed metrics
	FeedGenerationTime prometheus.HistogramVec
	FeedPostsReturned  prometheus.HistogramVec

	// View tracking metrics
	ViewsRecordedTotal prometheus.CounterVec

	// Verification metrics
	VerificationsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "klicktape_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "klicktape_http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path", "status"},
			),
			CacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "klicktape_cache_hits_total",
					Help: "Total cache hits",
				},
				[]string{"cache"},
			),
			CacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "klicktape_cache_misses_total",
					Help: "Total cache misses",
				},
				[]string{"cache"},
			),
			CacheOperationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "klicktape_cache_operation_duration_seconds",
					Help:    "Cache operation latency in seconds",
					Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
				},
				[]string{"operation", "cache"},
			),
			CacheInvalidationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "klicktape_cache_invalidations_total",
					Help: "Total cache invalidations",
				},
				[]string{"cache"},
			),
			FeedGenerationTime: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "klicktape_feed_generation_seconds",
					Help:    "Time to build one feed page",
					Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
				},
				[]string{"source"},
			),
			FeedPostsReturned: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "klicktape_feed_posts_returned",
					Help:    "Number of posts returned per feed page",
					Buckets: []float64{0, 1, 5, 10, 20, 50},
				},
				[]string{"source"},
			),
			ViewsRecordedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "klicktape_views_recorded_total",
					Help: "Total view events recorded",
				},
				[]string{"outcome"},
			),
			VerificationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "klicktape_verifications_total",
					Help: "Total email verification attempts by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed
func Get() *Metrics {
	return Initialize()
}

// RecordCacheHit increments the hit counter for a cache
func RecordCacheHit(cacheName string) {
	Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheMiss increments the miss counter for a cache
func RecordCacheMiss(cacheName string) {
	Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheOperation observes the latency of a cache operation
func RecordCacheOperation(operation, cacheName string, duration time.Duration) {
	Get().CacheOperationDuration.WithLabelValues(operation, cacheName).Observe(duration.Seconds())
}

// RecordCacheInvalidation increments the invalidation counter for a cache
func RecordCacheInvalidation(cacheName string) {
	Get().CacheInvalidationsTotal.WithLabelValues(cacheName).Inc()
}

// RecordFeedGeneration observes feed build time and page size
func RecordFeedGeneration(source string, duration time.Duration, count int) {
	m := Get()
	m.FeedGenerationTime.WithLabelValues(source).Observe(duration.Seconds())
	m.FeedPostsReturned.WithLabelValues(source).Observe(float64(count))
}

// RecordViewRecorded increments the views counter by outcome ("created", "duplicate", "error")
func RecordViewRecorded(outcome string) {
	Get().ViewsRecordedTotal.WithLabelValues(outcome).Inc()
}

// RecordVerification increments the verification counter by outcome
func RecordVerification(outcome string) {
	Get().VerificationsTotal.WithLabelValues(outcome).Inc()
}
