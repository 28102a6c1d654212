package metrics

import (
	"net/http"

	"sportsdash/internal/result"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdash_operations_total",
			Help: "Total number of dashboard operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	keysGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportsdash_access_keys_generated_total",
			Help: "Total number of access keys generated",
		},
	)

	codeCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportsdash_access_key_code_collisions_total",
			Help: "Total number of key batches retried because of a code collision",
		},
	)

	rateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sportsdash_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"class"},
	)

	originRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sportsdash_origin_rejections_total",
			Help: "Total number of requests rejected by the origin check",
		},
	)
)

// RecordOperation counts one operation with outcome "ok" or a failure kind.
func RecordOperation(operation, outcome string) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// Track counts the outcome of r under operation and returns r unchanged.
func Track[T any](operation string, r result.Result[T]) result.Result[T] {
	RecordOperation(operation, r.Outcome())
	return r
}

// RecordKeysGenerated adds n generated keys.
func RecordKeysGenerated(n int) {
	keysGeneratedTotal.Add(float64(n))
}

// RecordCodeCollision counts one retried key batch.
func RecordCodeCollision() {
	codeCollisionsTotal.Inc()
}

// RecordRateLimitRejection counts one rejected request for class.
func RecordRateLimitRejection(class string) {
	rateLimitRejectionsTotal.WithLabelValues(class).Inc()
}

// RecordOriginRejection counts one request failing the origin check.
func RecordOriginRejection() {
	originRejectionsTotal.Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
