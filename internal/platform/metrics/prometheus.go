package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// Validation provider metrics
	providerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_calls_total",
			Help: "Total number of validation provider calls by outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_provider_call_duration_seconds",
			Help:    "Validation provider call duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	validationUnavailableTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_service_unavailable_total",
			Help: "Total number of validations that failed on every provider",
		},
	)

	// Order workflow metrics
	validationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_validation_attempts_total",
			Help: "Total number of logged validation attempts by outcome",
		},
		[]string{"status"},
	)

	orderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	ordersFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Total number of finalized orders by history event type",
		},
		[]string{"event"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per registered route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			httpRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordProviderCall records one provider call and whether it produced a trusted result.
func RecordProviderCall(provider string, ok bool, duration time.Duration) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
	providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordValidationUnavailable records a validation for which every provider failed.
func RecordValidationUnavailable() {
	validationUnavailableTotal.Inc()
}

// RecordValidationAttempt records a persisted validation attempt.
func RecordValidationAttempt(status string) {
	validationAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordStatusTransition records an order status change.
func RecordStatusTransition(from, to string) {
	orderTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordOrderFinalized records a committed finalization.
func RecordOrderFinalized(event string) {
	ordersFinalizedTotal.WithLabelValues(event).Inc()
}
