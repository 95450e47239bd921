package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidtube_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	webhookEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_webhook_events_total",
		Help: "Total number of webhook deliveries",
	}, []string{"source", "type", "outcome"})

	rateLimitRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidtube_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter",
	})

	cleanupTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_cleanup_tasks_total",
		Help: "Total number of cleanup task attempts",
	}, []string{"outcome"})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidtube_errors_total",
		Help: "Total number of errors returned to callers",
	}, []string{"code"})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(webhookEventsTotal)
	prometheus.MustRegister(rateLimitRejectionsTotal)
	prometheus.MustRegister(cleanupTasksTotal)
	prometheus.MustRegister(errorsTotal)
}

// RecordRequest records one served HTTP request
func RecordRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordWebhook records a webhook delivery and how it was handled
func RecordWebhook(source, eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(source, eventType, outcome).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter
func RecordRateLimited() {
	rateLimitRejectionsTotal.Inc()
}

// RecordCleanup records a cleanup task attempt outcome
func RecordCleanup(outcome string) {
	cleanupTasksTotal.WithLabelValues(outcome).Inc()
}

// RecordError records an error code returned to a caller
func RecordError(code string) {
	errorsTotal.WithLabelValues(code).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
