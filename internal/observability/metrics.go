package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "razdel_http_requests_total",
			Help: "Total number of HTTP requests processed by the sync service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "razdel_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	feedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "razdel_feed_events_total",
			Help: "Total number of change feed events received.",
		},
		[]string{"entity", "op"},
	)
	activeNotifications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "razdel_notifications_active",
			Help: "Number of comment notifications currently queued.",
		},
	)
	refreshFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "razdel_comment_refresh_failures_total",
			Help: "Total number of background comment refreshes that failed.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "razdel_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		feedEventsTotal,
		activeNotifications,
		refreshFailuresTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncFeedEvent(entity, op string) {
	feedEventsTotal.WithLabelValues(entity, op).Inc()
}

func SetActiveNotifications(n int) {
	activeNotifications.Set(float64(n))
}

func IncRefreshFailure() {
	refreshFailuresTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
