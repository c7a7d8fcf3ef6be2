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
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	ticketsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tickets_sent_total",
			Help: "Express tickets sent, split by first send and reply.",
		},
		[]string{"kind"},
	)
	pushTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_push_total",
			Help: "Push deliveries by result.",
		},
		[]string{"result"},
	)
	pubsubPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_pubsub_publish_errors_total",
			Help: "Total number of failed redis notification publishes.",
		},
	)
	notifyDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_notify_dropped_total",
			Help: "Notification jobs dropped because the dispatch queue was full or stopped.",
		},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		ticketsSentTotal,
		pushTotal,
		pubsubPublishErrorsTotal,
		notifyDroppedTotal,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// Push results.
const (
	PushDelivered = "delivered"
	PushPruned    = "pruned"
	PushFailed    = "failed"
)

func IncTicketSent(reply bool) {
	kind := "send"
	if reply {
		kind = "reply"
	}
	ticketsSentTotal.WithLabelValues(kind).Inc()
}

func IncPush(result string) {
	pushTotal.WithLabelValues(result).Inc()
}

func IncPubSubPublishError() {
	pubsubPublishErrorsTotal.Inc()
}

func IncNotifyDropped() {
	notifyDroppedTotal.Inc()
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
