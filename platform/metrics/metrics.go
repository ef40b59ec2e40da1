// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crescoflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crescoflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	workerItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crescoflow_worker_items_total",
			Help: "Prospecting worker items processed, by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	workerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crescoflow_worker_queue_depth",
			Help: "Pending items in the prospecting queues",
		},
		[]string{"queue"},
	)

	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crescoflow_dispatch_total",
			Help: "Outbound queue items dispatched, by channel and status",
		},
		[]string{"channel", "status"},
	)

	stageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crescoflow_stage_transitions_total",
			Help: "Pipeline stage transitions, by target stage",
		},
		[]string{"stage"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crescoflow_integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

// Gin records request count and latency using the matched route template.
func Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordWorkerItem(queue, outcome string) {
	workerItemsTotal.WithLabelValues(queue, outcome).Inc()
}

func SetWorkerQueueDepth(queue string, depth int) {
	workerQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

func RecordDispatch(channel, status string) {
	dispatchTotal.WithLabelValues(channel, status).Inc()
}

func RecordStageTransition(stage string) {
	stageTransitions.WithLabelValues(stage).Inc()
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
