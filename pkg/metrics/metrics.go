package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "creator_ledger"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ViewsAccrued counts views credited to creators.
	ViewsAccrued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "views_accrued_total",
		Help:      "Views credited to creator earnings",
	})

	// AccrualFailures counts view events that could not be credited.
	AccrualFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accrual_failures_total",
		Help:      "View events dropped by best-effort accrual",
	}, []string{"source"})

	PayoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payout_transitions_total",
		Help:      "Payout request state transitions",
	}, []string{"action", "result"})

	WithdrawalRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "withdrawal_rejections_total",
		Help:      "Withdrawal submissions refused, by reason",
	}, []string{"reason"})

	// BalanceDrift is the absolute difference between the running balance
	// counter and the unpaid earnings sum, per creator, from the last reconcile.
	BalanceDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "balance_drift_usd",
		Help:      "Running balance minus unpaid earnings at last reconcile",
	}, []string{"creator_id"})

	// TasksEnqueued counts background task hand-offs; result is "queued" or
	// "inline" when the caller fell back to running the work itself.
	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_enqueued_total",
		Help:      "Background task hand-offs by outcome",
	}, []string{"task_type", "result"})

	SuspiciousIPs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "suspicious_ip_logs_total",
		Help:      "IP logs classified as suspicious",
	})
)

// Middleware records request counts and latency by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry, which also carries the gorm collectors.
func Handler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
