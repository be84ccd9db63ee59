package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Attempt engine metrics. The submitted label separates manual
	// submits from deadline auto-submits.
	AttemptFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_attempts_finalized_total",
			Help: "Total number of finalized quiz attempts",
		},
		[]string{"submitted"},
	)

	AttemptScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_attempt_score",
			Help:    "Score distribution of finalized quiz attempts",
			Buckets: []float64{10, 25, 50, 67, 75, 90, 100},
		},
	)

	StagesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "workspace_stages_completed_total",
			Help: "Total number of stages marked completed",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AttemptFinalized)
	prometheus.MustRegister(AttemptScore)
	prometheus.MustRegister(StagesCompleted)
}

// ObserveFinalize records one finalized attempt.
func ObserveFinalize(score int, autoSubmitted bool) {
	submitted := "manual"
	if autoSubmitted {
		submitted = "auto"
	}
	AttemptFinalized.WithLabelValues(submitted).Inc()
	AttemptScore.Observe(float64(score))
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
