package monitoring

import (
	"strconv"
	"sync"
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

	// ProblemSubmissions 单题提交次数，按判分结果区分
	ProblemSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edu_problem_submissions_total",
			Help: "Total number of single problem submissions",
		},
		[]string{"status"},
	)

	TestSubmissions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edu_test_submissions_total",
			Help: "Total number of test submissions",
		},
	)

	// StatisticsRecomputeDuration 单个测试统计重算耗时，result 为 ok / no_data / error
	StatisticsRecomputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edu_statistics_recompute_seconds",
			Help:    "Duration of test statistics recomputation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			ProblemSubmissions,
			TestSubmissions,
			StatisticsRecomputeDuration,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
