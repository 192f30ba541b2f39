package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.DefaultRegisterer

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crew_http_requests_total",
			Help: "Total number of HTTP requests by path/method/code.",
		},
		[]string{"path", "method", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crew_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by path/method/code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "code"},
	)

	mutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crew_mutations_total",
			Help: "Domain mutations by operation and result.",
		},
		[]string{"op", "result"},
	)

	mutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crew_mutation_duration_seconds",
			Help:    "Duration of domain mutations by operation and result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)

	historyPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crew_history_publish_failures_total",
			Help: "History events that were stored but could not be pushed to the live feed.",
		},
	)

	feedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crew_history_feed_clients",
			Help: "Connected live history feed clients on this instance.",
		},
	)
)

func GinMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	code := strconv.Itoa(c.Writer.Status())
	path := c.FullPath()

	// 404 时 FullPath 为空
	if path == "" {
		path = "unmatched"
	}

	httpRequests.WithLabelValues(path, c.Request.Method, code).Inc()
	httpDuration.WithLabelValues(path, c.Request.Method, code).Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveMutation 记录一次领域写操作，start 为操作开始时间
func ObserveMutation(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	mutations.WithLabelValues(op, result).Inc()
	mutationDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

func IncHistoryPublishFailure() {
	historyPublishFailures.Inc()
}

func SetFeedClients(n int) {
	feedClients.Set(float64(n))
}

func init() {
	collectors := []prometheus.Collector{
		httpRequests,
		httpDuration,
		mutations,
		mutationDuration,
		historyPublishFailures,
		feedClients,
	}

	for _, c := range collectors {
		_ = registry.Register(c)
	}
}
