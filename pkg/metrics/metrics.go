package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openskulk/skulk/pkg/types"
)

var (
	proxiesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skulk_proxies",
			Help: "Number of proxies in the pool by lifecycle status",
		},
		[]string{"status"},
	)

	proxiesByAnonymity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skulk_proxies_anonymity",
			Help: "Number of active proxies by anonymity level",
		},
		[]string{"level"},
	)

	avgProxySpeed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skulk_proxy_avg_speed_seconds",
			Help: "Average round-trip time of active proxies",
		},
	)

	taskExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skulk_task_executions_total",
			Help: "Scheduled task executions by outcome",
		},
		[]string{"task", "result"},
	)

	taskRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skulk_task_running",
			Help: "Whether a scheduled task is currently executing",
		},
		[]string{"task"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skulk_task_duration_seconds",
			Help:    "Wall-clock duration of task executions",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"task"},
	)

	validationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skulk_validation_duration_seconds",
			Help:    "Duration of whole validation batches",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skulk_api_requests_total",
			Help: "API requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skulk_api_request_duration_seconds",
			Help:    "API request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		proxiesByStatus,
		proxiesByAnonymity,
		avgProxySpeed,
		taskExecutions,
		taskRunning,
		taskDuration,
		validationDuration,
		apiRequests,
		apiRequestDuration,
	)
}

// Handler serves the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTaskExecution counts one finished task run.
func RecordTaskExecution(task string, success bool, seconds float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	taskExecutions.WithLabelValues(task, result).Inc()
	taskDuration.WithLabelValues(task).Observe(seconds)
}

// RecordTaskSkip counts a tick dropped by the single-flight guard.
func RecordTaskSkip(task string) {
	taskExecutions.WithLabelValues(task, "skipped").Inc()
}

// SetTaskRunning flags a task as executing.
func SetTaskRunning(task string, running bool) {
	v := 0.0
	if running {
		v = 1.0
	}
	taskRunning.WithLabelValues(task).Set(v)
}

// ObserveValidationBatch records the duration of one whole batch.
func ObserveValidationBatch(seconds float64) {
	validationDuration.Observe(seconds)
}

// SetPoolStats refreshes the pool gauges from one stats query.
func SetPoolStats(s *types.PoolStats) {
	if s == nil {
		return
	}
	proxiesByStatus.WithLabelValues("pending").Set(float64(s.Pending))
	proxiesByStatus.WithLabelValues("success").Set(float64(s.Active))
	proxiesByStatus.WithLabelValues("failed").Set(float64(s.Inactive))
	proxiesByAnonymity.WithLabelValues("transparent").Set(float64(s.Transparent))
	proxiesByAnonymity.WithLabelValues("anonymous").Set(float64(s.Anonymous))
	proxiesByAnonymity.WithLabelValues("elite").Set(float64(s.Elite))
	if s.AvgSpeed != nil {
		avgProxySpeed.Set(*s.AvgSpeed)
	}
}

// RecordAPIRequest counts one served API request.
func RecordAPIRequest(method, route string, status int, seconds float64) {
	apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
