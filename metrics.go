package vidtask

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultMetricsNamespace prefixes all metric names.
const DefaultMetricsNamespace = "vidtask"

// Collector publishes Prometheus metrics for API calls, polling runs and
// finished tasks. It is optional everywhere: a nil *Collector disables all
// recording.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pollAttempts    *prometheus.HistogramVec
	tasksTotal      *prometheus.CounterVec
}

// NewCollector registers the metric set under namespace (default
// "vidtask") with reg, or with the default registerer when reg is nil.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of provider API requests",
			},
			[]string{"provider", "operation", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Provider API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		pollAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_attempts",
				Help:      "Number of status queries issued per polling run",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 20, 40},
			},
			[]string{"provider", "outcome"},
		),
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of tasks by final outcome",
			},
			[]string{"provider", "outcome"},
		),
	}
}

// RecordRequest records one provider API call. A status code of zero means
// the request never produced a response.
func (c *Collector) RecordRequest(provider, operation string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(provider, operation, strconv.Itoa(statusCode)).Inc()
	c.requestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordPoll records a finished polling run and how many queries it took.
func (c *Collector) RecordPoll(provider, outcome string, attempts int) {
	if c == nil {
		return
	}
	c.pollAttempts.WithLabelValues(provider, outcome).Observe(float64(attempts))
}

// RecordTask records a task's final outcome.
func (c *Collector) RecordTask(provider, outcome string) {
	if c == nil {
		return
	}
	c.tasksTotal.WithLabelValues(provider, outcome).Inc()
}
