package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	tasksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "tasks_created_total",
			Help:      "Notification tasks accepted by intake.",
		},
	)

	tasksClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "tasks_claimed_total",
			Help:      "Tasks successfully claimed by a worker via CAS.",
		},
	)

	deliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "delivery_attempts_total",
			Help:      "Delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)

	deliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "delivery_latency_seconds",
			Help:      "Outbound HTTP delivery latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	tasksExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "tasks_exhausted_total",
			Help:      "Tasks that exhausted their retry budget and terminally failed.",
		},
	)

	queueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "queue_size",
			Help:      "Last sampled queue depth.",
		},
	)
)

// Register registers all relay Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			tasksCreated,
			tasksClaimed,
			deliveryAttempts,
			deliveryLatency,
			tasksExhausted,
			queueSize,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTaskCreated records a new task accepted by intake.
func IncTaskCreated() {
	tasksCreated.Inc()
}

// IncTaskClaimed records a task claimed by a worker.
func IncTaskClaimed() {
	tasksClaimed.Inc()
}

// ObserveDelivery records the outcome and latency of a delivery attempt.
func ObserveDelivery(outcome string, seconds float64) {
	deliveryAttempts.WithLabelValues(outcome).Inc()
	deliveryLatency.Observe(seconds)
}

// IncTaskExhausted records a task that ran out of retries.
func IncTaskExhausted() {
	tasksExhausted.Inc()
}

// SetQueueSize records the last sampled queue depth.
func SetQueueSize(n int) {
	queueSize.Set(float64(n))
}
