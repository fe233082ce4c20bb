package workers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks worker pool execution through Prometheus collectors.
type Metrics struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration prometheus.Histogram
	queueDepth   prometheus.Gauge
}

// InitMetrics registers the pool collectors with the given registerer.
func InitMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_tasks_total",
				Help:      "Total number of worker tasks by status",
			},
			[]string{"status"},
		),
		taskDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_task_duration_seconds",
				Help:      "Duration of worker task execution",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_queue_depth",
				Help:      "Number of tasks waiting in the queue",
			},
		),
	}

	reg.MustRegister(m.tasksTotal, m.taskDuration, m.queueDepth)
	return m
}

func (m *Metrics) taskDone(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(status).Inc()
	m.taskDuration.Observe(d.Seconds())
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
