package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks notification delivery outcomes through Prometheus.
type Metrics struct {
	sentTotal *prometheus.CounterVec
}

// InitMetrics registers the dispatch collectors with the given registerer.
func InitMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Total notifications by channel, kind and outcome",
			},
			[]string{"channel", "kind", "outcome"},
		),
	}

	reg.MustRegister(m.sentTotal)
	return m
}

func (m *Metrics) sent(channel, kind, outcome string) {
	if m == nil {
		return
	}
	m.sentTotal.WithLabelValues(channel, kind, outcome).Inc()
}
