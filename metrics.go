package kedai

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are registered on a private registry so several hubs can live in
// one process (tests do this).
type Metrics struct {
	Registry      *prometheus.Registry
	writes        *prometheus.CounterVec
	publishes     prometheus.Counter
	subscriptions prometheus.Gauge
}

func newMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kedai",
			Name:      "writes_total",
			Help:      "Document writes by operation and result.",
		}, []string{"op", "result"}),
		publishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kedai",
			Name:      "publish_total",
			Help:      "Events delivered to subscribers.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kedai",
			Name:      "subscriptions",
			Help:      "Active key subscriptions.",
		}),
	}
	m.Registry.MustRegister(m.writes, m.publishes, m.subscriptions)
	return m
}

func (m *Metrics) write(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(op, result).Inc()
}
