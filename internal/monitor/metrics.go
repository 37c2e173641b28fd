package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	degraded      *prometheus.GaugeVec
	fetchSeconds  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statuswatch",
			Name:      "cycles_total",
			Help:      "Poll cycles by service and outcome (ok, skipped, fetch, parse, store, panic).",
		}, []string{"service", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statuswatch",
			Name:      "transitions_total",
			Help:      "State transitions by service and target state.",
		}, []string{"service", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statuswatch",
			Name:      "notifications_total",
			Help:      "Sink operations by op and result.",
		}, []string{"op", "result"}),
		degraded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "statuswatch",
			Name:      "service_degraded",
			Help:      "1 while the service is in the heavy state.",
		}, []string{"service"}),
		fetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statuswatch",
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.transitions, m.notifications, m.degraded, m.fetchSeconds)
	}
	return m
}

func (m *Metrics) cycle(service, outcome string) {
	if m != nil {
		m.cycles.WithLabelValues(service, outcome).Inc()
	}
}

func (m *Metrics) transition(service string, heavy bool) {
	if m == nil {
		return
	}
	to, v := "calm", 0.0
	if heavy {
		to, v = "heavy", 1
	}
	m.transitions.WithLabelValues(service, to).Inc()
	m.degraded.WithLabelValues(service).Set(v)
}

func (m *Metrics) notification(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(op, result).Inc()
}

func (m *Metrics) fetch(service string, seconds float64) {
	if m != nil {
		m.fetchSeconds.WithLabelValues(service).Observe(seconds)
	}
}
