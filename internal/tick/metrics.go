package tick

import "github.com/prometheus/client_golang/prometheus"

// Metrics Prometheus-метрики планировщика.
type Metrics struct {
	passDuration *prometheus.HistogramVec
	passes       *prometheus.CounterVec
	panics       prometheus.Counter
	pending      prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики в reg. reg == nil: без регистрации.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "archipelo",
			Subsystem: "tick",
			Name:      "pass_duration_seconds",
			Help:      "Длительность прохода симуляции.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .016, .025, .05, .1},
		}, []string{"rate"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "tick",
			Name:      "passes_total",
			Help:      "Число выполненных проходов.",
		}, []string{"rate"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "tick",
			Name:      "panics_total",
			Help:      "Паник, перехваченных в обработчиках проходов и командах.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "archipelo",
			Subsystem: "tick",
			Name:      "pending_commands",
			Help:      "Команд, ожидающих выполнения в потоке симуляции.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.passDuration, m.passes, m.panics, m.pending)
	}
	return m
}
