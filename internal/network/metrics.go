package network

import "github.com/prometheus/client_golang/prometheus"

// Metrics Prometheus-метрики сетевого слоя.
type Metrics struct {
	connections     prometheus.Gauge
	connectionsOpen *prometheus.CounterVec
	packetsIn       *prometheus.CounterVec
	packetsOut      *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	expired         prometheus.Counter
	queueDepth      prometheus.Gauge
	logins          *prometheus.CounterVec
	bytesOut        prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil: без регистрации).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "connections",
			Help:      "Активные соединения.",
		}),
		connectionsOpen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "connections_total",
			Help:      "Принятые соединения по транспорту.",
		}, []string{"transport"}),
		packetsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "packets_in_total",
			Help:      "Принятые пакеты по типу.",
		}, []string{"type"}),
		packetsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "packets_out_total",
			Help:      "Отправленные пакеты по типу.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "packets_dropped_total",
			Help:      "Отброшенные пакеты по причине.",
		}, []string{"reason"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "packets_expired_total",
			Help:      "Пакеты, не обработанные за время хранения.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "packet_queue_depth",
			Help:      "Пакетов в очереди после последнего прохода.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "logins_total",
			Help:      "Попытки входа по результату.",
		}, []string{"result"}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "archipelo",
			Subsystem: "network",
			Name:      "bytes_out_total",
			Help:      "Байт поставлено в очередь отправки.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.connectionsOpen, m.packetsIn, m.packetsOut,
			m.dropped, m.expired, m.queueDepth, m.logins, m.bytesOut)
	}
	return m
}
