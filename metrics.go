package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "slack"
	metricsSubsystem = "socketmode"
)

// metrics holds the optional Socket Mode collectors. A nil *metrics is valid
// and records nothing.
type metrics struct {
	envelopesTotal    *prometheus.CounterVec
	decodeErrorsTotal prometheus.Counter
	acksSentTotal     prometheus.Counter
	reconnectsTotal   prometheus.Counter
	connected         prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	factory := promauto.With(reg)

	return &metrics{
		envelopesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "envelopes_total",
			Help:      "Total number of Socket Mode envelopes received, by envelope type",
		}, []string{"type"}),

		decodeErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "decode_errors_total",
			Help:      "Total number of Socket Mode frames dropped because they could not be decoded",
		}),

		acksSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "acks_sent_total",
			Help:      "Total number of acknowledgements written to the socket",
		}),

		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "reconnects_total",
			Help:      "Total number of Socket Mode reconnect attempts after a failure",
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connected",
			Help:      "1 while a Socket Mode connection is open, 0 otherwise",
		}),
	}
}

func (m *metrics) envelopeReceived(t EnvelopeType) {
	if m == nil {
		return
	}

	label := string(t)
	if !t.IsKnown() {
		label = "unknown"
	}

	m.envelopesTotal.WithLabelValues(label).Inc()
}

func (m *metrics) decodeError() {
	if m == nil {
		return
	}

	m.decodeErrorsTotal.Inc()
}

func (m *metrics) ackSent() {
	if m == nil {
		return
	}

	m.acksSentTotal.Inc()
}

func (m *metrics) reconnect() {
	if m == nil {
		return
	}

	m.reconnectsTotal.Inc()
}

func (m *metrics) setConnected(up bool) {
	if m == nil {
		return
	}

	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
