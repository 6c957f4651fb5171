package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the relay pipeline.
type Metrics struct {
	eventsTotal      *prometheus.CounterVec
	relayedTotal     *prometheus.CounterVec
	dropsTotal       *prometheus.CounterVec
	dispatchFailures prometheus.Counter
	profileFallbacks prometheus.Counter
	inFlight         prometheus.Gauge
}

// NewMetrics registers the relay collectors on the provided registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "events_total",
			Help:      "Chat events received from the network",
		}, []string{"channel"}),
		relayedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "relayed_total",
			Help:      "Payloads delivered to the destination webhook",
		}, []string{"channel"}),
		dropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "drops_total",
			Help:      "Events dropped before dispatch",
		}, []string{"reason"}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "dispatch_failures_total",
			Help:      "Webhook deliveries that failed",
		}),
		profileFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "profile_fallbacks_total",
			Help:      "Events relayed with an unresolved author profile",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "events_in_flight",
			Help:      "Event pipelines currently running",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.eventsTotal,
			m.relayedTotal,
			m.dropsTotal,
			m.dispatchFailures,
			m.profileFallbacks,
			m.inFlight,
		)
	}
	return m
}

func (m *Metrics) IncReceived(channel string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncRelayed(channel string) {
	if m == nil {
		return
	}
	m.relayedTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.dropsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncDispatchFailure() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}

func (m *Metrics) IncProfileFallback() {
	if m == nil {
		return
	}
	m.profileFallbacks.Inc()
}

func (m *Metrics) AddInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}
