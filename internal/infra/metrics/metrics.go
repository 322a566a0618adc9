package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	sessions *prometheus.GaugeVec
	sends    *prometheus.CounterVec
	webhooks *prometheus.CounterVec
	restores *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wa",
			Name:      "sessions",
			Help:      "Tracked sessions by connection state.",
		}, []string{"state"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wa",
			Name:      "messages_sent_total",
			Help:      "Outgoing messages by kind and result.",
		}, []string{"kind", "result"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wa",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts by event and result.",
		}, []string{"event", "result"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wa",
			Name:      "session_restores_total",
			Help:      "Sessions restored from disk at startup by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.sessions, m.sends, m.webhooks, m.restores,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Transition moves one session between state gauges. Empty from/to mean the
// session was just added or just removed.
func (m *Metrics) Transition(from, to string) {
	if m == nil || from == to {
		return
	}
	if from != "" {
		m.sessions.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.sessions.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) MessageSent(kind string, err error) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) WebhookDelivered(event string, err error) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(event, result(err)).Inc()
}

func (m *Metrics) WebhookDropped(event string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(event, "dropped").Inc()
}

func (m *Metrics) SessionRestored(err error) {
	if m == nil {
		return
	}
	m.restores.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
