package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	messagesAppended *prometheus.CounterVec
	botReplies       *prometheus.CounterVec
	smartReplies     *prometheus.CounterVec
	botSessions      prometheus.Gauge
	wsClients        prometheus.Gauge
}

// New registers the chat collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsim",
			Name:      "messages_appended_total",
			Help:      "Messages appended to conversation logs.",
		}, []string{"kind"}),
		botReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsim",
			Name:      "bot_replies_total",
			Help:      "Streamed bot replies by outcome.",
		}, []string{"outcome"}),
		smartReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsim",
			Name:      "smart_reply_requests_total",
			Help:      "Smart reply generation requests by outcome.",
		}, []string{"outcome"}),
		botSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsim",
			Name:      "bot_sessions",
			Help:      "Open bot dialogue sessions.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsim",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
	}
	m.registry.MustRegister(
		m.messagesAppended,
		m.botReplies,
		m.smartReplies,
		m.botSessions,
		m.wsClients,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MessageAppended(kind string) {
	if m == nil {
		return
	}
	m.messagesAppended.WithLabelValues(kind).Inc()
}

func (m *Metrics) BotReply(outcome string) {
	if m == nil {
		return
	}
	m.botReplies.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SmartReply(outcome string) {
	if m == nil {
		return
	}
	m.smartReplies.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetBotSessions(n int) {
	if m == nil {
		return
	}
	m.botSessions.Set(float64(n))
}

func (m *Metrics) WebsocketConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

func (m *Metrics) WebsocketDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}
