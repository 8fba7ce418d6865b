package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's counters on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	resolves       *prometheus.CounterVec
	ladderAttempts *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	exports        *prometheus.CounterVec
	wsDropped      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitcart",
			Name:      "list_resolves_total",
			Help:      "List resolve attempts by outcome.",
		}, []string{"outcome"}),
		ladderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitcart",
			Name:      "resolve_strategy_attempts_total",
			Help:      "Ticket status update attempts by strategy and result.",
		}, []string{"strategy", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitcart",
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and result.",
		}, []string{"kind", "result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splitcart",
			Name:      "receipt_exports_total",
			Help:      "Receipt archive uploads by result.",
		}, []string{"result"}),
		wsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splitcart",
			Name:      "websocket_dropped_messages_total",
			Help:      "Realtime messages dropped because a client buffer was full.",
		}),
	}
	m.registry.MustRegister(
		m.resolves, m.ladderAttempts, m.notifications, m.exports, m.wsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ResolveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LadderAttempt(strategy string, ok bool) {
	if m == nil {
		return
	}
	m.ladderAttempts.WithLabelValues(strategy, result(ok)).Inc()
}

func (m *Metrics) Notification(kind string, ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result(ok)).Inc()
}

func (m *Metrics) Export(ok bool) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) WebsocketDropped() {
	if m == nil {
		return
	}
	m.wsDropped.Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
