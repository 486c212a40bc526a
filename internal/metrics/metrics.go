package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejor21/trabajo-final-IA/internal/models"
	"github.com/alejor21/trabajo-final-IA/internal/session"
)

const namespace = "epp"

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	PhaseTransitions *prometheus.CounterVec
	Analyses         *prometheus.CounterVec
	StaleResponses   *prometheus.CounterVec
	LiveTicks        prometheus.Counter
	ChatMessages     *prometheus.CounterVec
	EventClients     prometheus.Gauge

	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	backendInFlight prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "phase_transitions_total",
			Help:      "Session phase changes, labeled by session and target phase.",
		}, []string{"session", "phase"}),

		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "analyses_total",
			Help:      "Completed detection analyses, labeled by session and compliance verdict.",
		}, []string{"session", "verdict"}),

		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "stale_responses_total",
			Help:      "Backend responses dropped because a newer asset was selected.",
		}, []string{"session"}),

		LiveTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "ticks_total",
			Help:      "Simulated live-detection ticks delivered while previewing video.",
		}),

		ChatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "messages_total",
			Help:      "Messages appended to the assistant conversation, labeled by sender.",
		}, []string{"sender"}),

		EventClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "event_clients",
			Help:      "Connected websocket event subscribers.",
		}),

		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests sent to the detection backend, labeled by status code and method.",
		}, []string{"code", "method"}),

		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Detection backend round-trip time.",
			// Video analysis can take minutes.
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"code", "method"}),

		backendInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_in_flight",
			Help:      "Requests to the detection backend currently waiting for a response.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PhaseTransitions,
		m.Analyses,
		m.StaleResponses,
		m.LiveTicks,
		m.ChatMessages,
		m.EventClients,
		m.backendRequests,
		m.backendDuration,
		m.backendInFlight,
	)

	return m
}

// Listen records a session event. Register it with Workspace.Subscribe.
func (m *Metrics) Listen(ev session.Event) {
	switch ev.Type {
	case session.EventPhase:
		m.PhaseTransitions.WithLabelValues(ev.Session, string(ev.Phase)).Inc()
	case session.EventAnalysisComplete:
		m.Analyses.WithLabelValues(ev.Session, verdict(ev)).Inc()
	case session.EventStaleDropped:
		m.StaleResponses.WithLabelValues(ev.Session).Inc()
	case session.EventLiveTick:
		m.LiveTicks.Inc()
	case session.EventChatMessage:
		if ev.Message != nil {
			m.ChatMessages.WithLabelValues(string(ev.Message.Sender)).Inc()
		}
	}
}

// InstrumentTransport wraps next so backend traffic is counted and timed.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.backendInFlight,
		promhttp.InstrumentRoundTripperCounter(m.backendRequests,
			promhttp.InstrumentRoundTripperDuration(m.backendDuration, next)))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func verdict(ev session.Event) string {
	var c models.ComplianceSummary
	switch {
	case ev.Result != nil:
		c = ev.Result.Compliance
	case ev.Analysis != nil:
		c = ev.Analysis.Result.Compliance
	}
	switch {
	case !c.Reported:
		return "unreported"
	case c.Compliant:
		return "compliant"
	default:
		return "non_compliant"
	}
}
