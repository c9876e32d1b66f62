package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/colonyctl/internal/mux"
	"github.com/danmuck/colonyctl/internal/protocol/schema"
)

// Metrics holds the colony protocol counters.
type Metrics struct {
	dropped     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	lobby       *prometheus.CounterVec
}

// NewMetrics registers the protocol collectors on reg. A nil reg uses the
// prometheus default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "colonyctl",
				Subsystem: "mux",
				Name:      "dropped_total",
				Help:      "Messages dropped or handlers aborted, by error kind.",
			},
			[]string{"kind", "event", "role"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "colonyctl",
				Subsystem: "sequence",
				Name:      "transitions_total",
				Help:      "Sequence phase transitions.",
			},
			[]string{"from", "to"},
		),
		lobby: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "colonyctl",
				Subsystem: "simulator",
				Name:      "lobby_transitions_total",
				Help:      "Local simulator lobby phase transitions.",
			},
			[]string{"from", "to"},
		),
	}
	reg.MustRegister(m.dropped, m.transitions, m.lobby)
	return m
}

func (m *Metrics) RecordDropped(d mux.Diagnostic) {
	m.dropped.WithLabelValues(string(d.Kind), strconv.FormatUint(uint64(d.EventID), 10), d.Role.String()).Inc()
}

func (m *Metrics) RecordTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordLobbyTransition(from, to string) {
	m.lobby.WithLabelValues(from, to).Inc()
}

// DiagnosticsSink logs every diagnostic and counts it.
type DiagnosticsSink struct {
	metrics *Metrics
	reg     *schema.Registry
}

func NewDiagnosticsSink(metrics *Metrics, reg *schema.Registry) *DiagnosticsSink {
	return &DiagnosticsSink{metrics: metrics, reg: reg}
}

func (s *DiagnosticsSink) Report(d mux.Diagnostic) {
	name := "unknown"
	if s.reg != nil {
		if spec, ok := s.reg.Lookup(d.EventID); ok {
			name = spec.Name
		}
	}
	log.Warn().
		Str("kind", string(d.Kind)).
		Str("event", name).
		Uint32("event_id", uint32(d.EventID)).
		Str("role", d.Role.String()).
		Uint32("sender", d.SenderID).
		Err(d.Err).
		Msg("protocol diagnostic")
	if s.metrics != nil {
		s.metrics.RecordDropped(d)
	}
}
