package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks dialogue turns, underwriting decisions and approval side
// effects. A nil *Metrics is a valid no-op.
type Metrics struct {
	Turns        *prometheus.CounterVec
	TurnDuration prometheus.Histogram
	Decisions    *prometheus.CounterVec
	SideEffects  *prometheus.CounterVec
}

// New registers the loan assistant metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_turns_total",
			Help: "Dialogue turns handled, by the step the turn started in",
		}, []string{"step"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_turn_duration_seconds",
			Help:    "Duration of a full dialogue turn",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_decisions_total",
			Help: "Underwriting decisions, by outcome and deciding rule",
		}, []string{"decision", "rule"}),
		SideEffects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_side_effects_total",
			Help: "Approval side effects, by kind and status",
		}, []string{"kind", "status"}),
	}
}

// ObserveTurn counts a turn and records its duration.
// Call with time.Now() at the start of the turn.
func (m *Metrics) ObserveTurn(step string, start time.Time) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(step).Inc()
	m.TurnDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncDecision(decision, rule string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(decision, rule).Inc()
}

func (m *Metrics) IncSideEffect(kind, status string) {
	if m == nil {
		return
	}
	m.SideEffects.WithLabelValues(kind, status).Inc()
}
