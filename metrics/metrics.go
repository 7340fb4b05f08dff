// Package metrics exposes orchestrator activity as Prometheus metrics.
//
// A nil *Collector is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/agentfloor/core"
)

const namespace = "agentfloor"

// Collector records turn, decision, sharing and audit activity.
type Collector struct {
	turns              *prometheus.CounterVec
	turnDuration       *prometheus.HistogramVec
	decisions          *prometheus.CounterVec
	coordinationDelays prometheus.Counter
	evaluationErrors   prometheus.Counter
	degradedTurns      prometheus.Counter
	triggers           *prometheus.CounterVec
	sharesDenied       prometheus.Counter
	audit              *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed turns by session type and outcome.",
		}, []string{"session_type", "outcome"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a processed turn.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"session_type"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participation_decisions_total",
			Help:      "Participation decisions by admission and type.",
		}, []string{"participate", "type"}),
		coordinationDelays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordination_delays_total",
			Help:      "Speakers deferred by the coordinator.",
		}),
		evaluationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Agent evaluations that failed and degraded to silence.",
		}),
		degradedTurns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_turns_total",
			Help:      "Turns evaluated on cached governance data.",
		}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sharing_triggers_total",
			Help:      "Prioritized sharing triggers by type and disposition.",
		}, []string{"type", "disposition"}),
		sharesDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sharing_denied_total",
			Help:      "Detected shares dropped by permission checks.",
		}),
		audit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Audit records by kind and outcome.",
		}, []string{"kind", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions not yet concluded.",
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, r := range []struct {
		dst any
		col prometheus.Collector
	}{
		{&c.turns, c.turns},
		{&c.turnDuration, c.turnDuration},
		{&c.decisions, c.decisions},
		{&c.coordinationDelays, c.coordinationDelays},
		{&c.evaluationErrors, c.evaluationErrors},
		{&c.degradedTurns, c.degradedTurns},
		{&c.triggers, c.triggers},
		{&c.sharesDenied, c.sharesDenied},
		{&c.audit, c.audit},
		{&c.activeSessions, c.activeSessions},
	} {
		if err := register(reg, r.dst, r.col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// register registers col, or points dst at the collector already registered
// under the same descriptor.
func register(reg prometheus.Registerer, dst any, col prometheus.Collector) error {
	err := reg.Register(col)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("register metrics: %w", err)
	}
	switch d := dst.(type) {
	case **prometheus.CounterVec:
		*d = are.ExistingCollector.(*prometheus.CounterVec)
	case **prometheus.HistogramVec:
		*d = are.ExistingCollector.(*prometheus.HistogramVec)
	case *prometheus.Counter:
		*d = are.ExistingCollector.(prometheus.Counter)
	case *prometheus.Gauge:
		*d = are.ExistingCollector.(prometheus.Gauge)
	}
	return nil
}

// TurnObservation is what the orchestrator reports after a turn.
type TurnObservation struct {
	SessionType core.SessionType
	Result      core.TurnResult
	Denied      int
	Degraded    bool
	Duration    time.Duration
	Err         error
}

// ObserveTurn records a finished (or failed) turn.
func (c *Collector) ObserveTurn(o TurnObservation) {
	if c == nil {
		return
	}
	st := string(o.SessionType)
	c.turns.WithLabelValues(st, outcome(o.Err)).Inc()
	c.turnDuration.WithLabelValues(st).Observe(o.Duration.Seconds())
	if o.Err != nil {
		return
	}
	if o.Degraded {
		c.degradedTurns.Inc()
	}
	for _, d := range o.Result.ParticipationDecisions {
		c.decisions.WithLabelValues(strconv.FormatBool(d.ShouldParticipate), string(d.Type)).Inc()
		if d.HasReason(core.ReasonCoordinationDelay) {
			c.coordinationDelays.Inc()
		}
		if d.HasReason(core.ReasonEvaluationError) {
			c.evaluationErrors.Inc()
		}
	}
	for _, t := range o.Result.SharingTriggers {
		c.triggers.WithLabelValues(string(t.Type), string(t.Disposition)).Inc()
	}
	c.sharesDenied.Add(float64(o.Denied))
}

// ObserveAudit records the final outcome of an audit record.
func (c *Collector) ObserveAudit(kind core.AuditKind, outcome string) {
	if c == nil {
		return
	}
	c.audit.WithLabelValues(string(kind), outcome).Inc()
}

// SessionStarted increments the active session gauge.
func (c *Collector) SessionStarted() {
	if c != nil {
		c.activeSessions.Inc()
	}
}

// SessionEnded decrements the active session gauge.
func (c *Collector) SessionEnded() {
	if c != nil {
		c.activeSessions.Dec()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrSessionCorrupted):
		return "corrupted"
	default:
		return "error"
	}
}
