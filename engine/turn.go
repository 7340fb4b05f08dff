package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentfloor/analysis"
	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
	"github.com/hupe1980/agentfloor/metrics"
	"github.com/hupe1980/agentfloor/participation"
	"github.com/hupe1980/agentfloor/session"
	"github.com/hupe1980/agentfloor/sharing"
)

// turn collects what a processed turn produced besides its result bundle.
type turn struct {
	sessionType core.SessionType
	number      int
	author      string
	result      core.TurnResult
	shares      []core.FilteredShare
	delayed     int
	denied      int
	degraded    bool
}

// ProcessMessage runs one turn of a session for an ingested message:
// analysis, concurrent per-agent evaluation, coordination, reply
// generation, sharing and metrics. The session is saved once at the end;
// a cancelled context or a failing stage leaves it untouched. Audit
// records are written best-effort after the commit.
func (o *Orchestrator) ProcessMessage(ctx context.Context, sessionID string, in core.IngestedMessage) (core.TurnResult, error) {
	if err := in.Validate(); err != nil {
		return core.TurnResult{}, err
	}
	unlock := o.lockSession(sessionID)
	defer unlock()
	if o.turns != nil {
		if err := o.turns.Acquire(ctx, 1); err != nil {
			return core.TurnResult{}, err
		}
		defer o.turns.Release(1)
	}

	ctx, span := o.opts.Tracer.Start(ctx, "engine.turn",
		trace.WithAttributes(
			attribute.String("agentfloor.session_id", sessionID),
			attribute.String("agentfloor.author", in.Message.AgentID),
		),
	)
	defer span.End()

	start := time.Now()
	t, err := o.runTurn(ctx, sessionID, in)
	dur := time.Since(start)

	o.opts.Metrics.ObserveTurn(metrics.TurnObservation{
		SessionType: t.sessionType,
		Result:      t.result,
		Denied:      t.denied,
		Degraded:    t.degraded,
		Duration:    dur,
		Err:         err,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, core.ErrSessionCorrupted) {
			o.abort(sessionID, err)
		}
		o.opts.Logger.Warn("Turn failed",
			"session_id", sessionID,
			"turn", t.number,
			"duration", dur,
			"error", err,
		)
		o.afterTurnCallbacks(ctx, CallbackOnError, &CallbackContext{
			SessionID: sessionID,
			Turn:      t.number,
			AgentID:   in.Message.AgentID,
			Err:       err,
		})
		return core.TurnResult{}, err
	}

	span.SetAttributes(
		attribute.Int("agentfloor.turn", t.number),
		attribute.Int("agentfloor.admitted", len(t.result.Admitted())),
		attribute.Int("agentfloor.delayed", t.delayed),
		attribute.Int("agentfloor.shares", len(t.shares)),
		attribute.String("agentfloor.phase", string(t.result.Phase)),
	)

	o.commitSideEffects(sessionID, t)
	o.logTurn(sessionID, t, dur)

	result := t.result
	o.afterTurnCallbacks(ctx, CallbackAfterTurn, &CallbackContext{
		SessionID: sessionID,
		Turn:      t.number,
		AgentID:   t.author,
		Message:   &result.ProcessedMessage,
		Decisions: result.ParticipationDecisions,
		Result:    &result,
		Phase:     result.Phase,
	})
	return t.result, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID string, in core.IngestedMessage) (t *turn, err error) {
	t = &turn{author: in.Message.AgentID}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: session %s: panic: %v", core.ErrSessionCorrupted, sessionID, r)
		}
	}()

	state, err := o.mutableSession(ctx, sessionID)
	if err != nil {
		return t, err
	}
	t.sessionType = state.Type
	t.number = state.Metrics.TurnCount + 1

	msg := in.Message
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = o.opts.Now()
	}
	if msg.MessageType == "" {
		msg.MessageType = core.MessageTypeStatement
	}

	cc := &CallbackContext{SessionID: sessionID, Turn: t.number, AgentID: msg.AgentID, Message: &msg}
	if err := o.opts.Callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, cc); err != nil {
		return t, err
	}

	state.History = append(state.History, msg)
	if _, ok := o.Agent(msg.AgentID); ok {
		state.AddParticipant(msg.AgentID)
	}

	agents, warnings := o.roster(state)
	ids := make([]string, len(agents))
	order := make(map[string]int, len(agents))
	roster := make([]core.Participant, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
		order[a.ID] = a.Order
		roster[i] = core.Participant{AgentID: a.ID, Responsibilities: a.Profile.Responsibilities}
	}

	if o.opts.Governance != nil {
		stale, err := o.registry.RefreshAll(ctx, ids)
		if err != nil {
			return t, err
		}
		warnings = append(warnings, stale...)
	}
	snap := o.registry.Snapshot(ids)
	degraded := make(map[string]bool)
	for _, id := range snap.DegradedAgents() {
		degraded[id] = true
	}
	t.degraded = len(degraded) > 0

	// the turn happens when its message arrived
	actx := o.analyzer.Analyze(analysis.Input{
		SessionID:   sessionID,
		SessionType: state.Type,
		Now:         msg.Timestamp,
		History:     state.History,
		Roster:      roster,
		Signals:     in.Signals,
	})

	evals, err := o.evaluator.EvaluateAll(ctx, participation.Request{
		SessionID: sessionID,
		Turn:      t.number,
		Context:   &actx,
		Agents:    agents,
		Autonomy:  state.Autonomy,
		Degraded:  degraded,
	})
	if err != nil {
		return t, err
	}

	decisions := make([]core.ParticipationDecision, len(evals))
	evalErrors := 0
	for i, ev := range evals {
		decisions[i] = ev.Decision
		if ev.Err != nil {
			evalErrors++
			warnings = append(warnings, ev.Err.Error())
		}
	}

	decisions, summary := o.coordinator.Coordinate(decisions, order, state.Autonomy, state.Type)
	t.delayed = len(summary.Delayed)

	cc.Decisions = decisions
	if err := o.opts.Callbacks.ExecuteCallbacks(ctx, CallbackAfterEvaluation, cc); err != nil {
		return t, err
	}

	decisions, genWarnings, err := o.generateReplies(ctx, state, agents, decisions, in.Attachments)
	if err != nil {
		return t, err
	}
	warnings = append(warnings, genWarnings...)

	shareRes, err := o.sharing.Run(ctx, sharing.Input{
		SessionID:  sessionID,
		Turn:       t.number,
		Context:    &actx,
		Agents:     agents,
		Records:    sortedRecords(state.Records),
		Visibility: snap,
		Autonomy:   state.Autonomy,
	})
	if err != nil {
		return t, err
	}
	for _, e := range shareRes.Errors {
		warnings = append(warnings, e.Error())
	}
	for i := range shareRes.Shares {
		cc.Share = &shareRes.Shares[i]
		if err := o.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnShare, cc); err != nil {
			return t, err
		}
	}
	cc.Share = nil

	suggestions := shareRes.Suggestions()
	state.Shares = append(state.Shares, shareRes.Shares...)
	state.PendingSuggestions = suggestions
	updateMetrics(&state.Metrics, decisions, evalErrors, t.delayed, shareRes, actx)

	prev := state.Phase
	if next := session.Next(prev, actx.ConsensusLevel); next != prev {
		cc.PreviousPhase, cc.Phase = prev, next
		if err := o.opts.Callbacks.ExecuteCallbacks(ctx, CallbackOnPhaseChange, cc); err != nil {
			return t, err
		}
		if err := session.Advance(state, next); err != nil {
			return t, err
		}
	}

	if err := ctx.Err(); err != nil {
		return t, err
	}

	state.Updated = o.opts.Now()
	t.result = core.TurnResult{
		SessionID:              sessionID,
		Turn:                   t.number,
		Phase:                  state.Phase,
		ProcessedMessage:       msg,
		ParticipationDecisions: decisions,
		AuditLogShares:         shareRes.Shares,
		SharingTriggers:        shareRes.Triggers,
		SessionMetrics:         state.Metrics,
		NextActions:            nextActions(decisions, suggestions, &actx, state.Phase),
		GovernanceInsights:     insights(snap, evals, shareRes),
		Warnings:               warnings,
	}
	t.shares = shareRes.Shares
	t.denied = shareRes.Denied

	if err := o.opts.SessionStore.Save(state); err != nil {
		return t, err
	}
	return t, nil
}

// roster returns the registered participants in registration order and a
// warning for every participant without a registered profile.
func (o *Orchestrator) roster(state *core.SessionState) ([]core.RegisteredAgent, []string) {
	var (
		agents   []core.RegisteredAgent
		warnings []string
	)
	for _, id := range state.Participants {
		a, ok := o.Agent(id)
		if !ok {
			warnings = append(warnings, fmt.Errorf("%w: agent %s has no registered behavior profile", core.ErrConfiguration, id).Error())
			continue
		}
		agents = append(agents, a)
	}
	sort.SliceStable(agents, func(i, j int) bool { return agents[i].Order < agents[j].Order })
	return agents, warnings
}

func sortedRecords(m map[string]core.RationaleRecord) []core.RationaleRecord {
	out := make([]core.RationaleRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func updateMetrics(m *core.SessionMetrics, decisions []core.ParticipationDecision, evalErrors, delayed int, res sharing.Result, actx core.ConversationContext) {
	sum, admitted := 0.0, 0
	for _, d := range decisions {
		sum += d.Confidence
		if d.ShouldParticipate {
			admitted++
		}
	}
	if total := m.DecisionsTotal + len(decisions); total > 0 {
		m.AverageConfidence = (m.AverageConfidence*float64(m.DecisionsTotal) + sum) / float64(total)
	}

	m.TurnCount++
	m.MessageCount++
	m.DecisionsTotal += len(decisions)
	m.SpeakersAdmitted += admitted
	m.CoordinationDelays += delayed
	m.EvaluationErrors += evalErrors
	m.SharesExecuted += len(res.Shares)
	m.SharesSuggested += len(res.Suggestions())
	m.ParticipationBalance = actx.Flow.ParticipationBalance
}

// commitSideEffects runs everything that follows a committed turn. None of
// it can fail the turn.
func (o *Orchestrator) commitSideEffects(sessionID string, t *turn) {
	for _, d := range t.result.ParticipationDecisions {
		o.writeAudit(sessionID, t.number, core.AuditDecision, d)
	}
	for _, s := range t.shares {
		o.writeAudit(sessionID, t.number, core.AuditShare, s)
		o.recordShareActivity(s)
	}
	o.writeAudit(sessionID, t.number, core.AuditMetrics, t.result.SessionMetrics)
}

func (o *Orchestrator) logTurn(sessionID string, t *turn, dur time.Duration) {
	admitted := len(t.result.Admitted())
	fl, ok := o.opts.Logger.(*logging.FloorLogger)
	if !ok {
		o.opts.Logger.Info("Turn processed",
			"session_id", sessionID,
			"turn", t.number,
			"admitted", admitted,
			"delayed", t.delayed,
			"shares", len(t.shares),
			"phase", t.result.Phase,
		)
		return
	}

	tl := fl.WithComponent("engine").WithSession(sessionID, t.number)
	for _, d := range t.result.ParticipationDecisions {
		tl.LogDecision(d.AgentID, d.ShouldParticipate, string(d.Type), d.Confidence, d.Urgency)
	}
	for _, s := range t.shares {
		tl.LogShare(s.SourceAgentID, s.RecipientAgentID, string(s.TriggerType), string(s.Disposition), len(s.ReasoningSteps))
	}
	tl.LogTurn(admitted, t.delayed, len(t.shares), dur, nil)
}

func (o *Orchestrator) afterTurnCallbacks(ctx context.Context, kind CallbackType, cc *CallbackContext) {
	if err := o.opts.Callbacks.ExecuteCallbacks(ctx, kind, cc); err != nil {
		o.opts.Logger.Warn("Callback failed",
			"session_id", cc.SessionID,
			"callback", kind,
			"error", err,
		)
	}
}
