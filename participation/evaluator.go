package participation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
)

// DegradedConfidenceFactor scales the confidence of agents whose governance
// data came from a stale cache.
const DegradedConfidenceFactor = 0.8

// EvaluatorOptions configures an Evaluator.
type EvaluatorOptions struct {
	// MinWait and MaxWait bound the wait of non-urgent speakers.
	MinWait time.Duration
	MaxWait time.Duration
	// InterruptionWindow is the gap that makes a turn interruption-like.
	InterruptionWindow time.Duration
	// Rand supplies the per-agent timing jitter.
	Rand core.RandSource
	// BeforeEvaluate runs inside the agent's task before scoring. A returned
	// error or a panic degrades only that agent to silence.
	BeforeEvaluate func(ctx context.Context, agent core.RegisteredAgent) error
	Tracer         trace.Tracer
	Logger         logging.Logger
}

// Evaluator runs the relevance → trigger → autonomy → decision pipeline for
// every agent of a turn concurrently.
type Evaluator struct {
	opts EvaluatorOptions
	gen  *DecisionGenerator
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(optFns ...func(o *EvaluatorOptions)) *Evaluator {
	opts := EvaluatorOptions{
		MinWait:            2 * time.Second,
		MaxWait:            8 * time.Second,
		InterruptionWindow: DefaultInterruptionWindow,
		Rand:               core.NewSeededRand(1),
		Tracer:             otel.Tracer("github.com/hupe1980/agentfloor/participation"),
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Evaluator{opts: opts, gen: NewDecisionGenerator(opts.MinWait, opts.MaxWait)}
}

// Request describes one turn's evaluation.
type Request struct {
	SessionID string
	Turn      int
	Context   *core.ConversationContext
	Agents    []core.RegisteredAgent
	Autonomy  core.AutonomyLevel
	// Degraded lists agents whose governance identity is stale.
	Degraded map[string]bool
}

// Evaluation is the full trace of one agent's evaluation.
type Evaluation struct {
	Decision  core.ParticipationDecision
	Relevance RelevanceScore
	Speak     TriggerOutcome
	Silence   TriggerOutcome
	Filter    FilterResult
	// Err is non-nil when the agent degraded to silence because its
	// evaluation failed. It wraps core.ErrEvaluation.
	Err error
}

// EvaluateAll evaluates every agent of the request, one goroutine per agent,
// and joins before returning. Results are in agent order. Per-agent failures
// are reported in Evaluation.Err; the only returned error is cancellation.
func (e *Evaluator) EvaluateAll(ctx context.Context, req Request) ([]Evaluation, error) {
	jitter := make([]float64, len(req.Agents))
	for i := range jitter {
		jitter[i] = e.opts.Rand.Float64()
	}

	results := make([]Evaluation, len(req.Agents))
	g, gctx := errgroup.WithContext(ctx)
	for i, agent := range req.Agents {
		i, agent := i, agent
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.evaluateTraced(gctx, req, agent, jitter[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Evaluator) evaluateTraced(ctx context.Context, req Request, agent core.RegisteredAgent, jitter float64) Evaluation {
	ctx, span := e.opts.Tracer.Start(ctx, "participation.evaluate",
		trace.WithAttributes(
			attribute.String("agentfloor.session_id", req.SessionID),
			attribute.Int("agentfloor.turn", req.Turn),
			attribute.String("agentfloor.agent_id", agent.ID),
		),
	)
	defer span.End()

	ev := e.Evaluate(ctx, req, agent, jitter)
	span.SetAttributes(
		attribute.Bool("agentfloor.participate", ev.Decision.ShouldParticipate),
		attribute.Float64("agentfloor.confidence", ev.Decision.Confidence),
	)
	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
	}
	return ev
}

// Evaluate runs the pipeline for a single agent. Any error or panic yields
// the silence default with Err set.
func (e *Evaluator) Evaluate(ctx context.Context, req Request, agent core.RegisteredAgent, jitter float64) (ev Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			ev = e.failed(req, agent, fmt.Errorf("%w: agent %s: panic: %v", core.ErrEvaluation, agent.ID, r))
		}
	}()

	if e.opts.BeforeEvaluate != nil {
		if err := e.opts.BeforeEvaluate(ctx, agent); err != nil {
			return e.failed(req, agent, fmt.Errorf("%w: agent %s: %w", core.ErrEvaluation, agent.ID, err))
		}
	}

	snapshot := req.Context
	ev.Relevance = CalculateRelevance(agent, snapshot)
	ev.Speak = EvaluateSpeaking(agent, snapshot, ev.Relevance)
	ev.Silence = EvaluateSilence(agent, snapshot, ev.Relevance)
	ev.Filter = ApplyAutonomy(agent, snapshot, ev.Speak, ev.Silence, req.Autonomy, e.opts.InterruptionWindow)

	if req.Degraded[agent.ID] {
		ev.Filter.Confidence *= DegradedConfidenceFactor
		ev.Filter.Restrictions = append(ev.Filter.Restrictions, "degraded_governance")
		if ev.Filter.ShouldSpeak && ev.Filter.Confidence < req.Autonomy.MinConfidence() {
			ev.Filter.ShouldSpeak = false
		}
	}

	ev.Decision = e.gen.Generate(DecisionInput{
		SessionID: req.SessionID,
		Turn:      req.Turn,
		Agent:     agent,
		Context:   snapshot,
		Relevance: ev.Relevance,
		Filter:    ev.Filter,
		Jitter:    jitter,
	})
	ev.Decision.Degraded = req.Degraded[agent.ID]
	return ev
}

func (e *Evaluator) failed(req Request, agent core.RegisteredAgent, err error) Evaluation {
	e.opts.Logger.Warn("Agent evaluation failed",
		"session_id", req.SessionID,
		"turn", req.Turn,
		"agent_id", agent.ID,
		"error", err,
	)
	d := core.SilenceDecision(req.SessionID, req.Turn, agent.ID, 1, core.ReasonEvaluationError)
	if req.Context != nil {
		d.CreatedAt = req.Context.AnalyzedAt
	}
	return Evaluation{Decision: d, Err: err}
}
