package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentfloor/analysis"
	"github.com/hupe1980/agentfloor/audit"
	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
	"github.com/hupe1980/agentfloor/metrics"
	"github.com/hupe1980/agentfloor/participation"
	"github.com/hupe1980/agentfloor/session"
	"github.com/hupe1980/agentfloor/sharing"
	"github.com/hupe1980/agentfloor/trust"
)

// Config defines tuning parameters for the Orchestrator.
//
// Collaborators (stores, governance source, generator) and observability
// are configured through Options; Config only holds plain values so it can
// be filled from a configuration file.
type Config struct {
	// MaxConcurrentTurns limits the number of turns processed at the same
	// time across all sessions. Turns of one session are always serialized.
	// Set to 0 for unlimited.
	MaxConcurrentTurns int

	// HistoryWindow is the number of most recent messages handed to the
	// response generator.
	HistoryWindow int

	// MinWait and MaxWait bound the wait of non-urgent speakers.
	MinWait time.Duration
	MaxWait time.Duration

	// DeferMin and DeferMax bound the wait of speakers delayed by the
	// coordinator.
	DeferMin time.Duration
	DeferMax time.Duration

	// InterruptionWindow is the message gap that makes speaking look like
	// an interruption.
	InterruptionWindow time.Duration

	// GeneratorTimeout bounds a single reply generation.
	GeneratorTimeout time.Duration

	// GovernanceTimeout bounds a single governance registry fetch.
	GovernanceTimeout time.Duration

	// GovernanceEnabled is forwarded to the response generator.
	GovernanceEnabled bool
}

// DefaultConfig provides the default tuning values.
var DefaultConfig = Config{
	MaxConcurrentTurns: 16,
	HistoryWindow:      20,
	MinWait:            2 * time.Second,
	MaxWait:            8 * time.Second,
	DeferMin:           5 * time.Second,
	DeferMax:           15 * time.Second,
	InterruptionWindow: participation.DefaultInterruptionWindow,
	GeneratorTimeout:   10 * time.Second,
	GovernanceTimeout:  2 * time.Second,
	GovernanceEnabled:  true,
}

// Options configures an Orchestrator.
//
// All collaborators have in-memory or no-op defaults so that an
// orchestrator is usable without any setup:
//
//	o := engine.New(func(o *engine.Options) {
//	    o.Generator = model.NewMock()
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains the tuning parameters. Defaults to DefaultConfig.
	Config Config

	// SessionStore persists session aggregates. Defaults to an in-memory
	// store.
	SessionStore core.SessionStore

	// AuditStore receives decision, share and metrics records through a
	// best-effort writer. Defaults to an in-memory store.
	AuditStore core.AuditStore

	// Governance is the external governance registry. When nil only
	// identities registered through RegisterIdentity are known.
	Governance core.GovernanceSource

	// Registry overrides the governance registry built from Governance.
	Registry *trust.Registry

	// Generator produces reply text for admitted speakers. When nil the
	// orchestrator only decides and never generates.
	Generator core.ResponseGenerator

	// Sharing and Audit tune the sharing engine and the audit writer.
	Sharing []func(o *sharing.Options)
	Audit   []func(o *audit.WriterOptions)

	// Metrics receives turn, session and audit observations. Nil disables
	// metrics.
	Metrics *metrics.Collector

	// Callbacks holds turn lifecycle hooks.
	Callbacks *CallbackManager

	// Rand supplies the wait-time randomness. Inject a seeded source for
	// reproducible turns.
	Rand core.RandSource

	Tracer trace.Tracer
	Now    func() time.Time
	Logger logging.Logger
}

// Orchestrator drives the per-turn pipeline for any number of concurrent
// sessions.
//
// Concurrency model:
//   - the agent registry is guarded by an RWMutex; turns read a copy
//   - turns of one session are serialized by a per-session mutex
//   - turns of different sessions run concurrently up to MaxConcurrentTurns
//   - a panic inside a turn aborts only that session
//
// A turn commits atomically: the session is saved once at the end of the
// pipeline, and a cancelled or failed turn leaves the stored session
// untouched.
type Orchestrator struct {
	opts Options

	analyzer    *analysis.Analyzer
	evaluator   *participation.Evaluator
	coordinator *participation.Coordinator
	sharing     *sharing.Engine
	registry    *trust.Registry
	audit       *audit.Writer
	turns       *semaphore.Weighted

	mu        sync.RWMutex
	agents    map[string]core.RegisteredAgent
	nextOrder int

	sessionsMu sync.Mutex
	locks      map[string]*sessionLock
	aborted    map[string]error
}

// New creates an Orchestrator.
func New(optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config: DefaultConfig,
		Tracer: otel.Tracer("github.com/hupe1980/agentfloor/engine"),
		Now:    time.Now,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.AuditStore == nil {
		opts.AuditStore = audit.NewInMemoryStore()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Rand == nil {
		opts.Rand = core.NewSeededRand(time.Now().UnixNano())
	}
	if opts.Registry == nil {
		opts.Registry = trust.New(func(o *trust.Options) {
			o.Source = opts.Governance
			o.FetchTimeout = opts.Config.GovernanceTimeout
			o.Now = opts.Now
			o.Logger = opts.Logger
		})
	}

	cfg := opts.Config
	o := &Orchestrator{
		opts: opts,
		analyzer: analysis.New(func(ao *analysis.Options) {
			ao.InterruptionGap = cfg.InterruptionWindow
			ao.Logger = opts.Logger
		}),
		evaluator: participation.NewEvaluator(func(eo *participation.EvaluatorOptions) {
			eo.MinWait = cfg.MinWait
			eo.MaxWait = cfg.MaxWait
			eo.InterruptionWindow = cfg.InterruptionWindow
			eo.Rand = opts.Rand
			eo.Tracer = opts.Tracer
			eo.Logger = opts.Logger
		}),
		coordinator: participation.NewCoordinator(func(co *participation.CoordinatorOptions) {
			co.Rand = opts.Rand
			co.DeferMin = cfg.DeferMin
			co.DeferMax = cfg.DeferMax
			co.Logger = opts.Logger
		}),
		sharing: sharing.New(append([]func(*sharing.Options){func(so *sharing.Options) {
			so.Logger = opts.Logger
		}}, opts.Sharing...)...),
		registry: opts.Registry,
		audit: audit.NewWriter(opts.AuditStore, append([]func(*audit.WriterOptions){func(wo *audit.WriterOptions) {
			wo.Observer = func(kind core.AuditKind, outcome audit.Outcome) {
				opts.Metrics.ObserveAudit(kind, string(outcome))
			}
			wo.Logger = opts.Logger
		}}, opts.Audit...)...),
		agents:  make(map[string]core.RegisteredAgent),
		locks:   make(map[string]*sessionLock),
		aborted: make(map[string]error),
	}
	if cfg.MaxConcurrentTurns > 0 {
		o.turns = semaphore.NewWeighted(int64(cfg.MaxConcurrentTurns))
	}
	return o
}

// RegisterAgent validates and registers an agent. New agents get the next
// registration order; re-registering an agent replaces its role and profile
// but keeps its order. Invalid agents are rejected with an error wrapping
// core.ErrConfiguration.
func (o *Orchestrator) RegisterAgent(agent core.RegisteredAgent) (core.RegisteredAgent, error) {
	if agent.ID == "" {
		return core.RegisteredAgent{}, fmt.Errorf("%w: agent id is required", core.ErrConfiguration)
	}
	if agent.Role == "" {
		agent.Role = core.RoleSpecialist
	}
	if !agent.Role.Valid() {
		return core.RegisteredAgent{}, fmt.Errorf("%w: agent %s: unknown role %q", core.ErrConfiguration, agent.ID, agent.Role)
	}
	if err := agent.Profile.Validate(); err != nil {
		return core.RegisteredAgent{}, fmt.Errorf("agent %s: %w", agent.ID, err)
	}
	if agent.Name == "" {
		agent.Name = agent.ID
	}
	agent.Profile = agent.Profile.Clone()

	o.mu.Lock()
	defer o.mu.Unlock()

	if prev, ok := o.agents[agent.ID]; ok {
		agent.Order = prev.Order
	} else {
		agent.Order = o.nextOrder
		o.nextOrder++
	}
	o.agents[agent.ID] = agent

	o.opts.Logger.Info("Agent registered",
		"agent_id", agent.ID,
		"role", agent.Role,
		"order", agent.Order,
	)
	return agent, nil
}

// RegisterIdentity registers or replaces an agent's governance identity.
func (o *Orchestrator) RegisterIdentity(id core.GovernanceIdentity) error {
	return o.registry.Register(id)
}

// Registry exposes the governance registry for status, visibility and trust
// updates.
func (o *Orchestrator) Registry() *trust.Registry { return o.registry }

// Agent returns a copy of a registered agent.
func (o *Orchestrator) Agent(agentID string) (core.RegisteredAgent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	a, ok := o.agents[agentID]
	if !ok {
		return core.RegisteredAgent{}, false
	}
	a.Profile = a.Profile.Clone()
	return a, true
}

// Agents returns all registered agents in registration order.
func (o *Orchestrator) Agents() []core.RegisteredAgent {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]core.RegisteredAgent, 0, len(o.agents))
	for _, a := range o.agents {
		a.Profile = a.Profile.Clone()
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// ProvideFeedback adapts an agent's behavior profile to one piece of
// participation feedback and returns the new profile.
func (o *Orchestrator) ProvideFeedback(agentID string, kind participation.FeedbackKind) (core.AgentBehaviorProfile, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	agent, ok := o.agents[agentID]
	if !ok {
		return core.AgentBehaviorProfile{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentID)
	}
	profile, err := participation.Adapt(agent.Profile, kind)
	if err != nil {
		return core.AgentBehaviorProfile{}, err
	}
	agent.Profile = profile
	o.agents[agentID] = agent

	o.opts.Logger.Debug("Profile adapted",
		"agent_id", agentID,
		"feedback", kind,
		"expertise_threshold", profile.Speaking.ExpertiseThreshold,
	)
	return profile.Clone(), nil
}

// StartRequest describes a new session.
type StartRequest struct {
	// ID is the session id; a new one is generated when empty.
	ID       string
	Type     core.SessionType
	Autonomy core.AutonomyLevel
	// Participants are the agents evaluated every turn. Registered authors
	// of processed messages join automatically.
	Participants []string
}

// StartSession creates a session in the initialization phase.
func (o *Orchestrator) StartSession(ctx context.Context, req StartRequest) (*core.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = core.SessionTypeDiscussion
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown session type %q", core.ErrConfiguration, req.Type)
	}
	if req.Autonomy == "" {
		req.Autonomy = core.AutonomyBalanced
	}
	if !req.Autonomy.Valid() {
		return nil, fmt.Errorf("%w: unknown autonomy level %q", core.ErrConfiguration, req.Autonomy)
	}
	if req.ID == "" {
		req.ID = core.NewID()
	}

	state := core.NewSessionState(req.ID, req.Type, req.Autonomy, o.opts.Now())
	for _, p := range req.Participants {
		if p != "" {
			state.AddParticipant(p)
		}
	}
	if err := o.opts.SessionStore.Create(state); err != nil {
		return nil, err
	}
	o.opts.Metrics.SessionStarted()

	o.opts.Logger.Info("Session started",
		"session_id", state.ID,
		"session_type", state.Type,
		"autonomy", state.Autonomy,
		"participants", len(state.Participants),
	)
	return state.Clone(), nil
}

// EndSession moves a session to the conclusion phase, archives its final
// metrics and returns the concluded state.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) (*core.SessionState, error) {
	unlock := o.lockSession(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state, err := o.opts.SessionStore.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if state.Phase == core.PhaseConclusion {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionConcluded, sessionID)
	}
	if err := session.Advance(state, core.PhaseConclusion); err != nil {
		return nil, err
	}
	state.PendingSuggestions = nil
	state.Updated = o.opts.Now()
	if err := o.opts.SessionStore.Save(state); err != nil {
		return nil, err
	}

	o.sessionsMu.Lock()
	delete(o.aborted, sessionID)
	o.sessionsMu.Unlock()

	o.writeAudit(sessionID, state.Metrics.TurnCount, core.AuditMetrics, state.Metrics)
	o.opts.Metrics.SessionEnded()

	o.opts.Logger.Info("Session concluded",
		"session_id", sessionID,
		"turns", state.Metrics.TurnCount,
		"shares_executed", state.Metrics.SharesExecuted,
	)
	return state.Clone(), nil
}

// Session returns a copy of the stored session.
func (o *Orchestrator) Session(sessionID string) (*core.SessionState, error) {
	return o.opts.SessionStore.Get(sessionID)
}

// ActiveSessions returns the ids of all sessions not yet concluded.
func (o *Orchestrator) ActiveSessions() ([]string, error) {
	ids, err := o.opts.SessionStore.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		s, err := o.opts.SessionStore.Get(id)
		if errors.Is(err, core.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.Phase != core.PhaseConclusion {
			out = append(out, id)
		}
	}
	return out, nil
}

// RecordRationale stores a rationale record for a session participant. The
// record is sealed with its content hash and becomes a share source from
// the next turn on.
func (o *Orchestrator) RecordRationale(ctx context.Context, sessionID string, rec core.RationaleRecord) (core.RationaleRecord, error) {
	unlock := o.lockSession(sessionID)
	defer unlock()

	state, err := o.mutableSession(ctx, sessionID)
	if err != nil {
		return core.RationaleRecord{}, err
	}
	if _, ok := o.Agent(rec.AgentID); !ok {
		return core.RationaleRecord{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, rec.AgentID)
	}
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = o.opts.Now()
	}
	if rec.Outcome == "" {
		rec.Outcome = core.OutcomePending
	}
	sealed, err := sharing.Seal(rec)
	if err != nil {
		return core.RationaleRecord{}, err
	}

	state.Records[sealed.ID] = sealed
	state.Updated = o.opts.Now()
	if err := o.opts.SessionStore.Save(state); err != nil {
		return core.RationaleRecord{}, err
	}
	return sealed, nil
}

// ApproveSuggestion executes a suggested trigger of the latest turn. The
// permission check is repeated against the current governance state.
func (o *Orchestrator) ApproveSuggestion(ctx context.Context, sessionID, triggerID string) (core.FilteredShare, error) {
	unlock := o.lockSession(sessionID)
	defer unlock()

	state, err := o.mutableSession(ctx, sessionID)
	if err != nil {
		return core.FilteredShare{}, err
	}

	idx := -1
	for i, t := range state.PendingSuggestions {
		if t.ID == triggerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.FilteredShare{}, fmt.Errorf("%w: %s", core.ErrTriggerNotFound, triggerID)
	}
	t := state.PendingSuggestions[idx]
	rec, ok := state.Records[t.RecordID]
	if !ok {
		return core.FilteredShare{}, fmt.Errorf("%w: %s", core.ErrRecordNotFound, t.RecordID)
	}

	snap := o.registry.Snapshot([]string{t.SourceAgentID, t.RecipientAgentID})
	share, err := o.sharing.Execute(sessionID, t, rec, snap, core.DispositionApproved, o.opts.Now())
	if err != nil {
		return core.FilteredShare{}, err
	}

	state.PendingSuggestions = append(state.PendingSuggestions[:idx], state.PendingSuggestions[idx+1:]...)
	state.Shares = append(state.Shares, share)
	state.Metrics.SharesExecuted++
	state.Updated = o.opts.Now()
	if err := o.opts.SessionStore.Save(state); err != nil {
		return core.FilteredShare{}, err
	}

	o.recordShareActivity(share)
	o.writeAudit(sessionID, state.Metrics.TurnCount, core.AuditShare, share)
	o.opts.Logger.Info("Suggestion approved",
		"session_id", sessionID,
		"trigger_id", triggerID,
		"source", share.SourceAgentID,
		"recipient", share.RecipientAgentID,
	)
	return share, nil
}

// RecordShareFeedback appends feedback to an executed share. Feedback is
// the only change a share accepts after creation.
func (o *Orchestrator) RecordShareFeedback(ctx context.Context, sessionID, shareID string, fb core.Feedback) error {
	unlock := o.lockSession(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := o.opts.SessionStore.Get(sessionID)
	if err != nil {
		return err
	}
	for i := range state.Shares {
		if state.Shares[i].ID != shareID {
			continue
		}
		if fb.CreatedAt.IsZero() {
			fb.CreatedAt = o.opts.Now()
		}
		state.Shares[i].Feedback = append(state.Shares[i].Feedback, fb)
		state.Updated = o.opts.Now()
		if err := o.opts.SessionStore.Save(state); err != nil {
			return err
		}
		o.writeAudit(sessionID, state.Metrics.TurnCount, core.AuditShare, state.Shares[i])
		return nil
	}
	return fmt.Errorf("%w: %s", core.ErrShareNotFound, shareID)
}

// AuditTrail returns the audit records stored for a session so far.
func (o *Orchestrator) AuditTrail(ctx context.Context, sessionID string) ([]core.AuditRecord, error) {
	return o.opts.AuditStore.List(ctx, sessionID)
}

// AuditStats reports the outcomes of the audit writer.
func (o *Orchestrator) AuditStats() audit.WriterStats { return o.audit.Stats() }

// Close drains pending audit records. The orchestrator must not be used
// afterwards.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.audit.Close(ctx)
}

// sessionLock is a per-session mutex shared by every caller holding or
// waiting for it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession serializes work on one session and returns the unlock
// function. The entry is dropped once no caller holds or waits for it.
func (o *Orchestrator) lockSession(sessionID string) func() {
	o.sessionsMu.Lock()
	l, ok := o.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		o.locks[sessionID] = l
	}
	l.refs++
	o.sessionsMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		o.sessionsMu.Lock()
		l.refs--
		if l.refs == 0 && o.locks[sessionID] == l {
			delete(o.locks, sessionID)
		}
		o.sessionsMu.Unlock()
	}
}

// lockedSessions counts the sessions with a live lock entry.
func (o *Orchestrator) lockedSessions() int {
	o.sessionsMu.Lock()
	defer o.sessionsMu.Unlock()
	return len(o.locks)
}

// mutableSession loads a session that accepts changes.
func (o *Orchestrator) mutableSession(ctx context.Context, sessionID string) (*core.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.sessionsMu.Lock()
	abortErr := o.aborted[sessionID]
	o.sessionsMu.Unlock()
	if abortErr != nil {
		return nil, abortErr
	}

	state, err := o.opts.SessionStore.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if state.Phase == core.PhaseConclusion {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionConcluded, sessionID)
	}
	return state, nil
}

func (o *Orchestrator) abort(sessionID string, err error) {
	o.sessionsMu.Lock()
	_, seen := o.aborted[sessionID]
	if !seen {
		o.aborted[sessionID] = err
	}
	o.sessionsMu.Unlock()
	if seen {
		return
	}

	o.opts.Logger.Error("Session aborted",
		"session_id", sessionID,
		"error", err,
	)
}

func (o *Orchestrator) recordShareActivity(share core.FilteredShare) {
	if err := o.registry.RecordActivity(share.SourceAgentID, 0, 1, 0); err != nil && !errors.Is(err, core.ErrAgentNotFound) {
		o.opts.Logger.Warn("Recording share activity failed", "agent_id", share.SourceAgentID, "error", err)
	}
	if err := o.registry.RecordActivity(share.RecipientAgentID, 0, 0, 1); err != nil && !errors.Is(err, core.ErrAgentNotFound) {
		o.opts.Logger.Warn("Recording share activity failed", "agent_id", share.RecipientAgentID, "error", err)
	}
}

// writeAudit hands a record to the best-effort writer. Failures never
// reach the caller.
func (o *Orchestrator) writeAudit(sessionID string, turn int, kind core.AuditKind, v any) {
	rec, err := audit.NewRecord(sessionID, turn, kind, v)
	if err != nil {
		o.opts.Logger.Warn("Audit record encoding failed",
			"session_id", sessionID,
			"kind", kind,
			"error", err,
		)
		return
	}
	if err := o.audit.Write(rec); err != nil {
		o.opts.Logger.Warn("Audit record not queued",
			"session_id", sessionID,
			"kind", kind,
			"error", err,
		)
	}
}
