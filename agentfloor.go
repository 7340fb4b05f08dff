// Package agentfloor provides a high-level façade over the session
// orchestrator (participation decisions, rationale sharing, governance
// visibility, audit and metrics). Most applications interact with this
// package by:
//  1. Loading a config.Config (or using config.Default) and creating a Floor via New()
//  2. Starting a session with StartSession
//  3. Feeding every ingested message to ProcessMessage and acting on the TurnResult
//
// The façade delegates orchestration to engine.Orchestrator while mapping
// file configuration onto its options. All defaults are safe for local
// development and testing; production deployments typically supply a
// durable audit backend, a governance source and a structured logger.
package agentfloor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hupe1980/agentfloor/audit"
	"github.com/hupe1980/agentfloor/config"
	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/engine"
	"github.com/hupe1980/agentfloor/logging"
	"github.com/hupe1980/agentfloor/metrics"
	"github.com/hupe1980/agentfloor/model"
	"github.com/hupe1980/agentfloor/model/anthropic"
	"github.com/hupe1980/agentfloor/model/openai"
	"github.com/hupe1980/agentfloor/participation"
	"github.com/hupe1980/agentfloor/sharing"
)

// Options configures the Floor instance.
type Options struct {
	// Config is the file configuration. Defaults to config.Default().
	Config config.Config

	// SessionStore overrides the in-memory session store.
	SessionStore core.SessionStore

	// AuditStore overrides the backend selected by Config.Audit.
	AuditStore core.AuditStore

	// Governance is the external governance registry. Identities from the
	// agent configuration are registered either way.
	Governance core.GovernanceSource

	// Generator overrides the provider selected by Config.Generator.
	Generator core.ResponseGenerator

	// Registerer receives the Prometheus metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	// Callbacks holds turn lifecycle hooks.
	Callbacks *engine.CallbackManager

	// Logger defaults to a FloorLogger built from Config.Logging.
	Logger logging.Logger
}

// Floor is the high-level façade aggregating the orchestrator and its
// backends.
type Floor struct {
	opts    Options
	engine  *engine.Orchestrator
	closers []func() error
}

// New creates a Floor and registers every agent of the configuration
// together with its governance identity and trust scores.
func New(optFns ...func(o *Options)) (*Floor, error) {
	opts := Options{Config: config.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewSlogLogger(logging.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format, false)
	}

	f := &Floor{opts: opts}

	if opts.AuditStore == nil {
		store, closer, err := openAudit(cfg.Audit, opts.Logger)
		if err != nil {
			return nil, err
		}
		opts.AuditStore = store
		if closer != nil {
			f.closers = append(f.closers, closer)
		}
	}

	var collector *metrics.Collector
	if opts.Registerer != nil {
		c, err := metrics.New(opts.Registerer)
		if err != nil {
			_ = f.closeBackends()
			return nil, err
		}
		collector = c
	}

	if opts.Generator == nil {
		g, err := NewGenerator(cfg.Generator)
		if err != nil {
			_ = f.closeBackends()
			return nil, err
		}
		if g != nil {
			opts.Generator = g
		}
	}

	var policy *sharing.Policy
	if cfg.Sharing.PolicyFile != "" {
		p, err := loadPolicy(cfg.Sharing.PolicyFile)
		if err != nil {
			_ = f.closeBackends()
			return nil, err
		}
		policy = p
	}

	f.engine = engine.New(func(o *engine.Options) {
		o.Config = engineConfig(cfg)
		o.SessionStore = opts.SessionStore
		o.AuditStore = opts.AuditStore
		o.Governance = opts.Governance
		o.Generator = opts.Generator
		o.Metrics = collector
		o.Callbacks = opts.Callbacks
		o.Rand = core.NewSeededRand(cfg.Seed)
		o.Logger = opts.Logger
		o.Sharing = []func(*sharing.Options){func(so *sharing.Options) {
			so.MaxTriggers = cfg.Sharing.MaxTriggers
			so.MinPriority = cfg.Sharing.MinPriority
			so.MinExpectedValue = cfg.Sharing.MinExpectedValue
			so.SimilarityThreshold = cfg.Sharing.SimilarityThreshold
			so.RecordsPerAgent = cfg.Sharing.RecordsPerAgent
			so.AutoExecuteUrgency = cfg.Sharing.AutoExecuteUrgency
			so.Policy = policy
		}}
		o.Audit = []func(*audit.WriterOptions){func(wo *audit.WriterOptions) {
			wo.QueueSize = cfg.Audit.QueueSize
			wo.MaxAttempts = cfg.Audit.MaxAttempts
		}}
	})
	f.opts = opts

	if err := f.registerAgents(cfg.Agents); err != nil {
		_ = f.Close(context.Background())
		return nil, err
	}
	return f, nil
}

func engineConfig(cfg config.Config) engine.Config {
	ec := engine.DefaultConfig
	ec.HistoryWindow = cfg.Session.HistoryWindow
	ec.MinWait = cfg.Timing.MinWait
	ec.MaxWait = cfg.Timing.MaxWait
	ec.DeferMin = cfg.Timing.DeferMin
	ec.DeferMax = cfg.Timing.DeferMax
	ec.InterruptionWindow = cfg.Timing.InterruptionWindow
	ec.GovernanceTimeout = cfg.Timing.GovernanceTimeout
	if cfg.Generator.Timeout > 0 {
		ec.GeneratorTimeout = cfg.Generator.Timeout
	}
	return ec
}

func openAudit(cfg config.AuditConfig, logger logging.Logger) (core.AuditStore, func() error, error) {
	switch cfg.Backend {
	case "none":
		return audit.Discard{}, nil, nil
	case "badger":
		store, err := audit.OpenBadger(audit.BadgerConfig{
			Path:       cfg.Path,
			SyncWrites: cfg.SyncWrites,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return audit.NewInMemoryStore(), nil, nil
	}
}

func loadPolicy(path string) (*sharing.Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open redaction policy: %w", core.ErrConfiguration, err)
	}
	defer f.Close()
	p, err := sharing.LoadPolicy(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	return p, nil
}

// NewGenerator builds the response generator selected by cfg. It returns
// nil for the "none" provider.
func NewGenerator(cfg config.GeneratorConfig) (model.Generator, error) {
	var g model.Generator
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "mock":
		g = model.NewMock()
	case "anthropic":
		g = anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.Temperature = cfg.Temperature
		})
	case "openai":
		g = openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			o.Temperature = cfg.Temperature
		})
	default:
		return nil, fmt.Errorf("%w: unknown generator provider %q", core.ErrConfiguration, cfg.Provider)
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g = model.NewRateLimited(g, rate.Limit(cfg.RateLimit), burst)
	}
	return g, nil
}

func (f *Floor) registerAgents(agents []config.AgentConfig) error {
	for _, a := range agents {
		if _, err := f.engine.RegisterAgent(a.Agent()); err != nil {
			return err
		}
		if err := f.engine.RegisterIdentity(a.GovernanceIdentity()); err != nil {
			return fmt.Errorf("agent %s: %w", a.ID, err)
		}
	}
	for _, a := range agents {
		for target, score := range a.Identity.Trust {
			if err := f.engine.Registry().SetTrust(a.ID, target, score); err != nil {
				return fmt.Errorf("agent %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

// Orchestrator exposes the underlying orchestrator.
func (f *Floor) Orchestrator() *engine.Orchestrator { return f.engine }

// RegisterAgent adds or replaces an agent at runtime.
func (f *Floor) RegisterAgent(a core.RegisteredAgent) (core.RegisteredAgent, error) {
	return f.engine.RegisterAgent(a)
}

// StartSession starts a session with the configured session type and
// autonomy. Without participants every registered agent takes part.
func (f *Floor) StartSession(ctx context.Context, id string, participants ...string) (*core.SessionState, error) {
	if len(participants) == 0 {
		for _, a := range f.engine.Agents() {
			participants = append(participants, a.ID)
		}
	}
	return f.engine.StartSession(ctx, engine.StartRequest{
		ID:           id,
		Type:         f.opts.Config.Session.Type,
		Autonomy:     f.opts.Config.Session.Autonomy,
		Participants: participants,
	})
}

// ProcessMessage runs one turn of a session.
func (f *Floor) ProcessMessage(ctx context.Context, sessionID string, in core.IngestedMessage) (core.TurnResult, error) {
	return f.engine.ProcessMessage(ctx, sessionID, in)
}

// EndSession concludes a session.
func (f *Floor) EndSession(ctx context.Context, sessionID string) (*core.SessionState, error) {
	return f.engine.EndSession(ctx, sessionID)
}

// RecordRationale stores a rationale record for later sharing.
func (f *Floor) RecordRationale(ctx context.Context, sessionID string, rec core.RationaleRecord) (core.RationaleRecord, error) {
	return f.engine.RecordRationale(ctx, sessionID, rec)
}

// ApproveSuggestion executes a suggested share.
func (f *Floor) ApproveSuggestion(ctx context.Context, sessionID, triggerID string) (core.FilteredShare, error) {
	return f.engine.ApproveSuggestion(ctx, sessionID, triggerID)
}

// ProvideFeedback adapts an agent's behavior profile.
func (f *Floor) ProvideFeedback(agentID string, kind participation.FeedbackKind) (core.AgentBehaviorProfile, error) {
	return f.engine.ProvideFeedback(agentID, kind)
}

// Report is the outcome of a simulated conversation.
type Report struct {
	Session *core.SessionState `json:"session"`
	Turns   []core.TurnResult  `json:"turns"`
}

// Simulate runs messages through a new session, concludes it and returns
// every turn result. A failing turn stops the simulation.
func (f *Floor) Simulate(ctx context.Context, sessionID string, messages []core.IngestedMessage) (Report, error) {
	s, err := f.StartSession(ctx, sessionID)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	for i, m := range messages {
		res, err := f.ProcessMessage(ctx, s.ID, m)
		if err != nil {
			return rep, fmt.Errorf("message %d: %w", i, err)
		}
		rep.Turns = append(rep.Turns, res)
	}

	rep.Session, err = f.EndSession(ctx, s.ID)
	if err != nil {
		return rep, err
	}
	return rep, nil
}

// Close drains the audit writer and closes the audit backend.
func (f *Floor) Close(ctx context.Context) error {
	var errs []error
	if f.engine != nil {
		errs = append(errs, f.engine.Close(ctx))
	}
	errs = append(errs, f.closeBackends())
	return errors.Join(errs...)
}

func (f *Floor) closeBackends() error {
	var errs []error
	for _, c := range f.closers {
		errs = append(errs, c())
	}
	f.closers = nil
	return errors.Join(errs...)
}
