package trust

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
)

// Options configures a Registry.
type Options struct {
	// Source is the external governance registry. When nil the registry
	// serves only identities registered locally.
	Source core.GovernanceSource
	// FetchTimeout bounds a single Source.Fetch call.
	FetchTimeout time.Duration
	// Now stamps identity updates.
	Now    func() time.Time
	Logger logging.Logger
}

// Registry owns governance identities and directed trust scores. It is safe
// for concurrent use; writers invalidate the affected matrix pairs.
type Registry struct {
	opts Options

	mu         sync.RWMutex
	identities map[string]core.GovernanceIdentity
	trust      map[pairKey]float64
	degraded   map[string]bool

	matrix *Matrix
	fetch  singleflight.Group
}

// New creates an empty Registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		FetchTimeout: 2 * time.Second,
		Now:          time.Now,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		opts:       opts,
		identities: make(map[string]core.GovernanceIdentity),
		trust:      make(map[pairKey]float64),
		degraded:   make(map[string]bool),
		matrix:     NewMatrix(),
	}
}

// Register adds or replaces an identity.
func (r *Registry) Register(id core.GovernanceIdentity) error {
	if id.AgentID == "" {
		return fmt.Errorf("%w: governance identity without agent id", core.ErrConfiguration)
	}
	if err := validateScorecard(id.Scorecard); err != nil {
		return err
	}
	if id.Status == "" {
		id.Status = core.StatusActive
	}

	r.mu.Lock()
	r.identities[id.AgentID] = id.Clone()
	delete(r.degraded, id.AgentID)
	r.matrix.InvalidateAgent(id.AgentID)
	r.mu.Unlock()
	return nil
}

// Identity returns a copy of the agent's identity.
func (r *Registry) Identity(agentID string) (core.GovernanceIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identities[agentID]
	if !ok {
		return core.GovernanceIdentity{}, false
	}
	return id.Clone(), true
}

// Refresh fetches the agent's identity from the Source. Concurrent refreshes
// of the same agent share one fetch. When the fetch fails and a cached
// identity exists, the cached copy is returned, the agent is marked degraded
// and the error wraps core.ErrStaleGovernanceData.
func (r *Registry) Refresh(ctx context.Context, agentID string) (core.GovernanceIdentity, error) {
	if r.opts.Source == nil {
		if id, ok := r.Identity(agentID); ok {
			return id, nil
		}
		return core.GovernanceIdentity{}, fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentID)
	}

	v, err, _ := r.fetch.Do(agentID, func() (any, error) {
		fctx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
		defer cancel()
		return r.opts.Source.Fetch(fctx, agentID)
	})
	if err == nil {
		id := v.(core.GovernanceIdentity)
		id.AgentID = agentID
		if err := r.Register(id); err != nil {
			return core.GovernanceIdentity{}, err
		}
		return id.Clone(), nil
	}

	cached, ok := r.Identity(agentID)
	if !ok {
		return core.GovernanceIdentity{}, fmt.Errorf("fetch governance identity %s: %w", agentID, err)
	}

	r.mu.Lock()
	r.degraded[agentID] = true
	r.mu.Unlock()

	r.opts.Logger.Warn("Governance fetch failed, using cached identity",
		"agent_id", agentID,
		"error", err,
	)
	return cached, fmt.Errorf("%w: %s: %w", core.ErrStaleGovernanceData, agentID, err)
}

// RefreshAll refreshes every agent and returns one warning per stale or
// missing identity. Cancellation aborts the refresh.
func (r *Registry) RefreshAll(ctx context.Context, agentIDs []string) ([]string, error) {
	var warnings []string
	for _, id := range agentIDs {
		if err := ctx.Err(); err != nil {
			return warnings, err
		}
		if _, err := r.Refresh(ctx, id); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return warnings, ctx.Err()
			}
			warnings = append(warnings, err.Error())
		}
	}
	return warnings, nil
}

// UpdateStatus changes the live status of an identity.
func (r *Registry) UpdateStatus(agentID string, status core.IdentityStatus) error {
	return r.update(agentID, func(id *core.GovernanceIdentity) { id.Status = status })
}

// UpdateVisibility replaces the viewer settings of an identity.
func (r *Registry) UpdateVisibility(agentID string, settings core.VisibilitySettings) error {
	if settings.MinimumTrustForVisibility < 0 || settings.MinimumTrustForVisibility > 100 {
		return fmt.Errorf("%w: minimum trust %.1f outside [0,100]", core.ErrConfiguration, settings.MinimumTrustForVisibility)
	}
	return r.update(agentID, func(id *core.GovernanceIdentity) { id.Visibility = settings })
}

// UpdateScorecard replaces the scorecard of an identity.
func (r *Registry) UpdateScorecard(agentID string, sc core.Scorecard) error {
	if err := validateScorecard(sc); err != nil {
		return err
	}
	return r.update(agentID, func(id *core.GovernanceIdentity) { id.Scorecard = sc })
}

// RecordActivity adds to the live metrics of an identity.
func (r *Registry) RecordActivity(agentID string, decisions, sharesGiven, sharesReceived int) error {
	return r.update(agentID, func(id *core.GovernanceIdentity) {
		id.Metrics.DecisionsMade += decisions
		id.Metrics.SharesGiven += sharesGiven
		id.Metrics.SharesReceived += sharesReceived
	})
}

func (r *Registry) update(agentID string, fn func(id *core.GovernanceIdentity)) error {
	r.mu.Lock()
	id, ok := r.identities[agentID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrAgentNotFound, agentID)
	}
	fn(&id)
	id.UpdatedAt = r.opts.Now()
	r.identities[agentID] = id
	r.matrix.InvalidateAgent(agentID)
	r.mu.Unlock()
	return nil
}

// SetTrust sets the directed trust score viewer holds in target.
func (r *Registry) SetTrust(viewerID, targetID string, score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: trust score %.1f outside [0,100]", core.ErrConfiguration, score)
	}
	r.mu.Lock()
	r.trust[pairKey{viewer: viewerID, target: targetID}] = score
	r.matrix.InvalidatePair(viewerID, targetID)
	r.mu.Unlock()
	return nil
}

// TrustScore returns the directed trust score. Without an explicit score the
// target's overall scorecard is used.
func (r *Registry) TrustScore(viewerID, targetID string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trustLocked(viewerID, targetID)
}

func (r *Registry) trustLocked(viewerID, targetID string) float64 {
	if s, ok := r.trust[pairKey{viewer: viewerID, target: targetID}]; ok {
		return s
	}
	return r.identities[targetID].Scorecard.Overall
}

// Permission returns the cached permission for one pair.
func (r *Registry) Permission(viewerID, targetID string) core.VisibilityPermission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.permissionLocked(viewerID, targetID)
}

func (r *Registry) permissionLocked(viewerID, targetID string) core.VisibilityPermission {
	viewer, vok := r.identities[viewerID]
	target, tok := r.identities[targetID]
	if !vok || !tok {
		return core.VisibilityPermission{ViewerID: viewerID, TargetID: targetID}
	}
	p := r.matrix.Get(viewerID, targetID, func() core.VisibilityPermission {
		return Compute(viewer, target, r.trustLocked(viewerID, targetID))
	})
	p.Degraded = r.degraded[viewerID] || r.degraded[targetID]
	return p
}

// Snapshot captures identities and every ordered pair among agentIDs. Agents
// without an identity are included and see nothing.
func (r *Registry) Snapshot(agentIDs []string) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &Snapshot{
		agents:      append([]string(nil), agentIDs...),
		identities:  make(map[string]core.GovernanceIdentity, len(agentIDs)),
		permissions: make(map[pairKey]core.VisibilityPermission, len(agentIDs)*len(agentIDs)),
		degraded:    make(map[string]bool),
	}
	for _, id := range agentIDs {
		if ident, ok := r.identities[id]; ok {
			s.identities[id] = ident.Clone()
		}
		if r.degraded[id] {
			s.degraded[id] = true
		}
	}
	for _, v := range agentIDs {
		for _, t := range agentIDs {
			if v == t {
				continue
			}
			s.permissions[pairKey{viewer: v, target: t}] = r.permissionLocked(v, t)
		}
	}
	return s
}

// CachedPairs returns the number of pairs in the permission cache.
func (r *Registry) CachedPairs() int { return r.matrix.Len() }

func validateScorecard(sc core.Scorecard) error {
	for _, v := range []float64{sc.Overall, sc.Reliability, sc.Compliance, sc.Transparency} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: scorecard value %.1f outside [0,100]", core.ErrConfiguration, v)
		}
	}
	return nil
}
