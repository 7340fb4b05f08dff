package trust

import (
	"sync"

	"github.com/hupe1980/agentfloor/core"
)

// Tier thresholds on the 0..100 trust scale.
const (
	FullTrust     = 90.0
	EnhancedTrust = 80.0
	StandardTrust = 70.0
)

// TierFor maps a trust score to its visibility tier. It ignores the viewer's
// minimum, so the result is never TierNone.
func TierFor(trust float64) core.VisibilityTier {
	switch {
	case trust >= FullTrust:
		return core.TierFull
	case trust >= EnhancedTrust:
		return core.TierEnhanced
	case trust >= StandardTrust:
		return core.TierStandard
	default:
		return core.TierBasic
	}
}

// Compute derives what viewer may see about target at the given trust score.
// A field is shown only when the tier permits it and the viewer opted in.
func Compute(viewer, target core.GovernanceIdentity, trust float64) core.VisibilityPermission {
	p := core.VisibilityPermission{
		ViewerID:   viewer.AgentID,
		TargetID:   target.AgentID,
		TrustScore: trust,
	}
	settings := viewer.Visibility
	if trust < settings.MinimumTrustForVisibility {
		return p
	}

	p.CanView = true
	p.GovernanceID = target.AgentID
	p.Tier = TierFor(trust)
	p.ShowScorecard = settings.ShowScorecard && p.Tier >= core.TierBasic
	p.ShowMetrics = settings.ShowMetrics && p.Tier >= core.TierStandard
	p.ShowTrustBoundaries = settings.ShowTrustBoundaries && p.Tier >= core.TierEnhanced
	p.ShowAttestations = settings.ShowAttestations && p.Tier >= core.TierFull
	return p
}

type pairKey struct {
	viewer string
	target string
}

// Matrix caches computed permissions per ordered pair. It is safe for
// concurrent use.
type Matrix struct {
	mu    sync.RWMutex
	cache map[pairKey]core.VisibilityPermission
}

// NewMatrix returns an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{cache: make(map[pairKey]core.VisibilityPermission)}
}

// Get returns the cached permission for the pair, computing and storing it on
// a miss.
func (m *Matrix) Get(viewerID, targetID string, compute func() core.VisibilityPermission) core.VisibilityPermission {
	key := pairKey{viewer: viewerID, target: targetID}

	m.mu.RLock()
	p, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return p
	}

	p = compute()

	m.mu.Lock()
	m.cache[key] = p
	m.mu.Unlock()
	return p
}

// InvalidatePair drops a single cached pair.
func (m *Matrix) InvalidatePair(viewerID, targetID string) {
	m.mu.Lock()
	delete(m.cache, pairKey{viewer: viewerID, target: targetID})
	m.mu.Unlock()
}

// InvalidateAgent drops every pair in which agentID is viewer or target.
func (m *Matrix) InvalidateAgent(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.cache {
		if k.viewer == agentID || k.target == agentID {
			delete(m.cache, k)
		}
	}
}

// Len returns the number of cached pairs.
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}
