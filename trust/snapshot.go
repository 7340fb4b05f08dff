package trust

import (
	"sort"

	"github.com/hupe1980/agentfloor/core"
)

// Pair is an ordered (viewer, target) pair.
type Pair struct {
	ViewerID string `json:"viewer_id"`
	TargetID string `json:"target_id"`
}

// Snapshot is an immutable view of the registry taken at the start of a
// turn. All methods are safe for concurrent use.
type Snapshot struct {
	agents      []string
	identities  map[string]core.GovernanceIdentity
	permissions map[pairKey]core.VisibilityPermission
	degraded    map[string]bool
}

// Agents returns the agents covered by the snapshot in the order requested.
func (s *Snapshot) Agents() []string {
	return append([]string(nil), s.agents...)
}

// Identity returns a copy of the agent's identity.
func (s *Snapshot) Identity(agentID string) (core.GovernanceIdentity, bool) {
	id, ok := s.identities[agentID]
	if !ok {
		return core.GovernanceIdentity{}, false
	}
	return id.Clone(), true
}

// Permission returns what viewer may see about target. Unknown pairs are
// hidden.
func (s *Snapshot) Permission(viewerID, targetID string) core.VisibilityPermission {
	if p, ok := s.permissions[pairKey{viewer: viewerID, target: targetID}]; ok {
		return p
	}
	return core.VisibilityPermission{ViewerID: viewerID, TargetID: targetID}
}

// CanView reports whether viewer may see target at all.
func (s *Snapshot) CanView(viewerID, targetID string) bool {
	return s.Permission(viewerID, targetID).CanView
}

// Degraded reports whether the agent's identity came from a stale cache.
func (s *Snapshot) Degraded(agentID string) bool {
	return s.degraded[agentID]
}

// DegradedAgents lists every degraded agent in snapshot order.
func (s *Snapshot) DegradedAgents() []string {
	var out []string
	for _, id := range s.agents {
		if s.degraded[id] {
			out = append(out, id)
		}
	}
	return out
}

// HiddenPairs lists the ordered pairs whose viewer may not see the target,
// sorted by viewer then target.
func (s *Snapshot) HiddenPairs() []Pair {
	var out []Pair
	for k, p := range s.permissions {
		if !p.CanView {
			out = append(out, Pair{ViewerID: k.viewer, TargetID: k.target})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ViewerID != out[j].ViewerID {
			return out[i].ViewerID < out[j].ViewerID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// Matrix returns every permission of the snapshot keyed by viewer and target.
func (s *Snapshot) Matrix() map[string]map[string]core.VisibilityPermission {
	out := make(map[string]map[string]core.VisibilityPermission, len(s.agents))
	for k, p := range s.permissions {
		row, ok := out[k.viewer]
		if !ok {
			row = make(map[string]core.VisibilityPermission)
			out[k.viewer] = row
		}
		row[k.target] = p
	}
	return out
}
