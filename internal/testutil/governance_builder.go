package testutil

import (
	"github.com/hupe1980/agentfloor/core"
)

// NewIdentity returns an active identity with the given overall score, a
// viewer opt-in to every field class and no minimum trust.
func NewIdentity(agentID string, overall float64) core.GovernanceIdentity {
	return core.GovernanceIdentity{
		AgentID: agentID,
		Name:    agentID,
		Scorecard: core.Scorecard{
			Overall:      overall,
			Reliability:  overall,
			Compliance:   overall,
			Transparency: overall,
		},
		Boundaries: core.TrustBoundaries{
			Jurisdictions: []string{"eu"},
			MaxDisclosure: core.FilterFullTransparency,
		},
		Collaboration: core.CollaborationProfile{SharingEnabled: true},
		Visibility: core.VisibilitySettings{
			ShowScorecard:       true,
			ShowMetrics:         true,
			ShowTrustBoundaries: true,
			ShowAttestations:    true,
		},
		Status: core.StatusActive,
	}
}

// NewRecord returns a rationale record with n analysis steps over topics.
func NewRecord(id, agentID string, confidence float64, n int, topics ...string) core.RationaleRecord {
	rec := core.RationaleRecord{
		ID:         id,
		AgentID:    agentID,
		Summary:    "decided based on " + id,
		Topics:     topics,
		Confidence: confidence,
		Outcome:    core.OutcomeSuccess,
		CreatedAt:  Epoch,
	}
	for i := 0; i < n; i++ {
		rec.ReasoningSteps = append(rec.ReasoningSteps, core.ReasoningStep{
			Index:       i,
			Kind:        core.StepAnalysis,
			Description: "step",
			Topics:      topics,
			Confidence:  confidence,
		})
	}
	return rec
}
