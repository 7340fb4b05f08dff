package core

// ActionKind names a follow-up suggested to the presentation layer.
type ActionKind string

const (
	ActionRespond         ActionKind = "respond"
	ActionReviewShare     ActionKind = "review_share"
	ActionSummarize       ActionKind = "summarize"
	ActionResolveConflict ActionKind = "resolve_conflict"
)

// NextAction is a follow-up the presentation layer may offer.
type NextAction struct {
	Kind      ActionKind `json:"kind"`
	AgentID   string     `json:"agent_id,omitempty"`
	TriggerID string     `json:"trigger_id,omitempty"`
	Detail    string     `json:"detail,omitempty"`
}

// InsightKind classifies a governance insight.
type InsightKind string

const (
	InsightHiddenPair       InsightKind = "hidden_pair"
	InsightDegradedIdentity InsightKind = "degraded_identity"
	InsightShareExecuted    InsightKind = "share_executed"
	InsightShareSuggested   InsightKind = "share_suggested"
	InsightPermissionVetoed InsightKind = "permission_vetoed"
)

// GovernanceInsight surfaces a governance-relevant observation of a turn.
type GovernanceInsight struct {
	Kind     InsightKind `json:"kind"`
	ViewerID string      `json:"viewer_id,omitempty"`
	TargetID string      `json:"target_id,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

// TurnResult is the bundle emitted after every processed message.
type TurnResult struct {
	SessionID              string                  `json:"session_id"`
	Turn                   int                     `json:"turn"`
	Phase                  SessionPhase            `json:"phase"`
	ProcessedMessage       Message                 `json:"processed_message"`
	ParticipationDecisions []ParticipationDecision `json:"participation_decisions"`
	AuditLogShares         []FilteredShare         `json:"audit_log_shares,omitempty"`
	SharingTriggers        []SharingTrigger        `json:"sharing_triggers,omitempty"`
	SessionMetrics         SessionMetrics          `json:"session_metrics"`
	NextActions            []NextAction            `json:"next_actions,omitempty"`
	GovernanceInsights     []GovernanceInsight     `json:"governance_insights,omitempty"`
	Warnings               []string                `json:"warnings,omitempty"`
}

// Admitted returns the decisions that were allowed to speak.
func (r TurnResult) Admitted() []ParticipationDecision {
	var out []ParticipationDecision
	for _, d := range r.ParticipationDecisions {
		if d.ShouldParticipate {
			out = append(out, d)
		}
	}
	return out
}

// Decision returns the decision for agentID.
func (r TurnResult) Decision(agentID string) (ParticipationDecision, bool) {
	for _, d := range r.ParticipationDecisions {
		if d.AgentID == agentID {
			return d, true
		}
	}
	return ParticipationDecision{}, false
}
