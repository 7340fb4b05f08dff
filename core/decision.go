package core

import "time"

// ParticipationType is what kind of contribution an agent is going to make.
type ParticipationType string

const (
	ParticipationStaySilent          ParticipationType = "stay_silent"
	ParticipationAnswerQuestion      ParticipationType = "answer_question"
	ParticipationFillGap             ParticipationType = "fill_gap"
	ParticipationResolveConflict     ParticipationType = "resolve_conflict"
	ParticipationChallengeAssumption ParticipationType = "challenge_assumption"
	ParticipationBuildConsensus      ParticipationType = "build_consensus"
	ParticipationSupportIdea         ParticipationType = "support_idea"
	ParticipationProvideExpertise    ParticipationType = "provide_expertise"
)

const (
	// ReasonCoordinationDelay tags decisions demoted by the speaker cap.
	ReasonCoordinationDelay = "coordination_delay"
	// ReasonEvaluationError tags silence caused by a failed evaluation.
	ReasonEvaluationError = "evaluation_error"
	// ReasonGenerationFailed tags silence caused by a failed or timed out
	// reply generation.
	ReasonGenerationFailed = "generation_failed"
)

// TimingPlan says when an admitted agent should speak.
type TimingPlan struct {
	Immediate        bool          `json:"immediate"`
	WaitFor          time.Duration `json:"wait_for"`
	InterruptAllowed bool          `json:"interrupt_allowed"`
}

// ContentPlan outlines what an admitted agent should talk about. It never
// contains generated text.
type ContentPlan struct {
	Type          ParticipationType `json:"type"`
	KeyPoints     []string          `json:"key_points,omitempty"`
	TargetAgents  []string          `json:"target_agents,omitempty"`
	SuggestedTone string            `json:"suggested_tone,omitempty"`
	References    []string          `json:"references,omitempty"`
}

// ParticipationDecision is the per-agent, per-turn verdict. It is created
// fresh for each evaluation and treated as immutable once emitted.
type ParticipationDecision struct {
	ID                string            `json:"id" cbor:"id"`
	SessionID         string            `json:"session_id" cbor:"session_id"`
	Turn              int               `json:"turn" cbor:"turn"`
	AgentID           string            `json:"agent_id" cbor:"agent_id"`
	ShouldParticipate bool              `json:"should_participate" cbor:"should_participate"`
	Type              ParticipationType `json:"type" cbor:"type"`
	Confidence        float64           `json:"confidence" cbor:"confidence"`
	Urgency           float64           `json:"urgency" cbor:"urgency"`
	EstimatedValue    float64           `json:"estimated_value" cbor:"estimated_value"`
	Relevance         float64           `json:"relevance" cbor:"relevance"`
	PrimaryTrigger    TriggerKind       `json:"primary_trigger,omitempty" cbor:"primary_trigger,omitempty"`
	Reasoning         []string          `json:"reasoning,omitempty" cbor:"reasoning,omitempty"`
	Restrictions      []string          `json:"restrictions,omitempty" cbor:"restrictions,omitempty"`
	Timing            TimingPlan        `json:"timing" cbor:"timing"`
	Content           ContentPlan       `json:"content" cbor:"content"`
	DeferredType      ParticipationType `json:"deferred_type,omitempty" cbor:"deferred_type,omitempty"`
	Degraded          bool              `json:"degraded,omitempty" cbor:"degraded,omitempty"`
	Reply             string            `json:"reply,omitempty" cbor:"reply,omitempty"`
	CreatedAt         time.Time         `json:"created_at" cbor:"created_at"`
}

// CoordinationScore ranks competing speakers.
func (d ParticipationDecision) CoordinationScore() float64 {
	return 0.6*d.Urgency + 0.4*d.EstimatedValue
}

// HasReason reports whether tag appears in the reasoning trace.
func (d ParticipationDecision) HasReason(tag string) bool {
	for _, r := range d.Reasoning {
		if r == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so later stages can derive new decisions without
// touching emitted ones.
func (d ParticipationDecision) Clone() ParticipationDecision {
	c := d
	c.Reasoning = append([]string(nil), d.Reasoning...)
	c.Restrictions = append([]string(nil), d.Restrictions...)
	c.Content.KeyPoints = append([]string(nil), d.Content.KeyPoints...)
	c.Content.TargetAgents = append([]string(nil), d.Content.TargetAgents...)
	c.Content.References = append([]string(nil), d.Content.References...)
	return c
}

// SilenceDecision builds the safe default decision used whenever an agent is
// filtered out or its evaluation fails.
func SilenceDecision(sessionID string, turn int, agentID string, confidence float64, reasons ...string) ParticipationDecision {
	return ParticipationDecision{
		ID:         NewID(),
		SessionID:  sessionID,
		Turn:       turn,
		AgentID:    agentID,
		Type:       ParticipationStaySilent,
		Confidence: confidence,
		Reasoning:  reasons,
		Content:    ContentPlan{Type: ParticipationStaySilent},
	}
}
