package core

import "time"

// TriggerType names a rationale-sharing opportunity detector.
type TriggerType string

const (
	ShareSimilarDecision     TriggerType = "similar_decision"
	ShareExpertiseGap        TriggerType = "expertise_gap"
	SharePolicyClarification TriggerType = "policy_clarification"
	ShareConflictResolution  TriggerType = "conflict_resolution"
	ShareNovelDecision       TriggerType = "novel_decision"
	ShareQualityValidation   TriggerType = "quality_validation"
	ShareLearningFromFailure TriggerType = "learning_from_failure"
)

// TriggerTypes lists every detector in evaluation order. The order is also
// the final tie-break when prioritizing.
var TriggerTypes = []TriggerType{
	ShareSimilarDecision,
	ShareExpertiseGap,
	SharePolicyClarification,
	ShareConflictResolution,
	ShareNovelDecision,
	ShareQualityValidation,
	ShareLearningFromFailure,
}

// FilterLevel is the amount of rationale detail a share may retain.
type FilterLevel string

const (
	FilterSummaryOnly       FilterLevel = "summary_only"
	FilterFilteredReasoning FilterLevel = "filtered_reasoning"
	FilterDetailedSharing   FilterLevel = "detailed_sharing"
	FilterFullTransparency  FilterLevel = "full_transparency"
)

var filterRank = map[FilterLevel]int{
	FilterSummaryOnly:       1,
	FilterFilteredReasoning: 2,
	FilterDetailedSharing:   3,
	FilterFullTransparency:  4,
}

// Rank orders filter levels from least (1) to most (4) detail. Unknown
// levels rank 0.
func (f FilterLevel) Rank() int { return filterRank[f] }

// StepBudget is the maximum number of reasoning steps retained at this level.
// A negative budget means unlimited.
func (f FilterLevel) StepBudget() int {
	switch f {
	case FilterSummaryOnly:
		return 1
	case FilterFilteredReasoning:
		return 3
	case FilterDetailedSharing:
		return 6
	case FilterFullTransparency:
		return -1
	default:
		return 0
	}
}

// MinFilter returns the less detailed of a and b. An unset level does not
// constrain.
func MinFilter(a, b FilterLevel) FilterLevel {
	switch {
	case a.Rank() == 0:
		return b
	case b.Rank() == 0:
		return a
	case a.Rank() <= b.Rank():
		return a
	default:
		return b
	}
}

// Disposition says what happened to a prioritized trigger.
type Disposition string

const (
	DispositionAutoExecuted Disposition = "auto_executed"
	DispositionSuggested    Disposition = "suggested"
	DispositionApproved     Disposition = "approved"
)

// SharingTrigger is a detected opportunity for SourceAgentID to disclose a
// rationale record to RecipientAgentID.
type SharingTrigger struct {
	ID                string      `json:"id" cbor:"id"`
	Type              TriggerType `json:"type" cbor:"type"`
	SourceAgentID     string      `json:"source_agent_id" cbor:"source_agent_id"`
	RecipientAgentID  string      `json:"recipient_agent_id" cbor:"recipient_agent_id"`
	RecordID          string      `json:"record_id" cbor:"record_id"`
	Topics            []string    `json:"topics,omitempty" cbor:"topics,omitempty"`
	Confidence        float64     `json:"confidence" cbor:"confidence"`
	ExpectedValue     float64     `json:"expected_value" cbor:"expected_value"`
	Urgency           float64     `json:"urgency" cbor:"urgency"`
	SharingRisk       float64     `json:"sharing_risk" cbor:"sharing_risk"`
	PriorityScore     float64     `json:"priority_score" cbor:"priority_score"`
	RecommendedFilter FilterLevel `json:"recommended_filter" cbor:"recommended_filter"`
	Rationale         string      `json:"rationale,omitempty" cbor:"rationale,omitempty"`
	Disposition       Disposition `json:"disposition,omitempty" cbor:"disposition,omitempty"`
	DetectedAt        time.Time   `json:"detected_at" cbor:"detected_at"`
}

// Priority computes the trigger's ranking score.
func (t SharingTrigger) Priority() float64 {
	return 0.4*t.ExpectedValue + 0.3*t.Confidence + 0.2*t.Urgency - 0.1*t.SharingRisk
}

// StepKind classifies a reasoning step.
type StepKind string

const (
	StepAnalysis   StepKind = "analysis"
	StepPolicy     StepKind = "policy"
	StepRisk       StepKind = "risk"
	StepConclusion StepKind = "conclusion"
)

// ReasoningStep is one step of an agent's decision rationale.
type ReasoningStep struct {
	Index       int      `json:"index" cbor:"index"`
	Kind        StepKind `json:"kind" cbor:"kind"`
	Description string   `json:"description" cbor:"description"`
	Topics      []string `json:"topics,omitempty" cbor:"topics,omitempty"`
	Confidence  float64  `json:"confidence" cbor:"confidence"`
}

// PolicyConsideration is a policy the agent weighed.
type PolicyConsideration struct {
	Policy       string `json:"policy" cbor:"policy"`
	Jurisdiction string `json:"jurisdiction,omitempty" cbor:"jurisdiction,omitempty"`
	Note         string `json:"note,omitempty" cbor:"note,omitempty"`
}

// RiskFactor is a risk the agent identified.
type RiskFactor struct {
	Name     string   `json:"name" cbor:"name"`
	Severity float64  `json:"severity" cbor:"severity"`
	Topics   []string `json:"topics,omitempty" cbor:"topics,omitempty"`
}

// Outcome is the result of the decision a rationale record describes.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// RationaleRecord is the full, unredacted rationale behind one decision an
// agent made.
type RationaleRecord struct {
	ID                   string                `json:"id" cbor:"id"`
	AgentID              string                `json:"agent_id" cbor:"agent_id"`
	Summary              string                `json:"summary" cbor:"summary"`
	Topics               []string              `json:"topics,omitempty" cbor:"topics,omitempty"`
	Confidence           float64               `json:"confidence" cbor:"confidence"`
	Outcome              Outcome               `json:"outcome" cbor:"outcome"`
	ReasoningSteps       []ReasoningStep       `json:"reasoning_steps,omitempty" cbor:"reasoning_steps,omitempty"`
	PolicyConsiderations []PolicyConsideration `json:"policy_considerations,omitempty" cbor:"policy_considerations,omitempty"`
	RiskFactors          []RiskFactor          `json:"risk_factors,omitempty" cbor:"risk_factors,omitempty"`
	ContentHash          string                `json:"content_hash,omitempty" cbor:"content_hash,omitempty"`
	CreatedAt            time.Time             `json:"created_at" cbor:"created_at"`
}

// MaxRiskSeverity returns the highest risk severity in the record.
func (r RationaleRecord) MaxRiskSeverity() float64 {
	max := 0.0
	for _, f := range r.RiskFactors {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}

// Feedback is a recipient's reaction to a share.
type Feedback struct {
	From      string    `json:"from" cbor:"from"`
	Helpful   bool      `json:"helpful" cbor:"helpful"`
	Rating    float64   `json:"rating" cbor:"rating"`
	Comment   string    `json:"comment,omitempty" cbor:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
}

// FilteredShare is the redacted disclosure actually delivered for a trigger.
// Everything except Feedback is fixed at creation.
type FilteredShare struct {
	ID                   string                `json:"id" cbor:"id"`
	SessionID            string                `json:"session_id" cbor:"session_id"`
	TriggerID            string                `json:"trigger_id" cbor:"trigger_id"`
	TriggerType          TriggerType           `json:"trigger_type" cbor:"trigger_type"`
	SourceAgentID        string                `json:"source_agent_id" cbor:"source_agent_id"`
	RecipientAgentID     string                `json:"recipient_agent_id" cbor:"recipient_agent_id"`
	RecordID             string                `json:"record_id" cbor:"record_id"`
	FilterLevel          FilterLevel           `json:"filter_level" cbor:"filter_level"`
	Summary              string                `json:"summary" cbor:"summary"`
	ReasoningSteps       []ReasoningStep       `json:"reasoning_steps,omitempty" cbor:"reasoning_steps,omitempty"`
	PolicyConsiderations []PolicyConsideration `json:"policy_considerations,omitempty" cbor:"policy_considerations,omitempty"`
	RiskFactors          []RiskFactor          `json:"risk_factors,omitempty" cbor:"risk_factors,omitempty"`
	RedactionMarkers     []string              `json:"redaction_markers,omitempty" cbor:"redaction_markers,omitempty"`
	SourceStepCount      int                   `json:"source_step_count" cbor:"source_step_count"`
	RelevanceScore       float64               `json:"relevance_score" cbor:"relevance_score"`
	LearningValue        float64               `json:"learning_value" cbor:"learning_value"`
	ContentHash          string                `json:"content_hash" cbor:"content_hash"`
	ProvenanceHash       string                `json:"provenance_hash" cbor:"provenance_hash"`
	Disposition          Disposition           `json:"disposition" cbor:"disposition"`
	Feedback             []Feedback            `json:"feedback,omitempty" cbor:"feedback,omitempty"`
	CreatedAt            time.Time             `json:"created_at" cbor:"created_at"`
}
