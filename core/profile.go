package core

import "time"

// ParticipationStyle is a coarse label for how talkative an agent is.
type ParticipationStyle string

const (
	StyleReserved  ParticipationStyle = "reserved"
	StyleBalanced  ParticipationStyle = "balanced"
	StyleProactive ParticipationStyle = "proactive"
)

// TriggerKind names a speaking or silence check.
type TriggerKind string

// Speaking triggers.
const (
	TriggerExpertiseMatch   TriggerKind = "expertise_match"
	TriggerConflictDetected TriggerKind = "conflict_detected"
	TriggerQuestionAsked    TriggerKind = "question_asked"
	TriggerErrorCorrection  TriggerKind = "error_correction"
	TriggerInformationGap   TriggerKind = "information_gap"
	TriggerSupportNeeded    TriggerKind = "support_needed"
)

// Silence triggers.
const (
	SilenceTopicIrrelevance   TriggerKind = "topic_irrelevance"
	SilenceRecentContribution TriggerKind = "recent_contribution"
	SilenceFlowProtection     TriggerKind = "flow_protection"
	SilenceDeferToExpertise   TriggerKind = "defer_to_expertise"
)

// SpeakingTriggers configures the "speak" checks of one agent.
type SpeakingTriggers struct {
	ExpertiseThreshold    float64 `json:"expertise_threshold" yaml:"expertise_threshold" validate:"min=0,max=1"`
	DisagreementThreshold float64 `json:"disagreement_threshold" yaml:"disagreement_threshold" validate:"min=0,max=1"`
	QuestionDetection     bool    `json:"question_detection" yaml:"question_detection"`
	ErrorCorrection       bool    `json:"error_correction" yaml:"error_correction"`
	ValueAddition         bool    `json:"value_addition" yaml:"value_addition"`
	SupportProvision      bool    `json:"support_provision" yaml:"support_provision"`
}

// SilenceTriggers configures the "stay quiet" checks of one agent.
type SilenceTriggers struct {
	IrrelevanceThreshold float64       `json:"irrelevance_threshold" yaml:"irrelevance_threshold" validate:"min=0,max=1"`
	Cooldown             time.Duration `json:"cooldown" yaml:"cooldown" validate:"min=0"`
	RespectFlow          bool          `json:"respect_flow" yaml:"respect_flow"`
	DeferToExpertise     bool          `json:"defer_to_expertise" yaml:"defer_to_expertise"`
}

// InterruptionPolicy controls whether an agent may cut into a live exchange.
type InterruptionPolicy struct {
	Allowed   bool    `json:"allowed" yaml:"allowed"`
	Threshold float64 `json:"threshold" yaml:"threshold" validate:"min=0,max=1"`
}

// Traits are personality scalars in [0,1].
type Traits struct {
	Enthusiasm     float64 `json:"enthusiasm" yaml:"enthusiasm" validate:"min=0,max=1"`
	Supportiveness float64 `json:"supportiveness" yaml:"supportiveness" validate:"min=0,max=1"`
	Skepticism     float64 `json:"skepticism" yaml:"skepticism" validate:"min=0,max=1"`
	Assertiveness  float64 `json:"assertiveness" yaml:"assertiveness" validate:"min=0,max=1"`
}

// Permissions holds per-agent overrides. Denied trigger kinds are vetoed no
// matter how strong they fire.
type Permissions struct {
	DeniedTriggers []TriggerKind `json:"denied_triggers,omitempty" yaml:"denied_triggers"`
}

// Denies reports whether kind is vetoed.
func (p Permissions) Denies(kind TriggerKind) bool {
	for _, d := range p.DeniedTriggers {
		if d == kind {
			return true
		}
	}
	return false
}

// AdaptiveLearning parameterizes feedback-driven profile adaptation.
type AdaptiveLearning struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate" validate:"min=0,max=1"`
}

// AgentBehaviorProfile is the long-lived participation configuration of an
// agent. It is only changed through explicit feedback adaptation.
type AgentBehaviorProfile struct {
	Style            ParticipationStyle `json:"style" yaml:"style"`
	Responsibilities []string           `json:"responsibilities,omitempty" yaml:"responsibilities"`
	Speaking         SpeakingTriggers   `json:"speaking" yaml:"speaking"`
	Silence          SilenceTriggers    `json:"silence" yaml:"silence"`
	Interruption     InterruptionPolicy `json:"interruption" yaml:"interruption"`
	Traits           Traits             `json:"traits" yaml:"traits"`
	Permissions      Permissions        `json:"permissions" yaml:"permissions"`
	Learning         AdaptiveLearning   `json:"learning" yaml:"learning"`
}

// DefaultBehaviorProfile returns a balanced profile.
func DefaultBehaviorProfile() AgentBehaviorProfile {
	return AgentBehaviorProfile{
		Style: StyleBalanced,
		Speaking: SpeakingTriggers{
			ExpertiseThreshold:    0.6,
			DisagreementThreshold: 0.6,
			QuestionDetection:     true,
			ErrorCorrection:       true,
			ValueAddition:         true,
			SupportProvision:      true,
		},
		Silence: SilenceTriggers{
			IrrelevanceThreshold: 0.3,
			Cooldown:             2 * time.Minute,
			RespectFlow:          true,
			DeferToExpertise:     true,
		},
		Interruption: InterruptionPolicy{Allowed: false, Threshold: 0.9},
		Traits: Traits{
			Enthusiasm:     0.5,
			Supportiveness: 0.5,
			Skepticism:     0.5,
			Assertiveness:  0.5,
		},
		Learning: AdaptiveLearning{Enabled: true, LearningRate: 0.05},
	}
}

// Clone returns a deep copy of the profile.
func (p AgentBehaviorProfile) Clone() AgentBehaviorProfile {
	c := p
	c.Responsibilities = append([]string(nil), p.Responsibilities...)
	c.Permissions.DeniedTriggers = append([]TriggerKind(nil), p.Permissions.DeniedTriggers...)
	return c
}
