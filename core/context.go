package core

import "time"

// DefaultTopic is the primary topic reported when no message carries topics.
const DefaultTopic = "general_discussion"

// Participant is a roster entry handed to the analyzer.
type Participant struct {
	AgentID          string
	Responsibilities []string
}

// ParticipantStats summarizes one roster member's contributions.
type ParticipantStats struct {
	AgentID           string    `json:"agent_id"`
	Responsibilities  []string  `json:"responsibilities,omitempty"`
	ContributionCount int       `json:"contribution_count"`
	Share             float64   `json:"share"`
	LastContribution  time.Time `json:"last_contribution"`
}

// HasContributed reports whether the participant has spoken at least once.
func (p ParticipantStats) HasContributed() bool { return p.ContributionCount > 0 }

// TopicAnalysis describes what the conversation is about.
type TopicAnalysis struct {
	Primary           string   `json:"primary"`
	Secondary         []string `json:"secondary,omitempty"`
	Complexity        float64  `json:"complexity"`
	Clarity           float64  `json:"clarity"`
	Diversity         float64  `json:"diversity"`
	RequiredExpertise []string `json:"required_expertise,omitempty"`
}

// Terms returns the primary topic followed by the secondary topics.
func (t TopicAnalysis) Terms() []string {
	terms := make([]string, 0, len(t.Secondary)+1)
	if t.Primary != "" {
		terms = append(terms, t.Primary)
	}
	return append(terms, t.Secondary...)
}

// FlowAnalysis describes the dynamics of the exchange.
type FlowAnalysis struct {
	Quality               float64 `json:"quality"`
	InterruptionFrequency float64 `json:"interruption_frequency"`
	ParticipationBalance  float64 `json:"participation_balance"`
	Momentum              float64 `json:"momentum"`
	StagnationRisk        float64 `json:"stagnation_risk"`
}

// ParticipantAnalysis partitions the roster by recent activity.
type ParticipantAnalysis struct {
	Active     []string `json:"active,omitempty"`
	Quiet      []string `json:"quiet,omitempty"`
	Dominating []string `json:"dominating,omitempty"`
}

// EmotionalAnalysis describes the tone of the recent window. Indicator lists
// hold message ids.
type EmotionalAnalysis struct {
	Tone                    string   `json:"tone"`
	Stability               float64  `json:"stability"`
	ConflictIndicators      []string `json:"conflict_indicators,omitempty"`
	CollaborationIndicators []string `json:"collaboration_indicators,omitempty"`
}

// QualityIndicators buckets recent message ids by pre-scored quality.
type QualityIndicators struct {
	HighQuality []string `json:"high_quality,omitempty"`
	LowQuality  []string `json:"low_quality,omitempty"`
}

// ConversationContext is the read-only snapshot every per-agent evaluation
// of a turn works from. It is rebuilt every turn and never mutated after
// construction.
type ConversationContext struct {
	SessionID        string              `json:"session_id"`
	SessionType      SessionType         `json:"session_type"`
	AnalyzedAt       time.Time           `json:"analyzed_at"`
	RecentMessages   []Message           `json:"recent_messages,omitempty"`
	Participants     []ParticipantStats  `json:"participants,omitempty"`
	Topic            TopicAnalysis       `json:"topic"`
	Flow             FlowAnalysis        `json:"flow"`
	ParticipantView  ParticipantAnalysis `json:"participant_view"`
	Emotion          EmotionalAnalysis   `json:"emotion"`
	Quality          QualityIndicators   `json:"quality"`
	UrgencyLevel     float64             `json:"urgency_level"`
	ConflictLevel    float64             `json:"conflict_level"`
	ConsensusLevel   float64             `json:"consensus_level"`
	PendingQuestions []PendingQuestion   `json:"pending_questions,omitempty"`
	InformationGaps  []InformationGap    `json:"information_gaps,omitempty"`
	// Degraded is set when the turn runs on cached governance data.
	Degraded bool `json:"degraded,omitempty"`
}

// Participant returns the stats for agentID.
func (c *ConversationContext) Participant(agentID string) (ParticipantStats, bool) {
	for _, p := range c.Participants {
		if p.AgentID == agentID {
			return p, true
		}
	}
	return ParticipantStats{}, false
}

// LastMessage returns the newest message in the window.
func (c *ConversationContext) LastMessage() (Message, bool) {
	if len(c.RecentMessages) == 0 {
		return Message{}, false
	}
	return c.RecentMessages[len(c.RecentMessages)-1], true
}
