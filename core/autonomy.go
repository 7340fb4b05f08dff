package core

import "fmt"

// AutonomyLevel is the global policy tier controlling how freely agents may
// speak and share.
type AutonomyLevel string

const (
	AutonomyTightLeash AutonomyLevel = "tight_leash"
	AutonomyGuided     AutonomyLevel = "guided"
	AutonomyBalanced   AutonomyLevel = "balanced"
	AutonomyAutonomous AutonomyLevel = "autonomous"
	AutonomyFreeRange  AutonomyLevel = "free_range"
)

type autonomyPolicy struct {
	minConfidence    float64
	maxSpeakers      int
	autoExecuteShare float64
}

var autonomyPolicies = map[AutonomyLevel]autonomyPolicy{
	AutonomyTightLeash: {minConfidence: 0.8, maxSpeakers: 1, autoExecuteShare: 0.95},
	AutonomyGuided:     {minConfidence: 0.6, maxSpeakers: 2, autoExecuteShare: 0.9},
	AutonomyBalanced:   {minConfidence: 0.4, maxSpeakers: 3, autoExecuteShare: 0.8},
	AutonomyAutonomous: {minConfidence: 0, maxSpeakers: 4, autoExecuteShare: 0.7},
	AutonomyFreeRange:  {minConfidence: 0, maxSpeakers: 5, autoExecuteShare: 0.6},
}

// Valid reports whether the level is one of the five known tiers.
func (a AutonomyLevel) Valid() bool {
	_, ok := autonomyPolicies[a]
	return ok
}

func (a AutonomyLevel) policy() autonomyPolicy {
	if p, ok := autonomyPolicies[a]; ok {
		return p
	}
	return autonomyPolicies[AutonomyBalanced]
}

// MinConfidence is the confidence an agent needs to be allowed to speak.
func (a AutonomyLevel) MinConfidence() float64 { return a.policy().minConfidence }

// MaxSpeakers is the per-turn speaker cap before session adjustments.
func (a AutonomyLevel) MaxSpeakers() int { return a.policy().maxSpeakers }

// AutoExecuteThreshold is the trigger confidence needed to execute a share
// without an explicit follow-up action.
func (a AutonomyLevel) AutoExecuteThreshold() float64 { return a.policy().autoExecuteShare }

// ParseAutonomyLevel converts s into an AutonomyLevel.
func ParseAutonomyLevel(s string) (AutonomyLevel, error) {
	a := AutonomyLevel(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown autonomy level %q", s)
	}
	return a, nil
}

// SessionType describes the kind of conversation being orchestrated.
type SessionType string

const (
	SessionTypeDiscussion            SessionType = "discussion"
	SessionTypeDecisionMaking        SessionType = "decision_making"
	SessionTypeProblemSolving        SessionType = "problem_solving"
	SessionTypeCreativeBrainstorming SessionType = "creative_brainstorming"
	SessionTypeReview                SessionType = "review"
)

var sessionTypes = map[SessionType]bool{
	SessionTypeDiscussion:            true,
	SessionTypeDecisionMaking:        true,
	SessionTypeProblemSolving:        true,
	SessionTypeCreativeBrainstorming: true,
	SessionTypeReview:                true,
}

// Valid reports whether the session type is known.
func (t SessionType) Valid() bool { return sessionTypes[t] }

// ParseSessionType converts s into a SessionType.
func ParseSessionType(s string) (SessionType, error) {
	t := SessionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown session type %q", s)
	}
	return t, nil
}

// MaxSimultaneousParticipants is the number of speakers the coordinator may
// admit in one turn. Creative brainstorming sessions get 1.5x the tier cap,
// floored.
func MaxSimultaneousParticipants(level AutonomyLevel, sessionType SessionType) int {
	n := level.MaxSpeakers()
	if sessionType == SessionTypeCreativeBrainstorming {
		n = n * 3 / 2
	}
	return n
}
