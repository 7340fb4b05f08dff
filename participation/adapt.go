package participation

import (
	"fmt"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
)

// FeedbackKind is an observation about how an agent's participation landed.
type FeedbackKind string

const (
	// FeedbackHelpful: the agent spoke and it helped.
	FeedbackHelpful FeedbackKind = "helpful"
	// FeedbackIntrusive: the agent spoke but should have stayed quiet.
	FeedbackIntrusive FeedbackKind = "intrusive"
	// FeedbackMissed: the agent stayed quiet but should have spoken.
	FeedbackMissed FeedbackKind = "missed"
)

const (
	minAdaptiveThreshold = 0.1
	maxAdaptiveThreshold = 0.95
)

// Adapt returns a copy of p nudged by one piece of feedback at the profile's
// learning rate. Thresholds stay within [0.1, 0.95]. Profiles with learning
// disabled are returned unchanged.
func Adapt(p core.AgentBehaviorProfile, kind FeedbackKind) (core.AgentBehaviorProfile, error) {
	out := p.Clone()
	if !p.Learning.Enabled || p.Learning.LearningRate <= 0 {
		return out, nil
	}
	rate := p.Learning.LearningRate

	var expertise, irrelevance, disagreement float64
	switch kind {
	case FeedbackHelpful:
		expertise = -rate / 2
	case FeedbackIntrusive:
		expertise, irrelevance, disagreement = rate, rate, rate
	case FeedbackMissed:
		expertise, irrelevance, disagreement = -rate, -rate, -rate
	default:
		return out, fmt.Errorf("unknown feedback kind %q", kind)
	}

	nudge(&out.Speaking.ExpertiseThreshold, expertise)
	nudge(&out.Speaking.DisagreementThreshold, disagreement)
	nudge(&out.Silence.IrrelevanceThreshold, irrelevance)
	return out, nil
}

// nudge moves *f by delta and bounds the result. Untouched thresholds keep
// their configured value even when it lies outside the adaptive range.
func nudge(f *float64, delta float64) {
	if delta == 0 {
		return
	}
	*f = util.Clamp(*f+delta, minAdaptiveThreshold, maxAdaptiveThreshold)
}
