package participation

import (
	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
)

// TriggerResult is the outcome of one speaking or silence check.
type TriggerResult struct {
	Kind      core.TriggerKind `json:"kind"`
	Activated bool             `json:"activated"`
	Strength  float64          `json:"strength"`
}

// TriggerOutcome aggregates a set of checks evaluated in a fixed order.
type TriggerOutcome struct {
	Checks []TriggerResult `json:"checks"`
	// Fired is true when at least one check activated.
	Fired bool `json:"fired"`
	// OverallStrength is the mean strength over activated checks only, and
	// 0 when none activated.
	OverallStrength float64          `json:"overall_strength"`
	Primary         core.TriggerKind `json:"primary,omitempty"`
}

// Activated returns the activated checks in evaluation order.
func (o TriggerOutcome) Activated() []TriggerResult {
	var out []TriggerResult
	for _, c := range o.Checks {
		if c.Activated {
			out = append(out, c)
		}
	}
	return out
}

// Check returns the result for kind.
func (o TriggerOutcome) Check(kind core.TriggerKind) (TriggerResult, bool) {
	for _, c := range o.Checks {
		if c.Kind == kind {
			return c, true
		}
	}
	return TriggerResult{}, false
}

// aggregate derives Fired, OverallStrength and Primary from checks. Ties on
// strength go to the earlier check.
func aggregate(checks []TriggerResult) TriggerOutcome {
	o := TriggerOutcome{Checks: checks}
	var strengths []float64
	best := -1.0
	for _, c := range checks {
		if !c.Activated {
			continue
		}
		strengths = append(strengths, c.Strength)
		if c.Strength > best {
			best = c.Strength
			o.Primary = c.Kind
		}
	}
	o.Fired = len(strengths) > 0
	o.OverallStrength = util.Mean(strengths, 0)
	return o
}

func result(kind core.TriggerKind, activated bool, strength float64) TriggerResult {
	if !activated {
		return TriggerResult{Kind: kind}
	}
	return TriggerResult{Kind: kind, Activated: true, Strength: util.Clamp01(strength)}
}

// EvaluateSpeaking runs the six speak checks in order: expertise match,
// conflict, question, error correction, information gap, support.
func EvaluateSpeaking(agent core.RegisteredAgent, ctx *core.ConversationContext, rel RelevanceScore) TriggerOutcome {
	p := agent.Profile.Speaking
	checks := []TriggerResult{
		result(core.TriggerExpertiseMatch, rel.Overall >= p.ExpertiseThreshold, rel.Overall),
		result(core.TriggerConflictDetected, ctx.ConflictLevel > 0 && ctx.ConflictLevel >= p.DisagreementThreshold, ctx.ConflictLevel),
		questionCheck(agent, ctx),
		errorCorrectionCheck(agent, ctx),
		informationGapCheck(agent, ctx),
		supportCheck(agent, ctx),
	}
	return aggregate(checks)
}

func questionCheck(agent core.RegisteredAgent, ctx *core.ConversationContext) TriggerResult {
	if !agent.Profile.Speaking.QuestionDetection {
		return result(core.TriggerQuestionAsked, false, 0)
	}
	_, strength, ok := relevantQuestion(agent, ctx)
	return result(core.TriggerQuestionAsked, ok, strength)
}

// errorCorrectionCheck fires on low-quality messages written by others.
func errorCorrectionCheck(agent core.RegisteredAgent, ctx *core.ConversationContext) TriggerResult {
	if !agent.Profile.Speaking.ErrorCorrection || len(ctx.RecentMessages) == 0 {
		return result(core.TriggerErrorCorrection, false, 0)
	}
	low := map[string]bool{}
	for _, id := range ctx.Quality.LowQuality {
		low[id] = true
	}
	n := 0
	for _, m := range ctx.RecentMessages {
		if low[m.ID] && m.AgentID != agent.ID {
			n++
		}
	}
	frac := float64(n) / float64(len(ctx.RecentMessages))
	return result(core.TriggerErrorCorrection, n > 0, 0.5+0.5*frac)
}

func informationGapCheck(agent core.RegisteredAgent, ctx *core.ConversationContext) TriggerResult {
	if !agent.Profile.Speaking.ValueAddition {
		return result(core.TriggerInformationGap, false, 0)
	}
	gaps := relevantGaps(agent, ctx)
	max := 0.0
	for _, g := range gaps {
		if g.Severity > max {
			max = g.Severity
		}
	}
	return result(core.TriggerInformationGap, len(gaps) > 0, max)
}

// supportCheck fires when the tone is collaborative but the exchange is
// losing energy.
func supportCheck(agent core.RegisteredAgent, ctx *core.ConversationContext) TriggerResult {
	if !agent.Profile.Speaking.SupportProvision {
		return result(core.TriggerSupportNeeded, false, 0)
	}
	fired := len(ctx.Emotion.CollaborationIndicators) > 0 && ctx.Flow.Momentum < 0.4
	return result(core.TriggerSupportNeeded, fired, 1-ctx.Flow.Momentum)
}
