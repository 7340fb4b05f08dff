package participation

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
)

// Restriction tags recorded by the autonomy filter.
const (
	RestrictionPermissionDenied  = "permission_denied"
	RestrictionPermissionVeto    = "permission_veto"
	RestrictionSilenceTrigger    = "silence_trigger"
	RestrictionInterruption      = "interruption_penalty"
	RestrictionAutonomyThreshold = "autonomy_min_confidence"
)

// DefaultInterruptionWindow is how recently another agent must have spoken
// for a turn to count as interruption-like.
const DefaultInterruptionWindow = 5 * time.Second

// FilterResult is the gated outcome of the autonomy filter.
type FilterResult struct {
	ShouldSpeak  bool               `json:"should_speak"`
	Confidence   float64            `json:"confidence"`
	Restrictions []string           `json:"restrictions,omitempty"`
	Vetoed       []core.TriggerKind `json:"vetoed,omitempty"`
	// Speak is the speaking outcome with denied triggers removed.
	Speak TriggerOutcome `json:"speak"`
}

// PermissionVetoed reports whether the agent wanted to speak but every activated
// trigger was denied by its permissions.
func (f FilterResult) PermissionVetoed() bool {
	for _, r := range f.Restrictions {
		if r == RestrictionPermissionVeto {
			return true
		}
	}
	return false
}

// ApplyAutonomy gates a trigger outcome. Denied trigger kinds are removed
// before confidence is computed, so a veto never depends on strength. A
// permission veto is a normal outcome and not an error.
func ApplyAutonomy(agent core.RegisteredAgent, ctx *core.ConversationContext, speak, silence TriggerOutcome, level core.AutonomyLevel, window time.Duration) FilterResult {
	var fr FilterResult

	kept := make([]TriggerResult, 0, len(speak.Checks))
	for _, c := range speak.Checks {
		if c.Activated && agent.Profile.Permissions.Denies(c.Kind) {
			fr.Vetoed = append(fr.Vetoed, c.Kind)
			fr.Restrictions = append(fr.Restrictions, fmt.Sprintf("%s:%s", RestrictionPermissionDenied, c.Kind))
			kept = append(kept, TriggerResult{Kind: c.Kind})
			continue
		}
		kept = append(kept, c)
	}
	fr.Speak = aggregate(kept)
	if speak.Fired && !fr.Speak.Fired {
		fr.Restrictions = append(fr.Restrictions, RestrictionPermissionVeto)
	}

	fr.Confidence = fr.Speak.OverallStrength
	allowed := fr.Speak.Fired

	if silence.Fired {
		allowed = false
		fr.Restrictions = append(fr.Restrictions, fmt.Sprintf("%s:%s", RestrictionSilenceTrigger, silence.Primary))
	}

	if !agent.Profile.Interruption.Allowed && interruptionLike(agent.ID, ctx, window) {
		fr.Confidence *= 0.5
		fr.Restrictions = append(fr.Restrictions, RestrictionInterruption)
	}

	if allowed && fr.Confidence < level.MinConfidence() {
		allowed = false
		fr.Restrictions = append(fr.Restrictions, fmt.Sprintf("%s:%s", RestrictionAutonomyThreshold, level))
	}

	fr.Confidence = util.Clamp01(fr.Confidence)
	fr.ShouldSpeak = allowed
	return fr
}

// interruptionLike reports whether speaking now would cut into a live
// exchange between other agents: the last two messages come from others and
// each follows its predecessor (or the analysis time) within window.
func interruptionLike(agentID string, ctx *core.ConversationContext, window time.Duration) bool {
	n := len(ctx.RecentMessages)
	if n < 2 {
		return false
	}
	last, prev := ctx.RecentMessages[n-1], ctx.RecentMessages[n-2]
	if last.AgentID == agentID || prev.AgentID == agentID {
		return false
	}
	within := func(d time.Duration) bool { return d >= 0 && d < window }
	return within(ctx.AnalyzedAt.Sub(last.Timestamp)) && within(last.Timestamp.Sub(prev.Timestamp))
}
