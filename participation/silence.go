package participation

import (
	"github.com/hupe1980/agentfloor/core"
)

// EvaluateSilence runs the four silence checks in order: irrelevance,
// recent contribution, flow protection, deference to expertise.
func EvaluateSilence(agent core.RegisteredAgent, ctx *core.ConversationContext, rel RelevanceScore) TriggerOutcome {
	checks := []TriggerResult{
		irrelevanceCheck(agent.Profile.Silence, rel),
		recentContributionCheck(agent, ctx),
		result(core.SilenceFlowProtection, agent.Profile.Silence.RespectFlow && ctx.Flow.Quality > 0.7, ctx.Flow.Quality),
		deferenceCheck(agent, ctx),
	}
	return aggregate(checks)
}

func irrelevanceCheck(s core.SilenceTriggers, rel RelevanceScore) TriggerResult {
	if s.IrrelevanceThreshold <= 0 || rel.Overall >= s.IrrelevanceThreshold {
		return result(core.SilenceTopicIrrelevance, false, 0)
	}
	return result(core.SilenceTopicIrrelevance, true, (s.IrrelevanceThreshold-rel.Overall)/s.IrrelevanceThreshold)
}

// recentContributionCheck measures the time since the agent last spoke
// against the analysis time of the snapshot.
func recentContributionCheck(agent core.RegisteredAgent, ctx *core.ConversationContext) TriggerResult {
	cooldown := agent.Profile.Silence.Cooldown
	stats, ok := ctx.Participant(agent.ID)
	if cooldown <= 0 || !ok || !stats.HasContributed() {
		return result(core.SilenceRecentContribution, false, 0)
	}
	elapsed := ctx.AnalyzedAt.Sub(stats.LastContribution)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= cooldown {
		return result(core.SilenceRecentContribution, false, 0)
	}
	return result(core.SilenceRecentContribution, true, 1-float64(elapsed)/float64(cooldown))
}

// deferenceCheck fires when another roster member matches the current topic
// strictly better. Strength is the expertise margin.
func deferenceCheck(agent core.RegisteredAgent, ctx *core.ConversationContext) TriggerResult {
	if !agent.Profile.Silence.DeferToExpertise {
		return result(core.SilenceDeferToExpertise, false, 0)
	}
	own := ExpertiseMatch(agent.Profile.Responsibilities, ctx)
	best := own
	for _, p := range ctx.Participants {
		if p.AgentID == agent.ID {
			continue
		}
		if m := ExpertiseMatch(p.Responsibilities, ctx); m > best {
			best = m
		}
	}
	return result(core.SilenceDeferToExpertise, best > own, best-own)
}
