package participation

import (
	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
)

// RelevanceScore is the topical fit of one agent for the current turn.
type RelevanceScore struct {
	Overall        float64 `json:"overall"`
	ExpertiseMatch float64 `json:"expertise_match"`
	ValueAddition  float64 `json:"value_addition"`
	Contextual     float64 `json:"contextual"`
}

// CalculateRelevance scores agent against the snapshot:
//
//	relevance = 0.4·expertiseMatch + 0.3·valueAddition + 0.3·contextual
func CalculateRelevance(agent core.RegisteredAgent, ctx *core.ConversationContext) RelevanceScore {
	rs := RelevanceScore{
		ExpertiseMatch: ExpertiseMatch(agent.Profile.Responsibilities, ctx),
		ValueAddition:  valueAddition(agent, ctx),
		Contextual:     contextualRelevance(agent.Profile, ctx),
	}
	rs.Overall = util.Clamp01(0.4*rs.ExpertiseMatch + 0.3*rs.ValueAddition + 0.3*rs.Contextual)
	return rs
}

// ExpertiseMatch is the fraction of responsibilities that match a topic term
// or a required expertise entry.
func ExpertiseMatch(responsibilities []string, ctx *core.ConversationContext) float64 {
	if len(responsibilities) == 0 {
		return 0
	}
	terms := expertiseTerms(ctx)
	if len(terms) == 0 {
		return 0
	}
	matched := 0
	for _, r := range responsibilities {
		if matchesAny(r, terms) {
			matched++
		}
	}
	return float64(matched) / float64(len(responsibilities))
}

func expertiseTerms(ctx *core.ConversationContext) []string {
	terms := make([]string, 0, len(ctx.Topic.Secondary)+len(ctx.Topic.RequiredExpertise)+1)
	for _, t := range ctx.Topic.Terms() {
		if t != core.DefaultTopic {
			terms = append(terms, t)
		}
	}
	return append(terms, ctx.Topic.RequiredExpertise...)
}

func matchesAny(s string, terms []string) bool {
	for _, t := range terms {
		if util.TermMatch(s, t) {
			return true
		}
	}
	return false
}

func overlaps(responsibilities, terms []string) bool {
	for _, r := range responsibilities {
		if matchesAny(r, terms) {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// gapRelevant reports whether agent is flagged for, or qualified to fill, gap.
func gapRelevant(agent core.RegisteredAgent, gap core.InformationGap) bool {
	if contains(gap.RelevantAgents, agent.ID) {
		return true
	}
	terms := append([]string{gap.Topic}, gap.RequiredExpertise...)
	return overlaps(agent.Profile.Responsibilities, terms)
}

func relevantGaps(agent core.RegisteredAgent, ctx *core.ConversationContext) []core.InformationGap {
	var out []core.InformationGap
	for _, g := range ctx.InformationGaps {
		if gapRelevant(agent, g) {
			out = append(out, g)
		}
	}
	return out
}

// questionTargets returns the strongest relevance of a pending question to
// agent: 0.8 when explicitly addressed, 0.6 on a topic match, 0 otherwise.
// Questions asked by the agent itself never count.
func questionTargets(agent core.RegisteredAgent, q core.PendingQuestion) float64 {
	if q.AskedBy == agent.ID {
		return 0
	}
	if contains(q.RelevantAgents, agent.ID) {
		return 0.8
	}
	if overlaps(agent.Profile.Responsibilities, q.Topics) {
		return 0.6
	}
	return 0
}

func relevantQuestion(agent core.RegisteredAgent, ctx *core.ConversationContext) (core.PendingQuestion, float64, bool) {
	var best core.PendingQuestion
	strength := 0.0
	for _, q := range ctx.PendingQuestions {
		if s := questionTargets(agent, q); s > strength {
			best, strength = q, s
		}
	}
	return best, strength, strength > 0
}

func valueAddition(agent core.RegisteredAgent, ctx *core.ConversationContext) float64 {
	if len(ctx.InformationGaps) == 0 {
		return 0.5
	}
	total, relevant := 0.0, 0.0
	count := 0
	for _, g := range ctx.InformationGaps {
		total += g.Severity
		if gapRelevant(agent, g) {
			relevant += g.Severity
			count++
		}
	}
	if total <= 0 {
		return float64(count) / float64(len(ctx.InformationGaps))
	}
	return util.Clamp01(relevant / total)
}

func contextualRelevance(p core.AgentBehaviorProfile, ctx *core.ConversationContext) float64 {
	score := 0.5
	if ctx.Flow.StagnationRisk > 0.7 && p.Traits.Enthusiasm > 0.7 {
		score += 0.3
	}
	if ctx.ConflictLevel > 0.6 && p.Traits.Supportiveness > 0.7 {
		score += 0.2
	}
	if len(ctx.PendingQuestions) > 0 && p.Speaking.QuestionDetection {
		score += 0.2
	}
	return util.Clamp01(score)
}
