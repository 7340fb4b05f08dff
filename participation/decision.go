package participation

import (
	"time"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
)

var urgencyBonus = map[core.ParticipationType]float64{
	core.ParticipationAnswerQuestion:      0.3,
	core.ParticipationResolveConflict:     0.4,
	core.ParticipationChallengeAssumption: 0.2,
	core.ParticipationFillGap:             0.25,
}

var valueBonus = map[core.ParticipationType]float64{
	core.ParticipationAnswerQuestion:      0.3,
	core.ParticipationResolveConflict:     0.4,
	core.ParticipationFillGap:             0.35,
	core.ParticipationChallengeAssumption: 0.2,
	core.ParticipationBuildConsensus:      0.15,
}

var suggestedTone = map[core.ParticipationType]string{
	core.ParticipationAnswerQuestion:      "informative",
	core.ParticipationFillGap:             "informative",
	core.ParticipationResolveConflict:     "conciliatory",
	core.ParticipationChallengeAssumption: "inquisitive",
	core.ParticipationBuildConsensus:      "constructive",
	core.ParticipationSupportIdea:         "supportive",
	core.ParticipationProvideExpertise:    "informative",
}

// DecisionInput is everything the decision generator needs for one agent.
type DecisionInput struct {
	SessionID string
	Turn      int
	Agent     core.RegisteredAgent
	Context   *core.ConversationContext
	Relevance RelevanceScore
	Filter    FilterResult
	// Jitter in [0,1) positions the wait inside the wait window. It is drawn
	// by the caller so concurrent evaluation stays reproducible.
	Jitter float64
}

// DecisionGenerator converts a gated outcome into a ParticipationDecision.
type DecisionGenerator struct {
	minWait time.Duration
	maxWait time.Duration
}

// NewDecisionGenerator returns a generator drawing non-urgent waits from
// [minWait, maxWait].
func NewDecisionGenerator(minWait, maxWait time.Duration) *DecisionGenerator {
	if maxWait < minWait {
		maxWait = minWait
	}
	return &DecisionGenerator{minWait: minWait, maxWait: maxWait}
}

// Generate builds the decision. It never reads a clock; CreatedAt is the
// snapshot's analysis time.
func (g *DecisionGenerator) Generate(in DecisionInput) core.ParticipationDecision {
	ctx := in.Context
	reasons := make([]string, 0, len(in.Filter.Restrictions)+1)

	if !in.Filter.ShouldSpeak {
		reasons = append(reasons, in.Filter.Restrictions...)
		if len(reasons) == 0 {
			reasons = append(reasons, "no_trigger")
		}
		d := core.SilenceDecision(in.SessionID, in.Turn, in.Agent.ID, util.Clamp01(1-in.Filter.Confidence), reasons...)
		d.Relevance = in.Relevance.Overall
		d.Restrictions = append([]string(nil), in.Filter.Restrictions...)
		d.CreatedAt = ctx.AnalyzedAt
		return d
	}

	kind, question := selectType(in.Agent, ctx)
	traits := in.Agent.Profile.Traits

	urgency := util.Clamp01(0.5 + 0.3*ctx.UrgencyLevel + 0.2*ctx.ConflictLevel + urgencyBonus[kind] + 0.2*traits.Assertiveness)

	value := in.Relevance.Overall + valueBonus[kind]
	if ctx.Flow.StagnationRisk > 0.7 {
		value += 0.2
	}
	if len(ctx.InformationGaps) > 0 {
		value += 0.1
	}

	reasons = append(reasons, "trigger:"+string(in.Filter.Speak.Primary))
	reasons = append(reasons, in.Filter.Restrictions...)

	return core.ParticipationDecision{
		ID:                core.NewID(),
		SessionID:         in.SessionID,
		Turn:              in.Turn,
		AgentID:           in.Agent.ID,
		ShouldParticipate: true,
		Type:              kind,
		Confidence:        util.Clamp01(in.Filter.Confidence),
		Urgency:           urgency,
		EstimatedValue:    util.Clamp01(value),
		Relevance:         in.Relevance.Overall,
		PrimaryTrigger:    in.Filter.Speak.Primary,
		Reasoning:         reasons,
		Restrictions:      append([]string(nil), in.Filter.Restrictions...),
		Timing:            g.timing(in.Agent.Profile.Interruption, urgency, in.Jitter),
		Content:           contentPlan(kind, in.Agent, ctx, question),
		CreatedAt:         ctx.AnalyzedAt,
	}
}

// selectType picks the participation type by fixed priority.
func selectType(agent core.RegisteredAgent, ctx *core.ConversationContext) (core.ParticipationType, *core.PendingQuestion) {
	traits := agent.Profile.Traits
	if q, _, ok := relevantQuestion(agent, ctx); ok {
		return core.ParticipationAnswerQuestion, &q
	}
	if len(relevantGaps(agent, ctx)) > 0 {
		return core.ParticipationFillGap, nil
	}
	if ctx.ConflictLevel > 0.6 {
		if traits.Supportiveness > 0.7 {
			return core.ParticipationResolveConflict, nil
		}
		if traits.Skepticism > 0.7 {
			return core.ParticipationChallengeAssumption, nil
		}
	}
	if ctx.ConsensusLevel > 0.7 && ctx.ConsensusLevel < 0.9 {
		return core.ParticipationBuildConsensus, nil
	}
	if traits.Supportiveness > 0.7 && len(ctx.Emotion.CollaborationIndicators) > 0 {
		return core.ParticipationSupportIdea, nil
	}
	return core.ParticipationProvideExpertise, nil
}

func (g *DecisionGenerator) timing(policy core.InterruptionPolicy, urgency, jitter float64) core.TimingPlan {
	t := core.TimingPlan{
		Immediate:        urgency > 0.8,
		InterruptAllowed: policy.Allowed && urgency > policy.Threshold,
	}
	if urgency <= 0.6 {
		t.WaitFor = g.minWait + time.Duration(util.Clamp01(jitter)*float64(g.maxWait-g.minWait))
	}
	return t
}

func contentPlan(kind core.ParticipationType, agent core.RegisteredAgent, ctx *core.ConversationContext, q *core.PendingQuestion) core.ContentPlan {
	cp := core.ContentPlan{
		Type:          kind,
		SuggestedTone: suggestedTone[kind],
	}
	switch kind {
	case core.ParticipationAnswerQuestion:
		if q.Text != "" {
			cp.KeyPoints = append(cp.KeyPoints, q.Text)
		}
		cp.KeyPoints = append(cp.KeyPoints, q.Topics...)
		if q.AskedBy != "" {
			cp.TargetAgents = []string{q.AskedBy}
		}
	case core.ParticipationFillGap:
		for _, g := range relevantGaps(agent, ctx) {
			cp.KeyPoints = append(cp.KeyPoints, g.Topic)
		}
	case core.ParticipationResolveConflict, core.ParticipationChallengeAssumption:
		cp.TargetAgents = authorsOf(ctx, ctx.Emotion.ConflictIndicators, agent.ID)
		cp.References = append([]string(nil), ctx.Emotion.ConflictIndicators...)
	case core.ParticipationSupportIdea:
		cp.TargetAgents = authorsOf(ctx, ctx.Emotion.CollaborationIndicators, agent.ID)
		cp.References = append([]string(nil), ctx.Emotion.CollaborationIndicators...)
	}
	if len(cp.KeyPoints) == 0 {
		for _, t := range ctx.Topic.Terms() {
			if matchesAny(t, agent.Profile.Responsibilities) {
				cp.KeyPoints = append(cp.KeyPoints, t)
			}
		}
	}
	if len(cp.KeyPoints) == 0 {
		cp.KeyPoints = []string{ctx.Topic.Primary}
	}
	if last, ok := ctx.LastMessage(); ok && len(cp.References) == 0 {
		cp.References = []string{last.ID}
	}
	return cp
}

func authorsOf(ctx *core.ConversationContext, messageIDs []string, self string) []string {
	want := map[string]bool{}
	for _, id := range messageIDs {
		want[id] = true
	}
	var out []string
	for _, m := range ctx.RecentMessages {
		if want[m.ID] && m.AgentID != self && !contains(out, m.AgentID) {
			out = append(out, m.AgentID)
		}
	}
	return out
}
