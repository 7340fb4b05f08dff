package sharing

import (
	"strings"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
)

// detectContext is the read-only input shared by all detectors of a turn.
type detectContext struct {
	ctx       *core.ConversationContext
	agents    []core.RegisteredAgent
	records   []core.RationaleRecord
	current   []string
	active    map[string]bool
	threshold float64
}

func newDetectContext(ctx *core.ConversationContext, agents []core.RegisteredAgent, records []core.RationaleRecord, threshold float64) *detectContext {
	dc := &detectContext{
		ctx:       ctx,
		agents:    agents,
		records:   records,
		active:    make(map[string]bool, len(ctx.ParticipantView.Active)),
		threshold: threshold,
	}
	for _, t := range append(ctx.Topic.Terms(), ctx.Topic.RequiredExpertise...) {
		if t != core.DefaultTopic {
			dc.current = append(dc.current, t)
		}
	}
	for _, id := range ctx.ParticipantView.Active {
		dc.active[id] = true
	}
	return dc
}

// candidate is a detected trigger before permission checks and scoring.
type candidate struct {
	trigger core.SharingTrigger
	record  core.RationaleRecord
}

type detector func(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate

var detectors = map[core.TriggerType]detector{
	core.ShareSimilarDecision:     detectSimilarDecision,
	core.ShareExpertiseGap:        detectExpertiseGap,
	core.SharePolicyClarification: detectPolicyClarification,
	core.ShareConflictResolution:  detectConflictResolution,
	core.ShareNovelDecision:       detectNovelDecision,
	core.ShareQualityValidation:   detectQualityValidation,
	core.ShareLearningFromFailure: detectLearningFromFailure,
}

func (dc *detectContext) others(src string) []core.RegisteredAgent {
	out := make([]core.RegisteredAgent, 0, len(dc.agents))
	for _, a := range dc.agents {
		if a.ID != src {
			out = append(out, a)
		}
	}
	return out
}

func newCandidate(kind core.TriggerType, src, recipient string, rec core.RationaleRecord, topics []string, conf, value, urgency, risk float64, filter core.FilterLevel, rationale string) candidate {
	return candidate{
		record: rec,
		trigger: core.SharingTrigger{
			Type:              kind,
			SourceAgentID:     src,
			RecipientAgentID:  recipient,
			RecordID:          rec.ID,
			Topics:            append([]string(nil), topics...),
			Confidence:        util.Clamp01(conf),
			ExpectedValue:     util.Clamp01(value),
			Urgency:           util.Clamp01(urgency),
			SharingRisk:       util.Clamp01(risk),
			RecommendedFilter: filter,
			Rationale:         rationale,
		},
	}
}

// detectSimilarDecision: the record's topics resemble what the active
// participants are discussing now.
func detectSimilarDecision(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate {
	if rec.Outcome == core.OutcomeFailure {
		return nil
	}
	sim := similarity(rec.Topics, dc.current)
	if sim < dc.threshold {
		return nil
	}
	var out []candidate
	for _, x := range dc.others(src.ID) {
		if !dc.active[x.ID] {
			continue
		}
		out = append(out, newCandidate(core.ShareSimilarDecision, src.ID, x.ID, rec, rec.Topics,
			rec.Confidence,
			0.6+0.4*sim,
			0.4+0.4*dc.ctx.UrgencyLevel,
			rec.MaxRiskSeverity(),
			core.FilterDetailedSharing,
			"a similar decision was made before",
		))
	}
	return out
}

// detectExpertiseGap: the record covers an open information gap that the
// recipient is flagged for or cannot fill itself.
func detectExpertiseGap(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate {
	var out []candidate
	for _, g := range dc.ctx.InformationGaps {
		terms := append([]string{g.Topic}, g.RequiredExpertise...)
		cov := coverage(rec.Topics, terms)
		if cov == 0 {
			continue
		}
		for _, x := range dc.others(src.ID) {
			flagged := containsID(g.RelevantAgents, x.ID)
			lacking := dc.active[x.ID] && coverage(x.Profile.Responsibilities, terms) == 0
			if !flagged && !lacking {
				continue
			}
			out = append(out, newCandidate(core.ShareExpertiseGap, src.ID, x.ID, rec, terms,
				rec.Confidence*(0.5+0.5*cov),
				0.6+0.4*g.Severity,
				0.5+0.5*g.Severity,
				rec.MaxRiskSeverity(),
				core.FilterFilteredReasoning,
				"fills information gap "+g.Topic,
			))
		}
	}
	return out
}

// detectPolicyClarification: someone asked a question the record's policy
// considerations answer.
func detectPolicyClarification(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate {
	if len(rec.PolicyConsiderations) == 0 {
		return nil
	}
	terms := append([]string(nil), rec.Topics...)
	scoped := 0
	for _, p := range rec.PolicyConsiderations {
		terms = append(terms, p.Policy)
		if p.Jurisdiction != "" {
			scoped++
		}
	}
	policies := float64(len(rec.PolicyConsiderations))

	var out []candidate
	seen := map[string]bool{}
	for _, q := range dc.ctx.PendingQuestions {
		if q.AskedBy == "" || q.AskedBy == src.ID || seen[q.AskedBy] || !overlap(q.Topics, terms) {
			continue
		}
		if _, ok := dc.agent(q.AskedBy); !ok {
			continue
		}
		seen[q.AskedBy] = true
		out = append(out, newCandidate(core.SharePolicyClarification, src.ID, q.AskedBy, rec, q.Topics,
			rec.Confidence,
			0.7+0.1*minf(policies, 3),
			0.6+0.4*dc.ctx.UrgencyLevel,
			0.5*float64(scoped)/policies,
			core.FilterFilteredReasoning,
			"clarifies policy behind a pending question",
		))
	}
	return out
}

// detectConflictResolution: a heated exchange on a topic the record already
// settled.
func detectConflictResolution(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate {
	if dc.ctx.ConflictLevel <= 0.6 || similarity(rec.Topics, dc.current) == 0 {
		return nil
	}
	authors := map[string]bool{}
	for _, m := range dc.ctx.RecentMessages {
		if containsID(dc.ctx.Emotion.ConflictIndicators, m.ID) {
			authors[m.AgentID] = true
		}
	}
	var out []candidate
	for _, x := range dc.others(src.ID) {
		if !authors[x.ID] {
			continue
		}
		out = append(out, newCandidate(core.ShareConflictResolution, src.ID, x.ID, rec, rec.Topics,
			rec.Confidence,
			0.5+0.5*dc.ctx.ConflictLevel,
			dc.ctx.ConflictLevel,
			rec.MaxRiskSeverity(),
			core.FilterFilteredReasoning,
			"earlier rationale may settle the disagreement",
		))
	}
	return out
}

// detectNovelDecision: a confident decision on topics nobody else has
// reasoned about, offered to agents responsible for those topics.
func detectNovelDecision(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate {
	if rec.Confidence < 0.8 || rec.Outcome == core.OutcomeFailure || len(rec.Topics) == 0 {
		return nil
	}
	for _, other := range dc.records {
		if other.AgentID != src.ID && overlap(other.Topics, rec.Topics) {
			return nil
		}
	}
	var out []candidate
	for _, x := range dc.others(src.ID) {
		cov := coverage(x.Profile.Responsibilities, rec.Topics)
		if cov == 0 {
			continue
		}
		out = append(out, newCandidate(core.ShareNovelDecision, src.ID, x.ID, rec, rec.Topics,
			rec.Confidence,
			0.75+0.25*cov,
			0.3,
			rec.MaxRiskSeverity(),
			core.FilterSummaryOnly,
			"first decision on these topics",
		))
	}
	return out
}

// detectQualityValidation: an uncertain pending decision offered to agents
// able to validate it.
func detectQualityValidation(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate {
	if rec.Confidence >= 0.6 || rec.Outcome != core.OutcomePending {
		return nil
	}
	var out []candidate
	for _, x := range dc.others(src.ID) {
		cov := coverage(x.Profile.Responsibilities, rec.Topics)
		if cov < 0.5 {
			continue
		}
		out = append(out, newCandidate(core.ShareQualityValidation, src.ID, x.ID, rec, rec.Topics,
			0.5+0.5*cov,
			0.6+0.4*cov,
			0.5+0.3*dc.ctx.UrgencyLevel,
			rec.MaxRiskSeverity(),
			core.FilterDetailedSharing,
			"uncertain decision needs validation",
		))
	}
	return out
}

// detectLearningFromFailure: a failed decision others can learn from,
// weighted by how close it is to the current discussion.
func detectLearningFromFailure(dc *detectContext, src core.RegisteredAgent, rec core.RationaleRecord) []candidate {
	if rec.Outcome != core.OutcomeFailure {
		return nil
	}
	sim := similarity(rec.Topics, dc.current)
	var out []candidate
	for _, x := range dc.others(src.ID) {
		if !dc.active[x.ID] && coverage(x.Profile.Responsibilities, rec.Topics) == 0 {
			continue
		}
		out = append(out, newCandidate(core.ShareLearningFromFailure, src.ID, x.ID, rec, rec.Topics,
			0.7+0.3*sim,
			0.75+0.25*sim,
			0.4+0.4*sim,
			0.5*rec.MaxRiskSeverity(),
			core.FilterFilteredReasoning,
			"lessons from a failed decision",
		))
	}
	return out
}

func (dc *detectContext) agent(id string) (core.RegisteredAgent, bool) {
	for _, a := range dc.agents {
		if a.ID == id {
			return a, true
		}
	}
	return core.RegisteredAgent{}, false
}

func lower(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x = strings.ToLower(strings.TrimSpace(x)); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return util.Jaccard(lower(a), lower(b))
}

// coverage is the fraction of topics matched by at least one of terms.
func coverage(terms, topics []string) float64 {
	lt, lp := lower(terms), lower(topics)
	if len(lp) == 0 {
		return 0
	}
	hit := 0
	for _, p := range lp {
		for _, t := range lt {
			if util.TermMatch(t, p) {
				hit++
				break
			}
		}
	}
	return float64(hit) / float64(len(lp))
}

func overlap(a, b []string) bool {
	return coverage(a, b) > 0
}

func containsID(xs []string, id string) bool {
	for _, x := range xs {
		if x == id {
			return true
		}
	}
	return false
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
