package engine

import (
	"strings"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/participation"
	"github.com/hupe1980/agentfloor/sharing"
	"github.com/hupe1980/agentfloor/trust"
)

// conflictActionLevel is the conflict level above which an unresolved
// conflict is surfaced as a follow-up.
const conflictActionLevel = 0.6

func insights(snap *trust.Snapshot, evals []participation.Evaluation, res sharing.Result) []core.GovernanceInsight {
	var out []core.GovernanceInsight
	for _, p := range snap.HiddenPairs() {
		out = append(out, core.GovernanceInsight{
			Kind:     core.InsightHiddenPair,
			ViewerID: p.ViewerID,
			TargetID: p.TargetID,
			Detail:   hiddenPairDetail(snap, p),
		})
	}
	for _, id := range snap.DegradedAgents() {
		out = append(out, core.GovernanceInsight{
			Kind:     core.InsightDegradedIdentity,
			TargetID: id,
			Detail:   "governance identity served from cache",
		})
	}
	for _, ev := range evals {
		if ev.Filter.PermissionVetoed() {
			out = append(out, core.GovernanceInsight{
				Kind:     core.InsightPermissionVetoed,
				TargetID: ev.Decision.AgentID,
				Detail:   strings.Join(triggerNames(ev.Filter.Vetoed), ","),
			})
		}
	}
	for _, t := range res.Triggers {
		kind := core.InsightShareSuggested
		if t.Disposition == core.DispositionAutoExecuted {
			kind = core.InsightShareExecuted
		}
		out = append(out, core.GovernanceInsight{
			Kind:     kind,
			ViewerID: t.RecipientAgentID,
			TargetID: t.SourceAgentID,
			Detail:   string(t.Type),
		})
	}
	return out
}

func hiddenPairDetail(snap *trust.Snapshot, p trust.Pair) string {
	_, vok := snap.Identity(p.ViewerID)
	_, tok := snap.Identity(p.TargetID)
	switch {
	case !vok && !tok:
		return "viewer and target have no governance identity"
	case !vok:
		return "viewer has no governance identity"
	case !tok:
		return "target has no governance identity"
	default:
		return "trust in target below the viewer's minimum trust for visibility"
	}
}

func triggerNames(kinds []core.TriggerKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func nextActions(decisions []core.ParticipationDecision, suggestions []core.SharingTrigger, ctx *core.ConversationContext, phase core.SessionPhase) []core.NextAction {
	var out []core.NextAction
	resolving := false
	for _, d := range decisions {
		if !d.ShouldParticipate {
			continue
		}
		if d.Type == core.ParticipationResolveConflict {
			resolving = true
		}
		out = append(out, core.NextAction{
			Kind:    core.ActionRespond,
			AgentID: d.AgentID,
			Detail:  string(d.Type),
		})
	}
	for _, t := range suggestions {
		out = append(out, core.NextAction{
			Kind:      core.ActionReviewShare,
			AgentID:   t.RecipientAgentID,
			TriggerID: t.ID,
			Detail:    string(t.Type),
		})
	}
	if ctx.ConflictLevel > conflictActionLevel && !resolving {
		out = append(out, core.NextAction{
			Kind:   core.ActionResolveConflict,
			Detail: "conflict is high and nobody is resolving it",
		})
	}
	if phase == core.PhaseConsensusBuilding {
		out = append(out, core.NextAction{
			Kind:   core.ActionSummarize,
			Detail: "consensus is forming",
		})
	}
	return out
}
