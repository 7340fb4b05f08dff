package participation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/testutil"
)

func speakOutcome(checks ...TriggerResult) TriggerOutcome { return aggregate(checks) }

func fired(kind core.TriggerKind, strength float64) TriggerResult {
	return TriggerResult{Kind: kind, Activated: true, Strength: strength}
}

func TestApplyAutonomy_PermissionVeto(t *testing.T) {
	agent := plainAgent("a").Deny(core.TriggerExpertiseMatch).Build()
	speak := speakOutcome(fired(core.TriggerExpertiseMatch, 0.95))

	fr := ApplyAutonomy(agent, baseContext(), speak, TriggerOutcome{}, core.AutonomyFreeRange, DefaultInterruptionWindow)

	assert.False(t, fr.ShouldSpeak)
	assert.True(t, fr.PermissionVetoed())
	assert.Equal(t, []core.TriggerKind{core.TriggerExpertiseMatch}, fr.Vetoed)
	assert.Equal(t, 0.0, fr.Confidence)
}

func TestApplyAutonomy_DeniedTriggerRemovedBeforeConfidence(t *testing.T) {
	agent := plainAgent("a").Deny(core.TriggerExpertiseMatch).Build()
	speak := speakOutcome(
		fired(core.TriggerExpertiseMatch, 0.9),
		fired(core.TriggerConflictDetected, 0.5),
	)

	fr := ApplyAutonomy(agent, baseContext(), speak, TriggerOutcome{}, core.AutonomyBalanced, DefaultInterruptionWindow)

	assert.True(t, fr.ShouldSpeak)
	assert.InDelta(t, 0.5, fr.Confidence, 1e-9)
	assert.Equal(t, core.TriggerConflictDetected, fr.Speak.Primary)
	assert.False(t, fr.PermissionVetoed())
}

func TestApplyAutonomy_TierMinimumConfidence(t *testing.T) {
	agent := plainAgent("a").Build()
	speak := speakOutcome(fired(core.TriggerExpertiseMatch, 0.5))

	tests := []struct {
		level core.AutonomyLevel
		want  bool
	}{
		{core.AutonomyTightLeash, false},
		{core.AutonomyGuided, false},
		{core.AutonomyBalanced, true},
		{core.AutonomyAutonomous, true},
		{core.AutonomyFreeRange, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			fr := ApplyAutonomy(agent, baseContext(), speak, TriggerOutcome{}, tt.level, DefaultInterruptionWindow)
			assert.Equal(t, tt.want, fr.ShouldSpeak)
			if !tt.want {
				assert.Contains(t, fr.Restrictions, RestrictionAutonomyThreshold+":"+string(tt.level))
			}
		})
	}
}

func TestApplyAutonomy_SilenceWins(t *testing.T) {
	agent := plainAgent("a").Build()
	speak := speakOutcome(fired(core.TriggerExpertiseMatch, 0.9))
	silence := aggregate([]TriggerResult{fired(core.SilenceRecentContribution, 0.75)})

	fr := ApplyAutonomy(agent, baseContext(), speak, silence, core.AutonomyFreeRange, DefaultInterruptionWindow)

	assert.False(t, fr.ShouldSpeak)
	assert.InDelta(t, 0.9, fr.Confidence, 1e-9)
	assert.Contains(t, fr.Restrictions, RestrictionSilenceTrigger+":recent_contribution")
}

func TestApplyAutonomy_InterruptionPenalty(t *testing.T) {
	ctx := baseContext()
	ctx.RecentMessages = []core.Message{
		testutil.NewMessageBuilder("b").At(0).Build(),
		testutil.NewMessageBuilder("c").At(2 * time.Second).Build(),
	}
	ctx.AnalyzedAt = testutil.Epoch.Add(3 * time.Second)
	speak := speakOutcome(fired(core.TriggerExpertiseMatch, 0.9))

	polite := plainAgent("a").Interruption(false, 0.9).Build()
	fr := ApplyAutonomy(polite, ctx, speak, TriggerOutcome{}, core.AutonomyBalanced, DefaultInterruptionWindow)
	assert.True(t, fr.ShouldSpeak)
	assert.InDelta(t, 0.45, fr.Confidence, 1e-9)
	assert.Contains(t, fr.Restrictions, RestrictionInterruption)

	fr = ApplyAutonomy(polite, ctx, speak, TriggerOutcome{}, core.AutonomyTightLeash, DefaultInterruptionWindow)
	assert.False(t, fr.ShouldSpeak)

	bold := plainAgent("a").Interruption(true, 0.5).Build()
	fr = ApplyAutonomy(bold, ctx, speak, TriggerOutcome{}, core.AutonomyBalanced, DefaultInterruptionWindow)
	assert.InDelta(t, 0.9, fr.Confidence, 1e-9)
	assert.NotContains(t, fr.Restrictions, RestrictionInterruption)

	ctx.AnalyzedAt = testutil.Epoch.Add(time.Minute)
	fr = ApplyAutonomy(polite, ctx, speak, TriggerOutcome{}, core.AutonomyBalanced, DefaultInterruptionWindow)
	assert.InDelta(t, 0.9, fr.Confidence, 1e-9)
}
