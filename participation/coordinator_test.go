package participation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/core"
)

func wants(agentID string, urgency, value float64) core.ParticipationDecision {
	return core.ParticipationDecision{
		ID:                "d-" + agentID,
		AgentID:           agentID,
		ShouldParticipate: true,
		Type:              core.ParticipationProvideExpertise,
		Confidence:        0.8,
		Urgency:           urgency,
		EstimatedValue:    value,
		Reasoning:         []string{"trigger:expertise_match"},
		Content:           core.ContentPlan{Type: core.ParticipationProvideExpertise},
	}
}

func registration(ids ...string) map[string]int {
	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	return order
}

func TestCoordinate_BalancedCapScenario(t *testing.T) {
	ids := []string{"a1", "a2", "a3", "a4", "a5"}
	urgencies := []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	decisions := make([]core.ParticipationDecision, len(ids))
	for i, id := range ids {
		decisions[i] = wants(id, urgencies[i], 0.5)
	}

	out, summary := NewCoordinator().Coordinate(decisions, registration(ids...), core.AutonomyBalanced, core.SessionTypeDiscussion)

	require.Len(t, out, 5)
	assert.Equal(t, 3, summary.Cap)
	assert.Equal(t, []string{"a1", "a2", "a3"}, summary.Admitted)
	assert.Equal(t, []string{"a4", "a5"}, summary.Delayed)

	for i, d := range out {
		assert.Equal(t, ids[i], d.AgentID, "input order is preserved")
		if i < 3 {
			assert.True(t, d.ShouldParticipate)
			assert.False(t, d.HasReason(core.ReasonCoordinationDelay))
			continue
		}
		assert.False(t, d.ShouldParticipate)
		assert.True(t, d.HasReason(core.ReasonCoordinationDelay))
		assert.Equal(t, core.ParticipationStaySilent, d.Type)
		assert.Equal(t, core.ParticipationProvideExpertise, d.DeferredType)
		assert.GreaterOrEqual(t, d.Timing.WaitFor, 5*time.Second)
		assert.LessOrEqual(t, d.Timing.WaitFor, 15*time.Second)
	}

	for _, d := range decisions {
		assert.True(t, d.ShouldParticipate, "inputs are not mutated")
		assert.Equal(t, []string{"trigger:expertise_match"}, d.Reasoning)
	}
}

func TestCoordinate_TiesBrokenByRegistrationOrder(t *testing.T) {
	decisions := []core.ParticipationDecision{
		wants("late", 0.7, 0.7),
		wants("early", 0.7, 0.7),
	}
	out, summary := NewCoordinator().Coordinate(decisions, registration("early", "late"), core.AutonomyTightLeash, core.SessionTypeReview)

	assert.Equal(t, []string{"early"}, summary.Admitted)
	assert.False(t, out[0].ShouldParticipate)
	assert.True(t, out[1].ShouldParticipate)
}

func TestCoordinate_CreativeSessionsWidenTheCap(t *testing.T) {
	var decisions []core.ParticipationDecision
	var ids []string
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("a%d", i)
		ids = append(ids, id)
		decisions = append(decisions, wants(id, 0.5, 0.5))
	}

	_, summary := NewCoordinator().Coordinate(decisions, registration(ids...), core.AutonomyBalanced, core.SessionTypeCreativeBrainstorming)
	assert.Equal(t, 4, summary.Cap)
	assert.Len(t, summary.Admitted, 4)
	assert.Len(t, summary.Delayed, 2)
}

func TestCoordinate_SilentDecisionsPassThrough(t *testing.T) {
	silent := core.SilenceDecision("s1", 1, "quiet", 0.9, "no_trigger")
	decisions := []core.ParticipationDecision{silent, wants("a", 0.9, 0.9)}

	out, summary := NewCoordinator().Coordinate(decisions, registration("quiet", "a"), core.AutonomyTightLeash, core.SessionTypeDiscussion)
	assert.Equal(t, silent, out[0])
	assert.Equal(t, []string{"a"}, summary.Admitted)
	assert.Empty(t, summary.Delayed)
}

func TestCoordinate_NeverExceedsCap(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	levels := []core.AutonomyLevel{core.AutonomyTightLeash, core.AutonomyGuided, core.AutonomyBalanced, core.AutonomyAutonomous, core.AutonomyFreeRange}
	types := []core.SessionType{core.SessionTypeDiscussion, core.SessionTypeCreativeBrainstorming}
	c := NewCoordinator(func(o *CoordinatorOptions) { o.Rand = core.NewSeededRand(7) })

	for iter := 0; iter < 200; iter++ {
		n := rnd.Intn(12)
		var decisions []core.ParticipationDecision
		var ids []string
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("a%d", i)
			ids = append(ids, id)
			d := wants(id, rnd.Float64(), rnd.Float64())
			d.ShouldParticipate = rnd.Intn(4) > 0
			decisions = append(decisions, d)
		}
		level := levels[rnd.Intn(len(levels))]
		st := types[rnd.Intn(len(types))]

		out, summary := c.Coordinate(decisions, registration(ids...), level, st)

		admitted := 0
		for _, d := range out {
			if d.ShouldParticipate {
				admitted++
			}
		}
		assert.LessOrEqual(t, admitted, core.MaxSimultaneousParticipants(level, st))
		assert.Equal(t, admitted, len(summary.Admitted))
		assert.Len(t, out, n)
	}
}
