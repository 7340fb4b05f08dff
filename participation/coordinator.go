package participation

import (
	"sort"
	"time"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
)

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Rand positions deferred waits inside [DeferMin, DeferMax].
	Rand     core.RandSource
	DeferMin time.Duration
	DeferMax time.Duration
	Logger   logging.Logger
}

// Coordinator reconciles all decisions of a turn and enforces the speaker
// cap. It must run single-threaded after every agent has been evaluated.
type Coordinator struct {
	opts CoordinatorOptions
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(optFns ...func(o *CoordinatorOptions)) *Coordinator {
	opts := CoordinatorOptions{
		Rand:     core.NewSeededRand(1),
		DeferMin: 5 * time.Second,
		DeferMax: 15 * time.Second,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{opts: opts}
}

// CoordinationSummary reports what the coordinator did.
type CoordinationSummary struct {
	Cap      int      `json:"cap"`
	Admitted []string `json:"admitted,omitempty"`
	Delayed  []string `json:"delayed,omitempty"`
}

// Coordinate returns the decisions in their input order with everything
// beyond the cap demoted to silence. order maps agent id to registration
// order and breaks score ties. Emitted decisions are never modified;
// demotions are fresh copies.
func (c *Coordinator) Coordinate(decisions []core.ParticipationDecision, order map[string]int, level core.AutonomyLevel, sessionType core.SessionType) ([]core.ParticipationDecision, CoordinationSummary) {
	summary := CoordinationSummary{Cap: core.MaxSimultaneousParticipants(level, sessionType)}
	out := make([]core.ParticipationDecision, len(decisions))
	copy(out, decisions)

	var candidates []int
	for i, d := range out {
		if d.ShouldParticipate {
			candidates = append(candidates, i)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		da, db := out[candidates[a]], out[candidates[b]]
		sa, sb := da.CoordinationScore(), db.CoordinationScore()
		if sa != sb {
			return sa > sb
		}
		return order[da.AgentID] < order[db.AgentID]
	})

	for rank, idx := range candidates {
		if rank < summary.Cap {
			summary.Admitted = append(summary.Admitted, out[idx].AgentID)
			continue
		}
		out[idx] = c.demote(out[idx])
		summary.Delayed = append(summary.Delayed, out[idx].AgentID)
	}

	if len(summary.Delayed) > 0 {
		c.opts.Logger.Debug("Speaker cap enforced",
			"cap", summary.Cap,
			"admitted", len(summary.Admitted),
			"delayed", len(summary.Delayed),
		)
	}
	return out, summary
}

func (c *Coordinator) demote(d core.ParticipationDecision) core.ParticipationDecision {
	nd := d.Clone()
	nd.ShouldParticipate = false
	nd.DeferredType = d.Type
	nd.Type = core.ParticipationStaySilent
	nd.Content.Type = core.ParticipationStaySilent
	nd.Reasoning = append(nd.Reasoning, core.ReasonCoordinationDelay)
	nd.Timing = core.TimingPlan{WaitFor: core.Between(c.opts.Rand, c.opts.DeferMin, c.opts.DeferMax)}
	return nd
}
