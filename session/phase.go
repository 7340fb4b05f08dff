package session

import (
	"fmt"

	"github.com/hupe1980/agentfloor/core"
)

const (
	// ConsensusEnter is the consensus level at which an active session
	// starts building consensus.
	ConsensusEnter = 0.7
	// ConsensusExit is the level below which consensus building is abandoned.
	ConsensusExit = 0.5
)

var transitions = map[core.SessionPhase][]core.SessionPhase{
	core.PhaseInitialization:    {core.PhaseActive, core.PhaseConclusion},
	core.PhaseActive:            {core.PhaseConsensusBuilding, core.PhaseConclusion},
	core.PhaseConsensusBuilding: {core.PhaseActive, core.PhaseConclusion},
	core.PhaseConclusion:        nil,
}

// CanTransition reports whether the phase machine allows from → to. Staying
// in the same phase is always allowed.
func CanTransition(from, to core.SessionPhase) bool {
	if from == to {
		return true
	}
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Next returns the phase after a processed turn with the given consensus
// level. Concluded sessions stay concluded.
func Next(current core.SessionPhase, consensus float64) core.SessionPhase {
	switch current {
	case core.PhaseInitialization:
		// the first turn only activates the session
		return core.PhaseActive
	case core.PhaseActive:
		if consensus >= ConsensusEnter {
			return core.PhaseConsensusBuilding
		}
	case core.PhaseConsensusBuilding:
		if consensus < ConsensusExit {
			return core.PhaseActive
		}
	}
	return current
}

// Advance moves s to next, counting the change in the session metrics.
func Advance(s *core.SessionState, next core.SessionPhase) error {
	if !CanTransition(s.Phase, next) {
		return fmt.Errorf("%w: illegal phase change %s → %s", core.ErrSessionCorrupted, s.Phase, next)
	}
	if s.Phase != next {
		s.Phase = next
		s.Metrics.PhaseChanges++
	}
	return nil
}
