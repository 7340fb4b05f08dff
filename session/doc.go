// Package session houses the in-memory core.SessionStore and the session
// phase machine.
//
// The store keeps one core.SessionState per conversation and hands out deep
// clones, so a turn in progress is never visible to readers. Saving a state
// whose phase moved along an edge the phase machine does not allow is
// rejected with core.ErrSessionCorrupted.
//
// Phases:
//
//	initialization ──► active ◄──► consensus_building
//	       │              │                │
//	       └──────────────┴───► conclusion ◄┘
//
// A session enters consensus_building once the consensus level reaches
// ConsensusEnter and drops back to active below ConsensusExit. Conclusion is
// terminal.
package session
