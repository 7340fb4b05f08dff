package core

import "errors"

var (
	// ErrEvaluation marks a failure inside one agent's evaluation. The agent
	// degrades to silence; other agents are unaffected.
	ErrEvaluation = errors.New("agent evaluation failed")

	// ErrConfiguration marks an agent that cannot be evaluated, e.g. because
	// it has no registered behavior profile.
	ErrConfiguration = errors.New("agent configuration invalid")

	// ErrSharingPermissionDenied means the recipient may not see the source.
	ErrSharingPermissionDenied = errors.New("sharing permission denied")

	// ErrStaleGovernanceData means the governance source was unreachable and
	// a cached identity was used.
	ErrStaleGovernanceData = errors.New("stale governance data")

	// ErrSessionCorrupted aborts a single session.
	ErrSessionCorrupted = errors.New("session state corrupted")

	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrSessionConcluded = errors.New("session concluded")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrTriggerNotFound  = errors.New("sharing trigger not found")
	ErrShareNotFound    = errors.New("filtered share not found")
	ErrRecordNotFound   = errors.New("rationale record not found")
	ErrInvalidMessage   = errors.New("invalid ingested message")
)
