// Package engine implements the session orchestrator of agentfloor.
//
// The Orchestrator owns the agent registry, the sessions and the per-turn
// pipeline. Every ingested message runs through the same stages:
//
//	┌──────────────────────────────────────────────────────────────┐
//	│ ProcessMessage(ctx, sessionID, IngestedMessage)              │
//	├──────────────────────────────────────────────────────────────┤
//	│ 1. validate, lock session, append message                    │
//	│ 2. refresh governance identities, take trust snapshot        │
//	│ 3. analysis.Analyzer → ConversationContext                   │
//	│ 4. participation.Evaluator (one goroutine per agent)         │
//	│ 5. participation.Coordinator (speaker cap)                   │
//	│ 6. ResponseGenerator for admitted speakers (bounded)         │
//	│ 7. sharing.Engine (detect, permit, prioritize, execute)      │
//	│ 8. session metrics, phase machine                            │
//	│ 9. commit session, then audit records and metrics            │
//	└──────────────────────────────────────────────────────────────┘
//
// # Failure isolation
//
// A failing agent evaluation or reply generation degrades only that agent
// to silence. A panic or an illegal state change aborts only the affected
// session: further calls for it return core.ErrSessionCorrupted until it is
// ended. Cancelling the context abandons the turn without committing
// anything. Audit records go through a bounded best-effort writer and never
// block or fail a turn.
//
// # Callbacks
//
// A CallbackManager passed through Options receives turn lifecycle events
// (before_turn, after_evaluation, on_share, on_phase_change, after_turn,
// on_error). Pre-commit callbacks can abort the turn.
//
// # Usage
//
//	o := engine.New(func(o *engine.Options) {
//	    o.Generator = model.NewMock()
//	})
//	defer o.Close(context.Background())
//
//	o.RegisterAgent(core.RegisteredAgent{ID: "security", Profile: profile})
//	s, _ := o.StartSession(ctx, engine.StartRequest{Participants: []string{"security"}})
//	res, err := o.ProcessMessage(ctx, s.ID, msg)
package engine
