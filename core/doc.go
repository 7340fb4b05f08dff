// Package core provides the foundational domain types, interfaces and
// sentinel errors used by agentfloor. It defines the core abstractions for:
//
//   - Messages and pre-scored conversation signals (ingestion boundary)
//   - ConversationContext (the per-turn situational snapshot)
//   - Agent descriptors and behavior profiles
//   - Participation decisions and autonomy tiers
//   - Governance identities and visibility permissions
//   - Sharing triggers, rationale records and filtered shares
//   - Session state, metrics and the per-turn result bundle
//   - Collaborator interfaces (response generation, audit, governance source)
//
// The package intentionally keeps implementation concerns (analysis,
// scoring, persistence, orchestration) out of scope, exposing plain data
// types and small interfaces so each pipeline stage can be tested in
// isolation.
package core
