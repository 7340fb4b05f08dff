// Package trust holds the governance identity registry and the trust based
// visibility matrix.
//
// A Registry owns every GovernanceIdentity known to an orchestrator together
// with directed trust scores between agents. For each ordered (viewer,
// target) pair the matrix derives a VisibilityPermission: viewers below their
// own minimum trust see nothing, otherwise the trust score selects a tier and
// the tier together with the viewer's opt-ins selects the visible fields.
//
// Turns never read the live registry. They take a Snapshot, which is
// immutable and safe to share across the per-agent evaluation goroutines.
package trust
