// Package audit contains the core.AuditStore implementations and the
// best-effort Writer the orchestrator uses to persist decisions, shares and
// session metrics.
//
// Records carry a deterministic CBOR payload and a keyed BLAKE3 hash over
// session, turn, kind and payload, so a stored record can be verified
// independently of the store it came from.
//
// Backends:
//
//   - InMemoryStore: process local, for tests and the CLI simulator
//   - BadgerStore: embedded durable store on dgraph-io/badger
//
// Callers should depend on core.AuditStore rather than concrete types and
// write through a Writer so a slow or failing store never blocks a turn.
package audit
