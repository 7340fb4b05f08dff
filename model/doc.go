// Package model defines the provider-agnostic reply generators used by the
// orchestrator.
//
// The orchestrator only decides whether, when and what kind of reply an
// agent should make. Producing the text is delegated to a
// core.ResponseGenerator. This package provides:
//   - Mock, a deterministic generator for tests and simulations
//   - RateLimited, a token bucket in front of any Generator
//   - Transcript and SystemPrompt, the shared request shaping used by the
//     provider adapters in model/anthropic and model/openai
package model
