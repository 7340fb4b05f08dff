// Package logging provides a minimal logging interface and adapters for agentfloor.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the orchestrator and pipeline stages use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - FloorLogger with session/turn context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	floor := agentfloor.New(func(o *agentfloor.Options) { o.Logger = logger })
package logging
