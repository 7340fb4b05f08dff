package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentfloor/core"
)

// CallbackType defines the lifecycle points of a turn where callbacks run.
//
// Callbacks hook into the turn pipeline without modifying it. Callbacks of
// the pre-commit types (before_turn, after_evaluation, on_share,
// on_phase_change) can abort the turn by returning an error; nothing of the
// turn is committed then. Errors of after_turn and on_error callbacks are
// only logged because the turn has already been committed or has failed.
type CallbackType string

const (
	// CallbackBeforeTurn runs after the message was validated and before
	// the context is analyzed.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterEvaluation runs once the coordinator has capped the
	// decisions of the turn.
	CallbackAfterEvaluation CallbackType = "after_evaluation"

	// CallbackOnShare runs for every executed share of the turn.
	CallbackOnShare CallbackType = "on_share"

	// CallbackOnPhaseChange runs when the turn moves the session into a new
	// phase.
	CallbackOnPhaseChange CallbackType = "on_phase_change"

	// CallbackAfterTurn runs after the turn has been committed.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackOnError runs when a turn fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the turn data visible to a callback. Fields that
// do not apply to the callback type are zero.
type CallbackContext struct {
	SessionID    string
	Turn         int
	CallbackType CallbackType

	// AgentID is the author of the processed message.
	AgentID string

	Message   *core.Message
	Decisions []core.ParticipationDecision
	Share     *core.FilteredShare
	Result    *core.TurnResult

	PreviousPhase core.SessionPhase
	Phase         core.SessionPhase

	Err error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback is a turn lifecycle hook.
//
// Callbacks run synchronously on the turn's goroutine while the session is
// locked, so they must be fast and must not call back into the same
// session of the orchestrator.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackAfterTurn,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("turn %d of %s done", cc.Turn, cc.SessionID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is the registry of turn callbacks. Callbacks run in
// registration order; the first error stops the remaining callbacks of that
// type. It is safe for concurrent registration and execution.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType and
// returns the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackAfterTurn, func(message string) {
//	    log.Printf("[FLOOR] %s", message)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the session, turn and author of the event.
func (c *LoggingCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.logger != nil {
		message := fmt.Sprintf("[%s] Session: %s, Turn: %d, Agent: %s",
			c.callbackType, callbackCtx.SessionID, callbackCtx.Turn, callbackCtx.AgentID)
		if callbackCtx.Share != nil {
			message += fmt.Sprintf(", Share: %s → %s", callbackCtx.Share.SourceAgentID, callbackCtx.Share.RecipientAgentID)
		}
		if callbackCtx.Err != nil {
			message += fmt.Sprintf(", Error: %v", callbackCtx.Err)
		}
		c.logger(message)
	}
	return nil
}

// PhaseValidationCallback vetoes phase changes.
//
// The validator receives the previous and the proposed phase. Returning an
// error aborts the turn that would have caused the change.
//
// Example:
//
//	// keep brainstorming sessions out of consensus building
//	callback := NewPhaseValidationCallback(func(from, to core.SessionPhase) error {
//	    if to == core.PhaseConsensusBuilding {
//	        return errors.New("consensus building disabled")
//	    }
//	    return nil
//	})
type PhaseValidationCallback struct {
	validator func(from, to core.SessionPhase) error
}

// NewPhaseValidationCallback creates a new phase validation callback.
func NewPhaseValidationCallback(validator func(from, to core.SessionPhase) error) *PhaseValidationCallback {
	return &PhaseValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackOnPhaseChange).
func (c *PhaseValidationCallback) Type() CallbackType {
	return CallbackOnPhaseChange
}

// Execute validates the phase change of the callback context.
func (c *PhaseValidationCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil {
		return c.validator(callbackCtx.PreviousPhase, callbackCtx.Phase)
	}
	return nil
}
