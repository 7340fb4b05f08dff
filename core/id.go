package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for sessions, decisions, triggers
// and shares.
func NewID() string { return uuid.NewString() }
