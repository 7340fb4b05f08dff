package core

import "context"

// Attachment is an opaque payload handed through to the response generator.
type Attachment struct {
	Name     string `json:"name" yaml:"name"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
	Data     []byte `json:"data,omitempty" yaml:"data"`
}

// GenerateRequest is the input of a ResponseGenerator call.
type GenerateRequest struct {
	Prompt            string
	Agent             AgentDescriptor
	Attachments       []Attachment
	History           []Message
	GovernanceEnabled bool
}

// ResponseGenerator produces reply text for an admitted speaker. The core
// only decides whether, when and what kind of reply should happen.
type ResponseGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// AuditKind tags the payload of an AuditRecord.
type AuditKind string

const (
	AuditDecision AuditKind = "decision"
	AuditShare    AuditKind = "share"
	AuditMetrics  AuditKind = "metrics"
)

// AuditRecord is one persisted audit entry. Payload is the deterministic
// encoding of the decision, share or metrics value.
type AuditRecord struct {
	ID        string    `json:"id" cbor:"id"`
	SessionID string    `json:"session_id" cbor:"session_id"`
	Turn      int       `json:"turn" cbor:"turn"`
	Kind      AuditKind `json:"kind" cbor:"kind"`
	Payload   []byte    `json:"payload" cbor:"payload"`
	Hash      string    `json:"hash" cbor:"hash"`
}

// AuditStore persists audit records. Implementations may be slow or
// unavailable; callers go through a best-effort writer.
type AuditStore interface {
	Append(ctx context.Context, rec AuditRecord) error
	List(ctx context.Context, sessionID string) ([]AuditRecord, error)
}

// GovernanceSource is the external registry of governance identities.
type GovernanceSource interface {
	Fetch(ctx context.Context, agentID string) (GovernanceIdentity, error)
}
