package audit

import (
	"fmt"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/codec"
)

type hashed struct {
	SessionID string         `cbor:"session_id"`
	Turn      int            `cbor:"turn"`
	Kind      core.AuditKind `cbor:"kind"`
	Payload   []byte         `cbor:"payload"`
}

// NewRecord encodes v and returns a sealed audit record.
func NewRecord(sessionID string, turn int, kind core.AuditKind, v any) (core.AuditRecord, error) {
	payload, err := codec.Marshal(v)
	if err != nil {
		return core.AuditRecord{}, fmt.Errorf("encode %s audit payload: %w", kind, err)
	}
	rec := core.AuditRecord{
		ID:        core.NewID(),
		SessionID: sessionID,
		Turn:      turn,
		Kind:      kind,
		Payload:   payload,
	}
	rec.Hash, err = hash(rec)
	if err != nil {
		return core.AuditRecord{}, err
	}
	return rec, nil
}

// Verify checks the record hash.
func Verify(rec core.AuditRecord) error {
	h, err := hash(rec)
	if err != nil {
		return err
	}
	if h != rec.Hash {
		return fmt.Errorf("%w: %s", ErrTampered, rec.ID)
	}
	return nil
}

// Decode verifies rec and decodes its payload into v.
func Decode(rec core.AuditRecord, v any) error {
	if err := Verify(rec); err != nil {
		return err
	}
	if err := codec.Unmarshal(rec.Payload, v); err != nil {
		return fmt.Errorf("decode %s audit payload: %w", rec.Kind, err)
	}
	return nil
}

func hash(rec core.AuditRecord) (string, error) {
	return codec.Hash(codec.DomainAudit, hashed{
		SessionID: rec.SessionID,
		Turn:      rec.Turn,
		Kind:      rec.Kind,
		Payload:   rec.Payload,
	})
}

func clone(rec core.AuditRecord) core.AuditRecord {
	rec.Payload = append([]byte(nil), rec.Payload...)
	return rec
}
