package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentfloor/core"
)

// Epoch is the fixed reference time used by builders.
var Epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder("alice").Topics("infra").At(10 * time.Second).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	msg core.Message
}

var msgSeq atomic.Int64

// NewMessageBuilder creates a builder for a statement by agentID with
// relevance and confidence 0.6 and a neutral tone.
func NewMessageBuilder(agentID string) *MessageBuilder {
	return &MessageBuilder{msg: core.Message{
		ID:          fmt.Sprintf("msg-%d", msgSeq.Add(1)),
		AgentID:     agentID,
		Content:     "content",
		Timestamp:   Epoch,
		MessageType: core.MessageTypeStatement,
		Relevance:   0.6,
		Confidence:  0.6,
		Tone:        "neutral",
	}}
}

// ID overrides the generated message id (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.msg.ID = id; return b }

// At sets the timestamp to Epoch plus offset (chainable).
func (b *MessageBuilder) At(offset time.Duration) *MessageBuilder {
	b.msg.Timestamp = Epoch.Add(offset)
	return b
}

// Topics sets the message topics (chainable).
func (b *MessageBuilder) Topics(ts ...string) *MessageBuilder { b.msg.Topics = ts; return b }

// Scores sets relevance and confidence (chainable).
func (b *MessageBuilder) Scores(relevance, confidence float64) *MessageBuilder {
	b.msg.Relevance = relevance
	b.msg.Confidence = confidence
	return b
}

// Tone sets the pre-scored tone (chainable).
func (b *MessageBuilder) Tone(t string) *MessageBuilder { b.msg.Tone = t; return b }

// Type sets the message type (chainable).
func (b *MessageBuilder) Type(t core.MessageType) *MessageBuilder { b.msg.MessageType = t; return b }

// Build returns the message.
func (b *MessageBuilder) Build() core.Message { return b.msg }

// Conversation builds messages for the given agents, one every gap.
func Conversation(gap time.Duration, agentIDs ...string) []core.Message {
	out := make([]core.Message, len(agentIDs))
	for i, id := range agentIDs {
		out[i] = NewMessageBuilder(id).ID(fmt.Sprintf("c-%d", i)).At(time.Duration(i) * gap).Build()
	}
	return out
}
