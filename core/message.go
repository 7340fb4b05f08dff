package core

import "time"

// MessageType classifies an ingested message. The transport/NLP layer assigns
// it; the core never infers it from raw text.
type MessageType string

const (
	MessageTypeStatement  MessageType = "statement"
	MessageTypeQuestion   MessageType = "question"
	MessageTypeAnswer     MessageType = "answer"
	MessageTypeProposal   MessageType = "proposal"
	MessageTypeAgreement  MessageType = "agreement"
	MessageTypeChallenge  MessageType = "challenge"
	MessageTypeConclusion MessageType = "conclusion"
	MessageTypeSystem     MessageType = "system"
)

// Message is a single normalized conversation message. Relevance, Confidence
// and Tone are pre-scored by the ingestion layer.
type Message struct {
	ID          string      `json:"id" yaml:"id" cbor:"id"`
	AgentID     string      `json:"agent_id" yaml:"agent_id" cbor:"agent_id" validate:"required"`
	Content     string      `json:"content" yaml:"content" cbor:"content" validate:"max=32768"`
	Timestamp   time.Time   `json:"timestamp" yaml:"timestamp" cbor:"timestamp"`
	MessageType MessageType `json:"message_type" yaml:"message_type" cbor:"message_type"`
	Topics      []string    `json:"topics,omitempty" yaml:"topics" cbor:"topics,omitempty"`
	Relevance   float64     `json:"relevance" yaml:"relevance" cbor:"relevance" validate:"min=0,max=1"`
	Confidence  float64     `json:"confidence" yaml:"confidence" cbor:"confidence" validate:"min=0,max=1"`
	Tone        string      `json:"tone,omitempty" yaml:"tone" cbor:"tone,omitempty"`
}

// PendingQuestion is an open question detected by the ingestion layer.
type PendingQuestion struct {
	ID             string   `json:"id" yaml:"id"`
	Text           string   `json:"text" yaml:"text"`
	AskedBy        string   `json:"asked_by" yaml:"asked_by"`
	Topics         []string `json:"topics,omitempty" yaml:"topics"`
	RelevantAgents []string `json:"relevant_agents,omitempty" yaml:"relevant_agents"`
}

// InformationGap is a missing piece of knowledge flagged by the ingestion layer.
type InformationGap struct {
	ID                string   `json:"id" yaml:"id"`
	Topic             string   `json:"topic" yaml:"topic"`
	Severity          float64  `json:"severity" yaml:"severity" validate:"min=0,max=1"`
	RequiredExpertise []string `json:"required_expertise,omitempty" yaml:"required_expertise"`
	RelevantAgents    []string `json:"relevant_agents,omitempty" yaml:"relevant_agents"`
}

// ConversationSignals are the pre-scored conversation aggregates delivered
// alongside each message.
type ConversationSignals struct {
	UrgencyLevel      float64           `json:"urgency_level" yaml:"urgency_level" validate:"min=0,max=1"`
	ConflictLevel     float64           `json:"conflict_level" yaml:"conflict_level" validate:"min=0,max=1"`
	ConsensusLevel    float64           `json:"consensus_level" yaml:"consensus_level" validate:"min=0,max=1"`
	PendingQuestions  []PendingQuestion `json:"pending_questions,omitempty" yaml:"pending_questions" validate:"dive"`
	InformationGaps   []InformationGap  `json:"information_gaps,omitempty" yaml:"information_gaps" validate:"dive"`
	RequiredExpertise []string          `json:"required_expertise,omitempty" yaml:"required_expertise"`
}

// IngestedMessage is the unit delivered by the transport/NLP layer.
type IngestedMessage struct {
	Message Message             `json:"message" yaml:"message"`
	Signals ConversationSignals `json:"signals" yaml:"signals"`
	// Attachments are handed unchanged to the response generator.
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments"`
}
