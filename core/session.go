package core

import (
	"sort"
	"time"
)

// SessionPhase is the lifecycle stage of a conversation.
type SessionPhase string

const (
	PhaseInitialization    SessionPhase = "initialization"
	PhaseActive            SessionPhase = "active"
	PhaseConsensusBuilding SessionPhase = "consensus_building"
	PhaseConclusion        SessionPhase = "conclusion"
)

// SessionMetrics are the running per-session counters.
type SessionMetrics struct {
	TurnCount            int     `json:"turn_count" cbor:"turn_count"`
	MessageCount         int     `json:"message_count" cbor:"message_count"`
	DecisionsTotal       int     `json:"decisions_total" cbor:"decisions_total"`
	SpeakersAdmitted     int     `json:"speakers_admitted" cbor:"speakers_admitted"`
	CoordinationDelays   int     `json:"coordination_delays" cbor:"coordination_delays"`
	EvaluationErrors     int     `json:"evaluation_errors" cbor:"evaluation_errors"`
	SharesExecuted       int     `json:"shares_executed" cbor:"shares_executed"`
	SharesSuggested      int     `json:"shares_suggested" cbor:"shares_suggested"`
	AverageConfidence    float64 `json:"average_confidence" cbor:"average_confidence"`
	ParticipationBalance float64 `json:"participation_balance" cbor:"participation_balance"`
	PhaseChanges         int     `json:"phase_changes" cbor:"phase_changes"`
}

// SessionState is the aggregate owned by the orchestrator for one
// conversation.
//
// Contract:
//   - History is append-only and ordered by ingestion
//   - Phase only moves along the session phase machine
//   - Clone performs deep copies so readers never observe a turn in progress
type SessionState struct {
	ID                 string                     `json:"id"`
	Type               SessionType                `json:"type"`
	Autonomy           AutonomyLevel              `json:"autonomy"`
	Phase              SessionPhase               `json:"phase"`
	History            []Message                  `json:"history"`
	Participants       []string                   `json:"participants"`
	Metrics            SessionMetrics             `json:"metrics"`
	Records            map[string]RationaleRecord `json:"records,omitempty"`
	PendingSuggestions []SharingTrigger           `json:"pending_suggestions,omitempty"`
	Shares             []FilteredShare            `json:"shares,omitempty"`
	Created            time.Time                  `json:"created"`
	Updated            time.Time                  `json:"updated"`
}

// NewSessionState creates a session in the initialization phase.
func NewSessionState(id string, sessionType SessionType, autonomy AutonomyLevel, now time.Time) *SessionState {
	return &SessionState{
		ID:       id,
		Type:     sessionType,
		Autonomy: autonomy,
		Phase:    PhaseInitialization,
		Records:  map[string]RationaleRecord{},
		Created:  now,
		Updated:  now,
	}
}

// HasParticipant reports whether agentID is part of the session roster.
func (s *SessionState) HasParticipant(agentID string) bool {
	for _, p := range s.Participants {
		if p == agentID {
			return true
		}
	}
	return false
}

// AddParticipant appends agentID to the roster if not already present.
func (s *SessionState) AddParticipant(agentID string) {
	if !s.HasParticipant(agentID) {
		s.Participants = append(s.Participants, agentID)
	}
}

// RecordsByAgent returns the rationale records authored by agentID, oldest
// first.
func (s *SessionState) RecordsByAgent(agentID string) []RationaleRecord {
	var out []RationaleRecord
	for _, r := range s.Records {
		if r.AgentID == agentID {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out
}

// Clone returns a deep copy of the session.
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.History = append([]Message(nil), s.History...)
	c.Participants = append([]string(nil), s.Participants...)
	c.PendingSuggestions = append([]SharingTrigger(nil), s.PendingSuggestions...)
	c.Shares = make([]FilteredShare, len(s.Shares))
	for i, sh := range s.Shares {
		sh.Feedback = append([]Feedback(nil), sh.Feedback...)
		c.Shares[i] = sh
	}
	c.Records = make(map[string]RationaleRecord, len(s.Records))
	for k, v := range s.Records {
		c.Records[k] = v
	}
	return &c
}

// SessionStore persists session aggregates. Implementations must hand out
// clones so callers never share state with the store.
type SessionStore interface {
	Create(s *SessionState) error
	Get(sessionID string) (*SessionState, error)
	Save(s *SessionState) error
	List() ([]string, error)
	Delete(sessionID string) error
}

func sortRecords(rs []RationaleRecord) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
