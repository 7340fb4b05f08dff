package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/core"
)

const sample = `
session:
  type: creative_brainstorming
  autonomy: guided
timing:
  max_wait: 12s
sharing:
  max_triggers: 3
audit:
  backend: badger
  path: /tmp/audit
metrics:
  addr: ":9090"
seed: 42
agents:
  - id: alice
    role: facilitator
    profile:
      responsibilities: [security, compliance]
      speaking:
        expertise_threshold: 0.4
      silence:
        cooldown: 30s
    identity:
      scorecard: {overall: 92, reliability: 90, compliance: 95, transparency: 88}
      boundaries:
        jurisdictions: [eu]
      trust:
        bob: 64
  - id: bob
`

func TestRead(t *testing.T) {
	cfg, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, core.SessionTypeCreativeBrainstorming, cfg.Session.Type)
	assert.Equal(t, core.AutonomyGuided, cfg.Session.Autonomy)
	assert.Equal(t, 50, cfg.Session.HistoryWindow)
	assert.Equal(t, 2*time.Second, cfg.Timing.MinWait)
	assert.Equal(t, 12*time.Second, cfg.Timing.MaxWait)
	assert.Equal(t, 3, cfg.Sharing.MaxTriggers)
	assert.Equal(t, 0.7, cfg.Sharing.MinExpectedValue)
	assert.Equal(t, int64(42), cfg.Seed)
	require.Len(t, cfg.Agents, 2)

	alice := cfg.Agents[0].Agent()
	assert.Equal(t, core.RoleFacilitator, alice.Role)
	assert.Equal(t, []string{"security", "compliance"}, alice.Profile.Responsibilities)
	assert.Equal(t, 0.4, alice.Profile.Speaking.ExpertiseThreshold)
	assert.Equal(t, 0.6, alice.Profile.Speaking.DisagreementThreshold)
	assert.True(t, alice.Profile.Speaking.QuestionDetection)
	assert.Equal(t, 30*time.Second, alice.Profile.Silence.Cooldown)

	id := cfg.Agents[0].GovernanceIdentity()
	assert.Equal(t, 92.0, id.Scorecard.Overall)
	assert.Equal(t, []string{"eu"}, id.Boundaries.Jurisdictions)
	assert.Equal(t, core.FilterDetailedSharing, id.Boundaries.MaxDisclosure)
	assert.Equal(t, core.StatusActive, id.Status)
	assert.Equal(t, 64.0, cfg.Agents[0].Identity.Trust["bob"])

	bob := cfg.Agents[1].Agent()
	assert.Equal(t, "bob", bob.Name)
	assert.Equal(t, core.RoleSpecialist, bob.Role)
	assert.Equal(t, core.DefaultBehaviorProfile(), bob.Profile)
}

func TestRead_Empty(t *testing.T) {
	cfg, err := Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestRead_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown key":       "sesion: {}",
		"autonomy":          "session: {autonomy: reckless}",
		"session type":      "session: {type: party}",
		"wait order":        "timing: {min_wait: 10s, max_wait: 1s}",
		"threshold range":   "sharing: {min_priority: 1.5}",
		"badger needs path": "audit: {backend: badger}",
		"backend":           "audit: {backend: s3}",
		"metrics addr":      "metrics: {addr: 'not an addr'}",
		"provider":          "generator: {provider: llama}",
		"agent id":          "agents: [{name: x}]",
		"agent role":        "agents: [{id: a, role: boss}]",
		"profile range":     "agents: [{id: a, profile: {traits: {enthusiasm: 2}}}]",
		"duplicate agent":   "agents: [{id: a}, {id: a}]",
		"trust range":       "agents: [{id: a, identity: {trust: {b: 120}}}, {id: b}]",
		"trust target":      "agents: [{id: a, identity: {trust: {c: 50}}}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(doc))
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}
}

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(`
session: {autonomy: autonomous}
agents: [{id: a}, {id: b}]
messages:
  - message: {agent_id: a, content: "what about gdpr?", message_type: question, topics: [gdpr], relevance: 0.8, confidence: 0.7}
    signals:
      urgency_level: 0.6
      pending_questions: [{id: q1, asked_by: a, topics: [gdpr]}]
  - message: {agent_id: b, content: "on it"}
`))
	require.NoError(t, err)
	assert.Equal(t, core.AutonomyAutonomous, sc.Session.Autonomy)
	require.Len(t, sc.Messages, 2)
	assert.Equal(t, core.MessageTypeQuestion, sc.Messages[0].Message.MessageType)
	assert.Equal(t, 0.6, sc.Messages[0].Signals.UrgencyLevel)
	assert.Equal(t, "q1", sc.Messages[0].Signals.PendingQuestions[0].ID)

	_, err = ParseScenario([]byte(`messages: [{message: {content: "anonymous"}}]`))
	assert.ErrorIs(t, err, core.ErrInvalidMessage)

	_, err = ParseScenario([]byte(`messages: [{message: {agent_id: a, relevance: 3}}]`))
	assert.ErrorIs(t, err, core.ErrInvalidMessage)
}
