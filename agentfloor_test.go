package agentfloor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/config"
	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
	"github.com/hupe1980/agentfloor/model"
	"github.com/hupe1980/agentfloor/model/anthropic"
	"github.com/hupe1980/agentfloor/model/openai"
)

const roundtable = `
session:
  type: discussion
  autonomy: balanced
seed: 7
agents:
  - id: sec
    profile:
      responsibilities: [security]
    identity:
      trust:
        ops: 64
  - id: ops
    profile:
      responsibilities: [deployment]
`

func loadConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Read(strings.NewReader(roundtable))
	require.NoError(t, err)
	return cfg
}

func newFloor(t *testing.T, optFns ...func(o *Options)) *Floor {
	t.Helper()
	cfg := loadConfig(t)
	f, err := New(append([]func(o *Options){func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
	}}, optFns...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close(context.Background()) })
	return f
}

func messages() []core.IngestedMessage {
	return []core.IngestedMessage{
		{
			Message: core.Message{
				AgentID:     "user",
				Content:     "Is the new token endpoint safe to expose?",
				Timestamp:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
				MessageType: core.MessageTypeQuestion,
				Topics:      []string{"security"},
				Relevance:   0.9,
				Confidence:  0.8,
			},
			Signals: core.ConversationSignals{RequiredExpertise: []string{"security"}},
		},
		{
			Message: core.Message{
				AgentID:     "user",
				Content:     "And when can we roll it out?",
				Timestamp:   time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC),
				MessageType: core.MessageTypeQuestion,
				Topics:      []string{"deployment"},
				Relevance:   0.9,
				Confidence:  0.8,
			},
		},
	}
}

func TestNew_Defaults(t *testing.T) {
	f, err := New()
	require.NoError(t, err)
	defer func() { assert.NoError(t, f.Close(context.Background())) }()

	assert.Empty(t, f.Orchestrator().Agents())
}

func TestNew_RegistersAgents(t *testing.T) {
	f := newFloor(t)

	agents := f.Orchestrator().Agents()
	require.Len(t, agents, 2)

	id, ok := f.Orchestrator().Registry().Identity("sec")
	require.True(t, ok)
	assert.Equal(t, core.StatusActive, id.Status)
	assert.Equal(t, 64.0, f.Orchestrator().Registry().TrustScore("sec", "ops"))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.Backend = "s3"

	_, err := New(func(o *Options) { o.Config = cfg })
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestNew_MissingPolicyFile(t *testing.T) {
	cfg := config.Default()
	cfg.Sharing.PolicyFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
	})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestSimulate(t *testing.T) {
	m := model.NewMock()
	reg := prometheus.NewRegistry()
	f := newFloor(t, func(o *Options) {
		o.Generator = m
		o.Registerer = reg
	})

	rep, err := f.Simulate(context.Background(), "s1", messages())
	require.NoError(t, err)

	require.Len(t, rep.Turns, 2)
	require.NotNil(t, rep.Session)
	assert.Equal(t, core.PhaseConclusion, rep.Session.Phase)
	assert.Equal(t, 2, rep.Session.Metrics.TurnCount)
	assert.ElementsMatch(t, []string{"sec", "ops"}, rep.Session.Participants)

	admitted := 0
	for _, turn := range rep.Turns {
		admitted += len(turn.Admitted())
	}
	assert.Len(t, m.Calls(), admitted)

	n, err := testutil.GatherAndCount(reg, "agentfloor_turns_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.Simulate(context.Background(), "s1", nil)
	assert.ErrorIs(t, err, core.ErrSessionExists)
}

func TestSimulate_BadgerAudit(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Audit.Backend = "badger"
	cfg.Audit.Path = t.TempDir()

	f, err := New(func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
	})
	require.NoError(t, err)

	_, err = f.Simulate(context.Background(), "s1", messages())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, f.Orchestrator().Close(ctx))
	records, err := f.Orchestrator().AuditTrail(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	require.NoError(t, f.closeBackends())
}

func TestNewGenerator(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		g, err := NewGenerator(config.GeneratorConfig{Provider: "none"})
		require.NoError(t, err)
		assert.Nil(t, g)
	})

	t.Run("mock", func(t *testing.T) {
		g, err := NewGenerator(config.GeneratorConfig{Provider: "mock"})
		require.NoError(t, err)
		assert.IsType(t, &model.Mock{}, g)
	})

	t.Run("anthropic", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "test")
		g, err := NewGenerator(config.GeneratorConfig{Provider: "anthropic", Model: "claude-3-5-haiku-latest"})
		require.NoError(t, err)
		assert.IsType(t, &anthropic.Generator{}, g)
		assert.Equal(t, "claude-3-5-haiku-latest", g.Info().Name)
	})

	t.Run("openai", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test")
		g, err := NewGenerator(config.GeneratorConfig{Provider: "openai", Model: "gpt-4o"})
		require.NoError(t, err)
		assert.IsType(t, &openai.Generator{}, g)
		assert.Equal(t, "gpt-4o", g.Info().Name)
	})

	t.Run("rate limited", func(t *testing.T) {
		g, err := NewGenerator(config.GeneratorConfig{Provider: "mock", RateLimit: 2})
		require.NoError(t, err)
		assert.IsType(t, &model.RateLimited{}, g)
		assert.Equal(t, "mock", g.Info().Provider)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewGenerator(config.GeneratorConfig{Provider: "bard"})
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}
