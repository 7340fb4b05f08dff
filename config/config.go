// Package config loads agentfloor configuration and simulation scenarios
// from YAML and validates them with struct tags.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentfloor/core"
)

// Config is the file configuration of an orchestrator.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Timing    TimingConfig    `yaml:"timing"`
	Sharing   SharingConfig   `yaml:"sharing"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Generator GeneratorConfig `yaml:"generator"`
	Logging   LoggingConfig   `yaml:"logging"`
	// Seed drives wait-time jitter. Equal seeds replay equal timings.
	Seed   int64         `yaml:"seed"`
	Agents []AgentConfig `yaml:"agents" validate:"dive"`
}

// SessionConfig holds the defaults for new sessions.
type SessionConfig struct {
	Type     core.SessionType   `yaml:"type" validate:"session_type"`
	Autonomy core.AutonomyLevel `yaml:"autonomy" validate:"autonomy"`
	// HistoryWindow bounds the messages handed to the response generator.
	HistoryWindow int `yaml:"history_window" validate:"min=1,max=10000"`
}

// TimingConfig holds the wait and timeout windows.
type TimingConfig struct {
	MinWait            time.Duration `yaml:"min_wait" validate:"min=0"`
	MaxWait            time.Duration `yaml:"max_wait" validate:"gtefield=MinWait"`
	DeferMin           time.Duration `yaml:"defer_min" validate:"min=0"`
	DeferMax           time.Duration `yaml:"defer_max" validate:"gtefield=DeferMin"`
	InterruptionWindow time.Duration `yaml:"interruption_window" validate:"min=0"`
	GovernanceTimeout  time.Duration `yaml:"governance_timeout" validate:"min=0"`
}

// SharingConfig holds the sharing engine thresholds.
type SharingConfig struct {
	MaxTriggers         int     `yaml:"max_triggers" validate:"min=0,max=100"`
	MinPriority         float64 `yaml:"min_priority" validate:"min=0,max=1"`
	MinExpectedValue    float64 `yaml:"min_expected_value" validate:"min=0,max=1"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"min=0,max=1"`
	RecordsPerAgent     int     `yaml:"records_per_agent" validate:"min=1"`
	AutoExecuteUrgency  float64 `yaml:"auto_execute_urgency" validate:"min=0,max=1"`
	// PolicyFile is an optional YAML redaction policy replacing the
	// built-in one.
	PolicyFile string `yaml:"policy_file"`
}

// AuditConfig selects and tunes the audit backend.
type AuditConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=none memory badger"`
	Path        string `yaml:"path" validate:"required_if=Backend badger"`
	SyncWrites  bool   `yaml:"sync_writes"`
	QueueSize   int    `yaml:"queue_size" validate:"min=1"`
	MaxAttempts int    `yaml:"max_attempts" validate:"min=1,max=10"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables
// it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// GeneratorConfig selects the response generator.
type GeneratorConfig struct {
	Provider    string        `yaml:"provider" validate:"oneof=none mock anthropic openai"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens" validate:"min=0"`
	Temperature float64       `yaml:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `yaml:"timeout" validate:"min=0"`
	// RateLimit caps generator calls per second across sessions. Zero
	// disables pacing.
	RateLimit float64 `yaml:"rate_limit" validate:"min=0"`
	Burst     int     `yaml:"burst" validate:"min=0"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AgentConfig registers one agent. Omitted profile fields keep the
// defaults of core.DefaultBehaviorProfile.
type AgentConfig struct {
	ID       string                    `yaml:"id" validate:"required"`
	Name     string                    `yaml:"name"`
	Role     core.Role                 `yaml:"role" validate:"role"`
	Profile  core.AgentBehaviorProfile `yaml:"profile"`
	Identity IdentityConfig            `yaml:"identity"`
}

// UnmarshalYAML decodes an agent on top of the default profile and
// identity.
func (a *AgentConfig) UnmarshalYAML(n *yaml.Node) error {
	type plain AgentConfig
	p := plain{
		Role:     core.RoleSpecialist,
		Profile:  core.DefaultBehaviorProfile(),
		Identity: defaultIdentity(),
	}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*a = AgentConfig(p)
	return nil
}

// Agent returns the registered agent.
func (a AgentConfig) Agent() core.RegisteredAgent {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return core.RegisteredAgent{ID: a.ID, Name: name, Role: a.Role, Profile: a.Profile.Clone()}
}

// IdentityConfig is an agent's initial governance identity and its
// outgoing trust scores.
type IdentityConfig struct {
	Scorecard     core.Scorecard            `yaml:"scorecard"`
	Boundaries    core.TrustBoundaries      `yaml:"boundaries"`
	Collaboration core.CollaborationProfile `yaml:"collaboration"`
	Visibility    core.VisibilitySettings   `yaml:"visibility"`
	// Trust maps another agent's id to this agent's trust in it.
	Trust map[string]float64 `yaml:"trust" validate:"dive,min=0,max=100"`
}

func defaultIdentity() IdentityConfig {
	return IdentityConfig{
		Scorecard:     core.Scorecard{Overall: 75, Reliability: 75, Compliance: 75, Transparency: 75},
		Boundaries:    core.TrustBoundaries{MaxDisclosure: core.FilterDetailedSharing},
		Collaboration: core.CollaborationProfile{SharingEnabled: true},
		Visibility: core.VisibilitySettings{
			ShowScorecard:       true,
			ShowMetrics:         true,
			ShowTrustBoundaries: true,
		},
	}
}

// GovernanceIdentity returns the identity for agent a.
func (a AgentConfig) GovernanceIdentity() core.GovernanceIdentity {
	name := a.Name
	if name == "" {
		name = a.ID
	}
	id := core.GovernanceIdentity{
		AgentID:       a.ID,
		Name:          name,
		Scorecard:     a.Identity.Scorecard,
		Boundaries:    a.Identity.Boundaries,
		Collaboration: a.Identity.Collaboration,
		Visibility:    a.Identity.Visibility,
		Status:        core.StatusActive,
	}
	return id.Clone()
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Session: SessionConfig{
			Type:          core.SessionTypeDiscussion,
			Autonomy:      core.AutonomyBalanced,
			HistoryWindow: 50,
		},
		Timing: TimingConfig{
			MinWait:            2 * time.Second,
			MaxWait:            8 * time.Second,
			DeferMin:           5 * time.Second,
			DeferMax:           15 * time.Second,
			InterruptionWindow: 5 * time.Second,
			GovernanceTimeout:  2 * time.Second,
		},
		Sharing: SharingConfig{
			MaxTriggers:         5,
			MinPriority:         0.6,
			MinExpectedValue:    0.7,
			SimilarityThreshold: 0.3,
			RecordsPerAgent:     3,
			AutoExecuteUrgency:  0.7,
		},
		Audit:     AuditConfig{Backend: "memory", QueueSize: 256, MaxAttempts: 3},
		Generator: GeneratorConfig{Provider: "none", MaxTokens: 512, Temperature: 0.7, Timeout: 10 * time.Second},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Seed:      1,
	}
}
