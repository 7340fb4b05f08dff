package testutil

import (
	"time"

	"github.com/hupe1980/agentfloor/core"
)

// AgentBuilder helps construct registered agents with fluent chaining.
// Example:
//
//	agent := NewAgentBuilder("alice").Responsibilities("security").Traits(0.8, 0.8, 0.2, 0.5).Build()
type AgentBuilder struct {
	agent core.RegisteredAgent
}

// NewAgentBuilder creates a specialist with the default behavior profile.
func NewAgentBuilder(id string) *AgentBuilder {
	return &AgentBuilder{agent: core.RegisteredAgent{
		ID:      id,
		Name:    id,
		Role:    core.RoleSpecialist,
		Profile: core.DefaultBehaviorProfile(),
	}}
}

// Role sets the registered role (chainable).
func (b *AgentBuilder) Role(r core.Role) *AgentBuilder { b.agent.Role = r; return b }

// Order sets the registration order (chainable).
func (b *AgentBuilder) Order(n int) *AgentBuilder { b.agent.Order = n; return b }

// Responsibilities sets the declared responsibilities (chainable).
func (b *AgentBuilder) Responsibilities(rs ...string) *AgentBuilder {
	b.agent.Profile.Responsibilities = rs
	return b
}

// Traits sets enthusiasm, supportiveness, skepticism and assertiveness
// (chainable).
func (b *AgentBuilder) Traits(enthusiasm, supportiveness, skepticism, assertiveness float64) *AgentBuilder {
	b.agent.Profile.Traits = core.Traits{
		Enthusiasm:     enthusiasm,
		Supportiveness: supportiveness,
		Skepticism:     skepticism,
		Assertiveness:  assertiveness,
	}
	return b
}

// ExpertiseThreshold sets the expertise_match threshold (chainable).
func (b *AgentBuilder) ExpertiseThreshold(t float64) *AgentBuilder {
	b.agent.Profile.Speaking.ExpertiseThreshold = t
	return b
}

// Cooldown sets the recent_contribution cooldown (chainable).
func (b *AgentBuilder) Cooldown(d time.Duration) *AgentBuilder {
	b.agent.Profile.Silence.Cooldown = d
	return b
}

// Quiet disables every silence check (chainable).
func (b *AgentBuilder) Quiet(enabled bool) *AgentBuilder {
	if !enabled {
		b.agent.Profile.Silence = core.SilenceTriggers{}
	}
	return b
}

// Interruption sets the interruption policy (chainable).
func (b *AgentBuilder) Interruption(allowed bool, threshold float64) *AgentBuilder {
	b.agent.Profile.Interruption = core.InterruptionPolicy{Allowed: allowed, Threshold: threshold}
	return b
}

// Deny adds vetoed trigger kinds (chainable).
func (b *AgentBuilder) Deny(kinds ...core.TriggerKind) *AgentBuilder {
	b.agent.Profile.Permissions.DeniedTriggers = append(b.agent.Profile.Permissions.DeniedTriggers, kinds...)
	return b
}

// Profile replaces the whole profile (chainable).
func (b *AgentBuilder) Profile(p core.AgentBehaviorProfile) *AgentBuilder {
	b.agent.Profile = p
	return b
}

// Build returns the registered agent.
func (b *AgentBuilder) Build() core.RegisteredAgent {
	a := b.agent
	a.Profile = b.agent.Profile.Clone()
	return a
}
