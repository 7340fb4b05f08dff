package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestedMessage_Validate(t *testing.T) {
	ok := IngestedMessage{Message: Message{AgentID: "a", Relevance: 0.5, Confidence: 0.5}}
	assert.NoError(t, ok.Validate())

	missing := IngestedMessage{Message: Message{Content: "hi"}}
	assert.ErrorIs(t, missing.Validate(), ErrInvalidMessage)

	signals := ok
	signals.Signals.UrgencyLevel = 1.5
	assert.ErrorIs(t, signals.Validate(), ErrInvalidMessage)

	gap := ok
	gap.Signals.InformationGaps = []InformationGap{{ID: "g", Severity: -1}}
	assert.ErrorIs(t, gap.Validate(), ErrInvalidMessage)
}

func TestAgentBehaviorProfile_Validate(t *testing.T) {
	p := DefaultBehaviorProfile()
	assert.NoError(t, p.Validate())

	p.Traits.Skepticism = 2
	assert.ErrorIs(t, p.Validate(), ErrConfiguration)
}

func TestAgentBehaviorProfile_Clone(t *testing.T) {
	p := DefaultBehaviorProfile()
	p.Responsibilities = []string{"security"}
	p.Permissions.DeniedTriggers = []TriggerKind{TriggerSupportNeeded}

	c := p.Clone()
	c.Responsibilities[0] = "legal"
	c.Permissions.DeniedTriggers[0] = TriggerQuestionAsked

	assert.Equal(t, "security", p.Responsibilities[0])
	assert.Equal(t, TriggerSupportNeeded, p.Permissions.DeniedTriggers[0])
	assert.True(t, p.Permissions.Denies(TriggerSupportNeeded))
	assert.False(t, p.Permissions.Denies(TriggerQuestionAsked))
}

func TestVisibilityTier_String(t *testing.T) {
	assert.Equal(t, "none", TierNone.String())
	assert.Equal(t, "full", TierFull.String())
	b, err := TierEnhanced.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "enhanced", string(b))
}
