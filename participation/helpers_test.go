package participation

import (
	"time"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/testutil"
)

// baseContext returns a quiet snapshot: no messages, no signals, neutral
// flow.
func baseContext() *core.ConversationContext {
	return &core.ConversationContext{
		SessionID:   "s1",
		SessionType: core.SessionTypeDiscussion,
		AnalyzedAt:  testutil.Epoch.Add(time.Minute),
		Topic:       core.TopicAnalysis{Primary: core.DefaultTopic, Clarity: 0.5},
		Flow:        core.FlowAnalysis{Quality: 0.5, ParticipationBalance: 1, Momentum: 0.5},
		Emotion:     core.EmotionalAnalysis{Tone: "neutral", Stability: 1},
	}
}

// plainAgent has every optional trigger disabled so tests can switch on
// exactly what they need.
func plainAgent(id string) *testutil.AgentBuilder {
	p := core.DefaultBehaviorProfile()
	p.Speaking.QuestionDetection = false
	p.Speaking.ErrorCorrection = false
	p.Speaking.ValueAddition = false
	p.Speaking.SupportProvision = false
	p.Silence = core.SilenceTriggers{}
	return testutil.NewAgentBuilder(id).Profile(p)
}
