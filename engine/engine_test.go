package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/audit"
	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/testutil"
	"github.com/hupe1980/agentfloor/participation"
)

// plainAgent has every optional trigger disabled, so only expertise decides
// whether it speaks.
func plainAgent(id string, responsibilities ...string) core.RegisteredAgent {
	p := core.DefaultBehaviorProfile()
	p.Responsibilities = responsibilities
	p.Speaking.QuestionDetection = false
	p.Speaking.ErrorCorrection = false
	p.Speaking.ValueAddition = false
	p.Speaking.SupportProvision = false
	p.Silence = core.SilenceTriggers{}
	return core.RegisteredAgent{ID: id, Role: core.RoleSpecialist, Profile: p}
}

func newOrchestrator(t *testing.T, optFns ...func(o *Options)) *Orchestrator {
	t.Helper()
	o := New(append([]func(o *Options){func(o *Options) {
		o.Rand = core.NewSeededRand(7)
		o.Now = func() time.Time { return testutil.Epoch }
	}}, optFns...)...)
	t.Cleanup(func() { _ = o.Close(context.Background()) })

	for _, a := range []core.RegisteredAgent{
		plainAgent("a", "security"),
		plainAgent("b", "legal"),
		plainAgent("c", "security"),
		plainAgent("d", "security"),
	} {
		_, err := o.RegisterAgent(a)
		require.NoError(t, err)
	}
	return o
}

func start(t *testing.T, o *Orchestrator, id string, level core.AutonomyLevel, participants ...string) {
	t.Helper()
	_, err := o.StartSession(context.Background(), StartRequest{
		ID:           id,
		Type:         core.SessionTypeDiscussion,
		Autonomy:     level,
		Participants: participants,
	})
	require.NoError(t, err)
}

func ingest(author string, offset time.Duration, topics ...string) core.IngestedMessage {
	return core.IngestedMessage{
		Message: testutil.NewMessageBuilder(author).At(offset).Topics(topics...).Build(),
	}
}

func admittedIDs(res core.TurnResult) []string {
	var out []string
	for _, d := range res.Admitted() {
		out = append(out, d.AgentID)
	}
	return out
}

func TestRegisterAgent(t *testing.T) {
	o := New()
	t.Cleanup(func() { _ = o.Close(context.Background()) })

	a, err := o.RegisterAgent(plainAgent("a", "security"))
	require.NoError(t, err)
	assert.Equal(t, 0, a.Order)
	assert.Equal(t, "a", a.Name)

	b, err := o.RegisterAgent(plainAgent("b"))
	require.NoError(t, err)
	assert.Equal(t, 1, b.Order)

	again := plainAgent("a", "privacy")
	again.Role = core.RoleReviewer
	a, err = o.RegisterAgent(again)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Order)
	assert.Equal(t, core.RoleReviewer, a.Role)
	assert.Equal(t, []string{"a", "b"}, []string{o.Agents()[0].ID, o.Agents()[1].ID})

	invalid := map[string]core.RegisteredAgent{
		"no id":        {Profile: core.DefaultBehaviorProfile()},
		"unknown role": {ID: "x", Role: "king", Profile: core.DefaultBehaviorProfile()},
		"bad profile": func() core.RegisteredAgent {
			ag := plainAgent("x")
			ag.Profile.Traits.Enthusiasm = 2
			return ag
		}(),
	}
	for name, ag := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := o.RegisterAgent(ag)
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}
}

func TestStartSession(t *testing.T) {
	o := newOrchestrator(t)

	s, err := o.StartSession(context.Background(), StartRequest{Participants: []string{"a", "a", "b"}})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, core.PhaseInitialization, s.Phase)
	assert.Equal(t, core.SessionTypeDiscussion, s.Type)
	assert.Equal(t, core.AutonomyBalanced, s.Autonomy)
	assert.Equal(t, []string{"a", "b"}, s.Participants)

	_, err = o.StartSession(context.Background(), StartRequest{ID: s.ID})
	assert.ErrorIs(t, err, core.ErrSessionExists)

	_, err = o.StartSession(context.Background(), StartRequest{Autonomy: "reckless"})
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = o.StartSession(context.Background(), StartRequest{Type: "party"})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestProcessMessage_SpeakerCap(t *testing.T) {
	o := newOrchestrator(t)
	start(t, o, "s1", core.AutonomyGuided, "a", "b", "c", "d")

	res, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Turn)
	assert.Equal(t, core.PhaseActive, res.Phase)
	require.Len(t, res.ParticipationDecisions, 4)
	assert.Equal(t, []string{"a", "c"}, admittedIDs(res))

	d, ok := res.Decision("d")
	require.True(t, ok)
	assert.False(t, d.ShouldParticipate)
	assert.True(t, d.HasReason(core.ReasonCoordinationDelay))

	b, _ := res.Decision("b")
	assert.False(t, b.ShouldParticipate)

	m := res.SessionMetrics
	assert.Equal(t, 1, m.TurnCount)
	assert.Equal(t, 4, m.DecisionsTotal)
	assert.Equal(t, 2, m.SpeakersAdmitted)
	assert.Equal(t, 1, m.CoordinationDelays)
	assert.Equal(t, 1, m.PhaseChanges)

	var responders []string
	for _, a := range res.NextActions {
		if a.Kind == core.ActionRespond {
			responders = append(responders, a.AgentID)
		}
	}
	assert.Equal(t, []string{"a", "c"}, responders)

	s, err := o.Session("s1")
	require.NoError(t, err)
	assert.Len(t, s.History, 1)
	assert.Equal(t, res.SessionMetrics, s.Metrics)
}

func TestProcessMessage_Reproducible(t *testing.T) {
	run := func() core.TurnResult {
		o := newOrchestrator(t)
		start(t, o, "s1", core.AutonomyGuided, "a", "b", "c", "d")
		res, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
		require.NoError(t, err)
		return res
	}

	first, second := run(), run()
	assert.Equal(t, admittedIDs(first), admittedIDs(second))
	for i := range first.ParticipationDecisions {
		assert.Equal(t, first.ParticipationDecisions[i].Timing, second.ParticipationDecisions[i].Timing)
		assert.Equal(t, first.ParticipationDecisions[i].Confidence, second.ParticipationDecisions[i].Confidence)
	}
}

func TestProcessMessage_UnregisteredParticipantIsExcluded(t *testing.T) {
	o := newOrchestrator(t)
	start(t, o, "s1", core.AutonomyBalanced, "a", "ghost")

	res, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)

	require.Len(t, res.ParticipationDecisions, 1)
	assert.Equal(t, "a", res.ParticipationDecisions[0].AgentID)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ghost")
	assert.Contains(t, res.Warnings[0], core.ErrConfiguration.Error())
}

func TestProcessMessage_RegisteredAuthorJoins(t *testing.T) {
	o := newOrchestrator(t)
	start(t, o, "s1", core.AutonomyBalanced, "a")

	_, err := o.ProcessMessage(context.Background(), "s1", ingest("b", 0, "security"))
	require.NoError(t, err)

	s, err := o.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Participants)
}

func TestProcessMessage_Errors(t *testing.T) {
	o := newOrchestrator(t)
	start(t, o, "s1", core.AutonomyBalanced, "a")

	_, err := o.ProcessMessage(context.Background(), "s1", core.IngestedMessage{})
	assert.ErrorIs(t, err, core.ErrInvalidMessage)

	_, err = o.ProcessMessage(context.Background(), "missing", ingest("user", 0))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.ProcessMessage(ctx, "s1", ingest("user", 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessMessage_PhaseMachine(t *testing.T) {
	o := newOrchestrator(t)
	start(t, o, "s1", core.AutonomyBalanced, "a", "b")

	turn := func(offset time.Duration, consensus float64) core.TurnResult {
		in := ingest("user", offset, "security")
		in.Signals.ConsensusLevel = consensus
		res, err := o.ProcessMessage(context.Background(), "s1", in)
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, core.PhaseActive, turn(0, 0.9).Phase)

	res := turn(time.Minute, 0.8)
	assert.Equal(t, core.PhaseConsensusBuilding, res.Phase)
	assert.Contains(t, res.NextActions, core.NextAction{Kind: core.ActionSummarize, Detail: "consensus is forming"})

	assert.Equal(t, core.PhaseConsensusBuilding, turn(2*time.Minute, 0.6).Phase)

	res = turn(3*time.Minute, 0.4)
	assert.Equal(t, core.PhaseActive, res.Phase)
	assert.Equal(t, 3, res.SessionMetrics.PhaseChanges)
}

func TestSessionLifecycle(t *testing.T) {
	o := newOrchestrator(t)
	start(t, o, "s1", core.AutonomyBalanced, "a")
	start(t, o, "s2", core.AutonomyBalanced, "a")

	_, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)

	active, err := o.ActiveSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, active)

	s, err := o.EndSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.PhaseConclusion, s.Phase)
	assert.Equal(t, 1, s.Metrics.TurnCount)

	_, err = o.EndSession(context.Background(), "s1")
	assert.ErrorIs(t, err, core.ErrSessionConcluded)

	_, err = o.ProcessMessage(context.Background(), "s1", ingest("user", time.Minute))
	assert.ErrorIs(t, err, core.ErrSessionConcluded)

	active, err = o.ActiveSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, active)
	assert.Equal(t, 0, o.lockedSessions())
}

func TestProcessMessage_QueuedTurnsDoNotHoldSlots(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.Config.MaxConcurrentTurns = 1 })
	start(t, o, "busy", core.AutonomyBalanced, "a")
	start(t, o, "free", core.AutonomyBalanced, "b")

	unlock := o.lockSession("busy")
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.ProcessMessage(context.Background(), "busy", ingest("user", time.Duration(i)*time.Second, "security"))
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := o.ProcessMessage(ctx, "free", ingest("user", 0, "legal"))
	require.NoError(t, err)

	unlock()
	wg.Wait()

	s, err := o.Session("busy")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Metrics.TurnCount)
	assert.Equal(t, 0, o.lockedSessions())
}

type generatorFunc func(ctx context.Context, req core.GenerateRequest) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	return f(ctx, req)
}

func TestProcessMessage_GeneratesReplies(t *testing.T) {
	var (
		mu   sync.Mutex
		reqs = map[string]core.GenerateRequest{}
	)
	o := newOrchestrator(t, func(o *Options) {
		o.Config.HistoryWindow = 2
		o.Generator = generatorFunc(func(_ context.Context, req core.GenerateRequest) (string, error) {
			mu.Lock()
			reqs[req.Agent.AgentID()] = req
			mu.Unlock()
			if req.Agent.AgentID() == "c" {
				return "", errors.New("model overloaded")
			}
			return "reply from " + req.Agent.AgentID(), nil
		})
	})
	start(t, o, "s1", core.AutonomyGuided, "a", "b", "c")

	for i := 0; i < 2; i++ {
		_, err := o.ProcessMessage(context.Background(), "s1", ingest("user", time.Duration(i)*time.Minute, "budget"))
		require.NoError(t, err)
	}
	in := ingest("user", 3*time.Minute, "security")
	in.Attachments = []core.Attachment{{Name: "diagram.png", MimeType: "image/png"}}
	res, err := o.ProcessMessage(context.Background(), "s1", in)
	require.NoError(t, err)

	a, _ := res.Decision("a")
	assert.True(t, a.ShouldParticipate)
	assert.Equal(t, "reply from a", a.Reply)

	c, _ := res.Decision("c")
	assert.False(t, c.ShouldParticipate)
	assert.True(t, c.HasReason(core.ReasonGenerationFailed))
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "model overloaded")
	assert.Equal(t, 1, res.SessionMetrics.SpeakersAdmitted)

	req := reqs["a"]
	assert.Contains(t, req.Prompt, "You are a")
	assert.Contains(t, req.Prompt, string(a.Type))
	assert.Len(t, req.History, 2)
	assert.True(t, req.GovernanceEnabled)
	assert.Equal(t, "diagram.png", req.Attachments[0].Name)

	_, asked := reqs["b"]
	assert.False(t, asked)
}

func TestProcessMessage_GeneratorTimeoutDegradesToSilence(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) {
		o.Config.GeneratorTimeout = 10 * time.Millisecond
		o.Generator = generatorFunc(func(ctx context.Context, _ core.GenerateRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
	})
	start(t, o, "s1", core.AutonomyGuided, "a")

	res, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)

	a, _ := res.Decision("a")
	assert.False(t, a.ShouldParticipate)
	assert.Equal(t, core.ParticipationStaySilent, a.Type)
	assert.True(t, a.HasReason(core.ReasonGenerationFailed))
}

func TestProcessMessage_CancelCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := newOrchestrator(t, func(o *Options) {
		o.Generator = generatorFunc(func(context.Context, core.GenerateRequest) (string, error) {
			cancel()
			return "", errors.New("torn down")
		})
	})
	start(t, o, "s1", core.AutonomyGuided, "a")

	_, err := o.ProcessMessage(ctx, "s1", ingest("user", 0, "security"))
	assert.ErrorIs(t, err, context.Canceled)

	s, err := o.Session("s1")
	require.NoError(t, err)
	assert.Empty(t, s.History)
	assert.Equal(t, core.SessionMetrics{}, s.Metrics)
	assert.Equal(t, core.PhaseInitialization, s.Phase)
}

func TestProcessMessage_PanicAbortsOnlyThatSession(t *testing.T) {
	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(_ context.Context, cc *CallbackContext) error {
		if cc.SessionID == "broken" {
			panic("corrupted index")
		}
		return nil
	}))
	o := newOrchestrator(t, func(o *Options) { o.Callbacks = cm })
	start(t, o, "broken", core.AutonomyBalanced, "a")
	start(t, o, "healthy", core.AutonomyBalanced, "a")

	_, err := o.ProcessMessage(context.Background(), "broken", ingest("user", 0, "security"))
	require.ErrorIs(t, err, core.ErrSessionCorrupted)
	assert.Contains(t, err.Error(), "corrupted index")

	_, err = o.ProcessMessage(context.Background(), "broken", ingest("user", time.Minute))
	assert.ErrorIs(t, err, core.ErrSessionCorrupted)
	_, err = o.RecordRationale(context.Background(), "broken", testutil.NewRecord("r1", "a", 0.9, 1))
	assert.ErrorIs(t, err, core.ErrSessionCorrupted)

	res, err := o.ProcessMessage(context.Background(), "healthy", ingest("user", 0, "security"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Turn)

	s, err := o.Session("broken")
	require.NoError(t, err)
	assert.Empty(t, s.History)

	_, err = o.EndSession(context.Background(), "broken")
	assert.NoError(t, err)
}

func TestProcessMessage_ConcurrentSessions(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.Config.MaxConcurrentTurns = 2 })

	const sessions = 8
	for i := 0; i < sessions; i++ {
		start(t, o, fmt.Sprintf("s%d", i), core.AutonomyTightLeash, "a", "b", "c", "d")
	}

	var wg sync.WaitGroup
	errs := make(chan error, sessions*3)
	for i := 0; i < sessions; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for turn := 0; turn < 3; turn++ {
				in := ingest("user", time.Duration(turn)*time.Minute, "security")
				res, err := o.ProcessMessage(context.Background(), fmt.Sprintf("s%d", i), in)
				if err != nil {
					errs <- err
					return
				}
				if n := len(res.Admitted()); n > 1 {
					errs <- fmt.Errorf("%d speakers admitted under tight leash", n)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for i := 0; i < sessions; i++ {
		s, err := o.Session(fmt.Sprintf("s%d", i))
		require.NoError(t, err)
		assert.Equal(t, 3, s.Metrics.TurnCount)
		assert.Len(t, s.History, 3)
	}
}

type failingSource struct{}

func (failingSource) Fetch(context.Context, string) (core.GovernanceIdentity, error) {
	return core.GovernanceIdentity{}, errors.New("registry unreachable")
}

func TestProcessMessage_StaleGovernanceIsDegraded(t *testing.T) {
	o := newOrchestrator(t, func(o *Options) { o.Governance = failingSource{} })
	require.NoError(t, o.RegisterIdentity(testutil.NewIdentity("a", 90)))
	start(t, o, "s1", core.AutonomyBalanced, "a")

	res, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)

	a, _ := res.Decision("a")
	assert.True(t, a.Degraded)
	assert.True(t, a.ShouldParticipate)
	assert.InDelta(t, 0.7*participation.DegradedConfidenceFactor, a.Confidence, 1e-9)

	assert.Contains(t, res.GovernanceInsights, core.GovernanceInsight{
		Kind:     core.InsightDegradedIdentity,
		TargetID: "a",
		Detail:   "governance identity served from cache",
	})
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], core.ErrStaleGovernanceData.Error())
}

func sharingSession(t *testing.T, optFns ...func(o *Options)) *Orchestrator {
	t.Helper()
	o := newOrchestrator(t, optFns...)
	require.NoError(t, o.RegisterIdentity(testutil.NewIdentity("a", 95)))
	require.NoError(t, o.RegisterIdentity(testutil.NewIdentity("b", 95)))
	start(t, o, "s1", core.AutonomyBalanced, "a", "b")

	rec, err := o.RecordRationale(context.Background(), "s1", testutil.NewRecord("r1", "a", 0.95, 4, "security"))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ContentHash)
	return o
}

func TestProcessMessage_AutoExecutedShare(t *testing.T) {
	o := sharingSession(t)

	in := ingest("b", 0, "security")
	in.Signals.UrgencyLevel = 1
	res, err := o.ProcessMessage(context.Background(), "s1", in)
	require.NoError(t, err)

	require.Len(t, res.SharingTriggers, 1)
	assert.Equal(t, core.DispositionAutoExecuted, res.SharingTriggers[0].Disposition)
	require.Len(t, res.AuditLogShares, 1)
	share := res.AuditLogShares[0]
	assert.Equal(t, "a", share.SourceAgentID)
	assert.Equal(t, "b", share.RecipientAgentID)
	assert.LessOrEqual(t, len(share.ReasoningSteps), 4)
	assert.Equal(t, 1, res.SessionMetrics.SharesExecuted)
	assert.Contains(t, res.GovernanceInsights, core.GovernanceInsight{
		Kind: core.InsightShareExecuted, ViewerID: "b", TargetID: "a", Detail: string(core.ShareSimilarDecision),
	})

	src, ok := o.Registry().Identity("a")
	require.True(t, ok)
	assert.Equal(t, 1, src.Metrics.SharesGiven)
	dst, _ := o.Registry().Identity("b")
	assert.Equal(t, 1, dst.Metrics.SharesReceived)

	s, err := o.Session("s1")
	require.NoError(t, err)
	require.Len(t, s.Shares, 1)
	assert.Empty(t, s.PendingSuggestions)
}

func TestApproveSuggestion(t *testing.T) {
	o := sharingSession(t)

	res, err := o.ProcessMessage(context.Background(), "s1", ingest("b", 0, "security"))
	require.NoError(t, err)

	require.Len(t, res.SharingTriggers, 1)
	tr := res.SharingTriggers[0]
	assert.Equal(t, core.DispositionSuggested, tr.Disposition)
	assert.Empty(t, res.AuditLogShares)
	assert.Contains(t, res.NextActions, core.NextAction{
		Kind: core.ActionReviewShare, AgentID: "b", TriggerID: tr.ID, Detail: string(core.ShareSimilarDecision),
	})

	share, err := o.ApproveSuggestion(context.Background(), "s1", tr.ID)
	require.NoError(t, err)
	assert.Equal(t, core.DispositionApproved, share.Disposition)
	assert.Equal(t, tr.ID, share.TriggerID)

	s, err := o.Session("s1")
	require.NoError(t, err)
	assert.Empty(t, s.PendingSuggestions)
	assert.Equal(t, 1, s.Metrics.SharesExecuted)
	assert.Equal(t, 1, s.Metrics.SharesSuggested)

	_, err = o.ApproveSuggestion(context.Background(), "s1", tr.ID)
	assert.ErrorIs(t, err, core.ErrTriggerNotFound)

	require.NoError(t, o.RecordShareFeedback(context.Background(), "s1", share.ID, core.Feedback{From: "b", Helpful: true, Rating: 0.9}))
	s, err = o.Session("s1")
	require.NoError(t, err)
	require.Len(t, s.Shares[0].Feedback, 1)
	assert.Equal(t, testutil.Epoch, s.Shares[0].Feedback[0].CreatedAt)

	err = o.RecordShareFeedback(context.Background(), "s1", "nope", core.Feedback{From: "b"})
	assert.ErrorIs(t, err, core.ErrShareNotFound)
}

func TestRecordShareFeedback_Audited(t *testing.T) {
	store := audit.NewInMemoryStore()
	o := sharingSession(t, func(o *Options) { o.AuditStore = store })

	in := ingest("b", 0, "security")
	in.Signals.UrgencyLevel = 1
	res, err := o.ProcessMessage(context.Background(), "s1", in)
	require.NoError(t, err)
	require.Len(t, res.AuditLogShares, 1)
	shareID := res.AuditLogShares[0].ID

	require.NoError(t, o.RecordShareFeedback(context.Background(), "s1", shareID, core.Feedback{From: "b", Helpful: true, Rating: 0.8}))
	require.NoError(t, o.Close(context.Background()))

	recs, err := o.AuditTrail(context.Background(), "s1")
	require.NoError(t, err)

	var shares []core.FilteredShare
	for _, r := range recs {
		if r.Kind != core.AuditShare {
			continue
		}
		var fs core.FilteredShare
		require.NoError(t, audit.Decode(r, &fs))
		shares = append(shares, fs)
	}
	require.Len(t, shares, 2)
	assert.Empty(t, shares[0].Feedback)
	assert.Equal(t, shareID, shares[1].ID)
	require.Len(t, shares[1].Feedback, 1)
	assert.Equal(t, "b", shares[1].Feedback[0].From)
}

func TestApproveSuggestion_PermissionRechecked(t *testing.T) {
	o := sharingSession(t)

	res, err := o.ProcessMessage(context.Background(), "s1", ingest("b", 0, "security"))
	require.NoError(t, err)
	require.Len(t, res.SharingTriggers, 1)

	require.NoError(t, o.Registry().UpdateStatus("b", core.StatusSuspended))
	_, err = o.ApproveSuggestion(context.Background(), "s1", res.SharingTriggers[0].ID)
	assert.ErrorIs(t, err, core.ErrSharingPermissionDenied)
}

func TestRecordRationale(t *testing.T) {
	o := newOrchestrator(t)
	start(t, o, "s1", core.AutonomyBalanced, "a")

	rec, err := o.RecordRationale(context.Background(), "s1", core.RationaleRecord{AgentID: "a", Summary: "use mTLS"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, testutil.Epoch, rec.CreatedAt)
	assert.Equal(t, core.OutcomePending, rec.Outcome)
	assert.NotEmpty(t, rec.ContentHash)

	_, err = o.RecordRationale(context.Background(), "s1", core.RationaleRecord{AgentID: "nobody"})
	assert.ErrorIs(t, err, core.ErrAgentNotFound)

	_, err = o.RecordRationale(context.Background(), "missing", core.RationaleRecord{AgentID: "a"})
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestProvideFeedback(t *testing.T) {
	o := newOrchestrator(t)
	before, _ := o.Agent("a")

	p, err := o.ProvideFeedback("a", participation.FeedbackIntrusive)
	require.NoError(t, err)
	assert.Greater(t, p.Speaking.ExpertiseThreshold, before.Profile.Speaking.ExpertiseThreshold)

	after, _ := o.Agent("a")
	assert.Equal(t, p, after.Profile)

	_, err = o.ProvideFeedback("nobody", participation.FeedbackHelpful)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestAuditTrail(t *testing.T) {
	store := audit.NewInMemoryStore()
	o := newOrchestrator(t, func(o *Options) { o.AuditStore = store })
	start(t, o, "s1", core.AutonomyGuided, "a", "b", "c", "d")

	_, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)
	require.NoError(t, o.Close(context.Background()))

	recs, err := o.AuditTrail(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 5)

	kinds := map[core.AuditKind]int{}
	for _, r := range recs {
		require.NoError(t, audit.Verify(r))
		assert.Equal(t, 1, r.Turn)
		kinds[r.Kind]++
	}
	assert.Equal(t, map[core.AuditKind]int{core.AuditDecision: 4, core.AuditMetrics: 1}, kinds)

	var m core.SessionMetrics
	require.NoError(t, audit.Decode(recs[4], &m))
	assert.Equal(t, 1, m.TurnCount)
	assert.Equal(t, audit.WriterStats{Written: 5}, o.AuditStats())
}

func TestCallbacks_Lifecycle(t *testing.T) {
	var (
		mu    sync.Mutex
		fired []CallbackType
	)
	record := func(_ context.Context, cc *CallbackContext) error {
		mu.Lock()
		fired = append(fired, cc.CallbackType)
		mu.Unlock()
		return nil
	}
	cm := NewCallbackManager()
	for _, kind := range []CallbackType{CallbackBeforeTurn, CallbackAfterEvaluation, CallbackOnShare, CallbackOnPhaseChange, CallbackAfterTurn, CallbackOnError} {
		cm.RegisterCallback(NewFunctionCallback(kind, record))
	}

	o := newOrchestrator(t, func(o *Options) { o.Callbacks = cm })
	start(t, o, "s1", core.AutonomyBalanced, "a")

	_, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)
	assert.Equal(t, []CallbackType{CallbackBeforeTurn, CallbackAfterEvaluation, CallbackOnPhaseChange, CallbackAfterTurn}, fired)

	fired = nil
	_, err = o.ProcessMessage(context.Background(), "s1", ingest("user", time.Minute, "security"))
	require.NoError(t, err)
	assert.Equal(t, []CallbackType{CallbackBeforeTurn, CallbackAfterEvaluation, CallbackAfterTurn}, fired)
}

func TestCallbacks_PhaseVetoAbortsTurn(t *testing.T) {
	cm := NewCallbackManager()
	cm.RegisterCallback(NewPhaseValidationCallback(func(from, to core.SessionPhase) error {
		if to == core.PhaseConsensusBuilding {
			return errors.New("consensus building disabled")
		}
		return nil
	}))
	o := newOrchestrator(t, func(o *Options) { o.Callbacks = cm })
	start(t, o, "s1", core.AutonomyBalanced, "a")

	_, err := o.ProcessMessage(context.Background(), "s1", ingest("user", 0, "security"))
	require.NoError(t, err)

	in := ingest("user", time.Minute, "security")
	in.Signals.ConsensusLevel = 0.9
	_, err = o.ProcessMessage(context.Background(), "s1", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consensus building disabled")

	s, err := o.Session("s1")
	require.NoError(t, err)
	assert.Equal(t, core.PhaseActive, s.Phase)
	assert.Len(t, s.History, 1)
}
