package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/util"
	"github.com/hupe1980/agentfloor/logging"
)

var (
	conflictTones = map[string]bool{
		"disagreement":    true,
		"frustrated":      true,
		"critical":        true,
		"tense":           true,
		"confrontational": true,
	}
	collaborationTones = map[string]bool{
		"supportive":    true,
		"collaborative": true,
		"agreeable":     true,
		"constructive":  true,
		"enthusiastic":  true,
	}
)

const neutralTone = "neutral"

// Options configures an Analyzer.
type Options struct {
	// TopicWindow is the number of trailing messages used for topic, tone and
	// quality analysis.
	TopicWindow int
	// MomentumWindow is the number of trailing messages used for momentum.
	MomentumWindow int
	// InterruptionGap is the gap below which consecutive messages count as
	// an interruption.
	InterruptionGap time.Duration
	// MomentumDecay is the time constant of the momentum decay.
	MomentumDecay time.Duration
	// DominationShare is the contribution share above which an agent is
	// considered dominating.
	DominationShare float64
	Logger          logging.Logger
}

// Analyzer turns a message history and roster into a ConversationContext.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer with default windows.
func New(optFns ...func(o *Options)) *Analyzer {
	opts := Options{
		TopicWindow:     5,
		MomentumWindow:  3,
		InterruptionGap: 5 * time.Second,
		MomentumDecay:   30 * time.Second,
		DominationShare: 0.4,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TopicWindow <= 0 {
		opts.TopicWindow = 5
	}
	if opts.MomentumWindow <= 1 {
		opts.MomentumWindow = 3
	}
	if opts.MomentumDecay <= 0 {
		opts.MomentumDecay = 30 * time.Second
	}
	return &Analyzer{opts: opts}
}

// Input is everything the analyzer looks at. Now is the analysis time; the
// analyzer never reads a clock.
type Input struct {
	SessionID   string
	SessionType core.SessionType
	Now         time.Time
	History     []core.Message
	Roster      []core.Participant
	Signals     core.ConversationSignals
}

// Analyze builds the snapshot for one turn. Identical inputs produce
// identical snapshots.
func (a *Analyzer) Analyze(in Input) core.ConversationContext {
	window := tail(in.History, a.opts.TopicWindow)

	topic := a.analyzeTopic(window, in.Signals.RequiredExpertise)
	participants := a.participantStats(in.History, in.Roster)

	ctx := core.ConversationContext{
		SessionID:        in.SessionID,
		SessionType:      in.SessionType,
		AnalyzedAt:       in.Now,
		RecentMessages:   append([]core.Message(nil), window...),
		Participants:     participants,
		Topic:            topic,
		Flow:             a.analyzeFlow(in.History, window, participants, topic),
		ParticipantView:  a.analyzeParticipants(window, participants),
		Emotion:          analyzeEmotion(window),
		Quality:          analyzeQuality(window),
		UrgencyLevel:     util.Clamp01(in.Signals.UrgencyLevel),
		ConflictLevel:    util.Clamp01(in.Signals.ConflictLevel),
		ConsensusLevel:   util.Clamp01(in.Signals.ConsensusLevel),
		PendingQuestions: append([]core.PendingQuestion(nil), in.Signals.PendingQuestions...),
		InformationGaps:  append([]core.InformationGap(nil), in.Signals.InformationGaps...),
	}

	a.opts.Logger.Debug("Context analyzed",
		"session_id", in.SessionID,
		"primary_topic", topic.Primary,
		"flow_quality", ctx.Flow.Quality,
		"momentum", ctx.Flow.Momentum,
	)

	return ctx
}

func (a *Analyzer) analyzeTopic(window []core.Message, required []string) core.TopicAnalysis {
	counts := map[string]int{}
	var order []string
	mentions := 0
	for _, m := range window {
		for _, t := range m.Topics {
			if t == "" {
				continue
			}
			if _, ok := counts[t]; !ok {
				order = append(order, t)
			}
			counts[t]++
			mentions++
		}
	}

	ta := core.TopicAnalysis{
		Primary:           core.DefaultTopic,
		Clarity:           0.5,
		RequiredExpertise: append([]string(nil), required...),
	}
	if len(window) > 0 {
		conf := make([]float64, len(window))
		for i, m := range window {
			conf[i] = m.Confidence
		}
		ta.Clarity = util.Mean(conf, 0.5)
	}
	if len(order) == 0 {
		return ta
	}

	ranked := rankByCount(order, counts)
	ta.Primary = ranked[0]
	if len(ranked) > 1 {
		end := len(ranked)
		if end > 4 {
			end = 4
		}
		ta.Secondary = append([]string(nil), ranked[1:end]...)
	}
	ta.Complexity = math.Min(float64(len(order))/10, 1)
	ta.Diversity = float64(len(order)) / float64(mentions)
	return ta
}

func (a *Analyzer) participantStats(history []core.Message, roster []core.Participant) []core.ParticipantStats {
	stats := make([]core.ParticipantStats, 0, len(roster))
	index := map[string]int{}
	for _, p := range roster {
		if _, dup := index[p.AgentID]; dup {
			continue
		}
		index[p.AgentID] = len(stats)
		stats = append(stats, core.ParticipantStats{
			AgentID:          p.AgentID,
			Responsibilities: append([]string(nil), p.Responsibilities...),
		})
	}
	total := 0
	for _, m := range history {
		i, ok := index[m.AgentID]
		if !ok {
			continue
		}
		stats[i].ContributionCount++
		if m.Timestamp.After(stats[i].LastContribution) {
			stats[i].LastContribution = m.Timestamp
		}
		total++
	}
	if total > 0 {
		for i := range stats {
			stats[i].Share = float64(stats[i].ContributionCount) / float64(total)
		}
	}
	return stats
}

func (a *Analyzer) analyzeFlow(history, window []core.Message, participants []core.ParticipantStats, topic core.TopicAnalysis) core.FlowAnalysis {
	flow := core.FlowAnalysis{
		Quality:              0.5,
		ParticipationBalance: balance(participants),
		Momentum:             0.5,
	}
	if len(window) == 0 {
		return flow
	}

	rel := make([]float64, len(window))
	for i, m := range window {
		rel[i] = m.Relevance
	}
	flow.Quality = util.Mean(rel, 0.5)

	if len(window) > 1 {
		interruptions := 0
		for i := 1; i < len(window); i++ {
			if window[i].Timestamp.Sub(window[i-1].Timestamp) < a.opts.InterruptionGap {
				interruptions++
			}
		}
		flow.InterruptionFrequency = float64(interruptions) / float64(len(window)-1)
	}

	recent := tail(history, a.opts.MomentumWindow)
	if len(recent) > 1 {
		decay := make([]float64, 0, len(recent)-1)
		for i := 1; i < len(recent); i++ {
			gap := recent[i].Timestamp.Sub(recent[i-1].Timestamp)
			if gap < 0 {
				gap = 0
			}
			decay = append(decay, math.Exp(-gap.Seconds()/a.opts.MomentumDecay.Seconds()))
		}
		flow.Momentum = util.Mean(decay, 0.5)
	}

	flow.StagnationRisk = util.Clamp01(0.6*(1-flow.Quality) + 0.4*(1-topic.Diversity))
	return flow
}

// balance is 1 minus the normalized variance of contribution counts.
func balance(participants []core.ParticipantStats) float64 {
	if len(participants) == 0 {
		return 1
	}
	total := 0
	for _, p := range participants {
		total += p.ContributionCount
	}
	if total == 0 {
		return 1
	}
	mean := float64(total) / float64(len(participants))
	variance := 0.0
	for _, p := range participants {
		d := float64(p.ContributionCount) - mean
		variance += d * d
	}
	variance /= float64(len(participants))
	return 1 - math.Min(variance/(mean*mean), 1)
}

func (a *Analyzer) analyzeParticipants(window []core.Message, participants []core.ParticipantStats) core.ParticipantAnalysis {
	var pa core.ParticipantAnalysis
	spoke := map[string]bool{}
	for _, m := range window {
		spoke[m.AgentID] = true
	}
	for _, p := range participants {
		if spoke[p.AgentID] {
			pa.Active = append(pa.Active, p.AgentID)
		} else {
			pa.Quiet = append(pa.Quiet, p.AgentID)
		}
		if p.Share > a.opts.DominationShare {
			pa.Dominating = append(pa.Dominating, p.AgentID)
		}
	}
	return pa
}

func analyzeEmotion(window []core.Message) core.EmotionalAnalysis {
	ea := core.EmotionalAnalysis{Tone: neutralTone, Stability: 1}
	if len(window) == 0 {
		return ea
	}
	counts := map[string]int{}
	var order []string
	for _, m := range window {
		tone := m.Tone
		if tone == "" {
			tone = neutralTone
		}
		if _, ok := counts[tone]; !ok {
			order = append(order, tone)
		}
		counts[tone]++
		switch {
		case conflictTones[tone]:
			ea.ConflictIndicators = append(ea.ConflictIndicators, m.ID)
		case collaborationTones[tone]:
			ea.CollaborationIndicators = append(ea.CollaborationIndicators, m.ID)
		}
	}
	ea.Tone = rankByCount(order, counts)[0]
	ea.Stability = 1 - float64(len(order))/float64(len(window))
	return ea
}

func analyzeQuality(window []core.Message) core.QualityIndicators {
	var q core.QualityIndicators
	for _, m := range window {
		if m.Relevance > 0.8 && m.Confidence > 0.7 {
			q.HighQuality = append(q.HighQuality, m.ID)
		}
		if m.Relevance < 0.3 || m.Confidence < 0.3 {
			q.LowQuality = append(q.LowQuality, m.ID)
		}
	}
	return q
}

// rankByCount orders keys by descending count; ties keep first-appearance
// order.
func rankByCount(order []string, counts map[string]int) []string {
	ranked := append([]string(nil), order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	return ranked
}

func tail(msgs []core.Message, n int) []core.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
