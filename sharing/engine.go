package sharing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/logging"
	"github.com/hupe1980/agentfloor/trust"
)

// Options configures an Engine.
type Options struct {
	// MaxTriggers caps the prioritized triggers per turn.
	MaxTriggers int
	// MinPriority and MinExpectedValue are exclusive floors.
	MinPriority      float64
	MinExpectedValue float64
	// SimilarityThreshold is the topic similarity a similar_decision needs.
	SimilarityThreshold float64
	// RecordsPerAgent bounds how many of an agent's newest records are
	// considered as share sources.
	RecordsPerAgent int
	// AutoExecuteUrgency is the exclusive urgency floor for auto-execution.
	AutoExecuteUrgency float64
	// Policy is the redaction policy; nil selects the built-in one.
	Policy *Policy
	Logger logging.Logger
}

// Engine detects, prioritizes and executes sharing triggers. It is
// stateless between turns and safe for concurrent use on distinct inputs.
type Engine struct {
	opts     Options
	redactor *Redactor
}

// New creates an Engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		MaxTriggers:         5,
		MinPriority:         0.6,
		MinExpectedValue:    0.7,
		SimilarityThreshold: 0.3,
		RecordsPerAgent:     3,
		AutoExecuteUrgency:  0.7,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{opts: opts, redactor: NewRedactor(opts.Policy)}
}

// Input is one turn's sharing input.
type Input struct {
	SessionID string
	Turn      int
	Context   *core.ConversationContext
	// Agents is the roster in registration order.
	Agents []core.RegisteredAgent
	// Records are the session's rationale records.
	Records    []core.RationaleRecord
	Visibility *trust.Snapshot
	Autonomy   core.AutonomyLevel
}

// Result is the outcome of one turn's sharing pass.
type Result struct {
	// Triggers are the prioritized triggers with their disposition.
	Triggers []core.SharingTrigger
	// Shares are the auto-executed shares.
	Shares []core.FilteredShare
	// Detected counts raw detections, Denied those dropped by permission
	// checks and Discarded those below the floors or beyond the cap.
	Detected  int
	Denied    int
	Discarded int
	// Errors are redaction failures. The affected trigger stays a
	// suggestion.
	Errors []error
}

// Suggestions returns the triggers that need explicit approval.
func (r Result) Suggestions() []core.SharingTrigger {
	var out []core.SharingTrigger
	for _, t := range r.Triggers {
		if t.Disposition == core.DispositionSuggested {
			out = append(out, t)
		}
	}
	return out
}

// Run executes the full sharing pass for a turn. Only cancellation is
// returned as an error.
func (e *Engine) Run(ctx context.Context, in Input) (Result, error) {
	var res Result
	if in.Context == nil {
		return res, nil
	}

	candidates := e.detect(in)
	res.Detected = len(candidates)

	permitted := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		filter, err := Permit(in.Visibility, c.trigger)
		if err != nil {
			res.Denied++
			e.opts.Logger.Debug("Share dropped",
				"session_id", in.SessionID,
				"trigger_type", c.trigger.Type,
				"source", c.trigger.SourceAgentID,
				"recipient", c.trigger.RecipientAgentID,
				"error", err,
			)
			continue
		}
		c.trigger.RecommendedFilter = filter
		permitted = append(permitted, c)
	}

	prioritized := e.prioritize(permitted)
	res.Discarded = len(permitted) - len(prioritized)

	for _, c := range prioritized {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		t := c.trigger
		t.ID = core.NewID()
		t.DetectedAt = in.Context.AnalyzedAt
		t.Disposition = Decide(t, in.Autonomy, e.opts.AutoExecuteUrgency)

		if t.Disposition == core.DispositionAutoExecuted {
			share, err := e.Execute(in.SessionID, t, c.record, in.Visibility, t.Disposition, in.Context.AnalyzedAt)
			if err != nil {
				res.Errors = append(res.Errors, err)
				t.Disposition = core.DispositionSuggested
			} else {
				res.Shares = append(res.Shares, share)
			}
		}
		res.Triggers = append(res.Triggers, t)
	}
	return res, nil
}

// Detect runs every detector without permission checks or scoring. The
// result order is detector, source agent, record, recipient.
func (e *Engine) Detect(in Input) []core.SharingTrigger {
	cs := e.detect(in)
	out := make([]core.SharingTrigger, len(cs))
	for i, c := range cs {
		out[i] = c.trigger
	}
	return out
}

func (e *Engine) detect(in Input) []candidate {
	byAgent := make(map[string][]core.RationaleRecord)
	for _, r := range in.Records {
		byAgent[r.AgentID] = append(byAgent[r.AgentID], r)
	}
	for id, recs := range byAgent {
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
				return recs[i].CreatedAt.After(recs[j].CreatedAt)
			}
			return recs[i].ID < recs[j].ID
		})
		if n := e.opts.RecordsPerAgent; n > 0 && len(recs) > n {
			byAgent[id] = recs[:n]
		}
	}

	dc := newDetectContext(in.Context, in.Agents, in.Records, e.opts.SimilarityThreshold)
	var out []candidate
	for _, kind := range core.TriggerTypes {
		detect := detectors[kind]
		for _, src := range in.Agents {
			for _, rec := range byAgent[src.ID] {
				out = append(out, detect(dc, src, rec)...)
			}
		}
	}
	return out
}

// Prioritize scores triggers, keeps those above both floors, removes
// duplicates and returns at most MaxTriggers by descending priority. Equal
// scores keep their input order.
func (e *Engine) Prioritize(triggers []core.SharingTrigger) []core.SharingTrigger {
	cs := make([]candidate, len(triggers))
	for i, t := range triggers {
		cs[i] = candidate{trigger: t}
	}
	kept := e.prioritize(cs)
	out := make([]core.SharingTrigger, len(kept))
	for i, c := range kept {
		out[i] = c.trigger
	}
	return out
}

type dedupKey struct {
	kind      core.TriggerType
	source    string
	recipient string
	record    string
}

func (e *Engine) prioritize(cs []candidate) []candidate {
	best := make(map[dedupKey]int)
	var kept []candidate
	for _, c := range cs {
		c.trigger.PriorityScore = c.trigger.Priority()
		if c.trigger.PriorityScore <= e.opts.MinPriority || c.trigger.ExpectedValue <= e.opts.MinExpectedValue {
			continue
		}
		k := dedupKey{c.trigger.Type, c.trigger.SourceAgentID, c.trigger.RecipientAgentID, c.trigger.RecordID}
		if i, ok := best[k]; ok {
			if c.trigger.PriorityScore > kept[i].trigger.PriorityScore {
				kept[i] = c
			}
			continue
		}
		best[k] = len(kept)
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].trigger.PriorityScore > kept[j].trigger.PriorityScore
	})
	if n := e.opts.MaxTriggers; n >= 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept
}

// Permit checks whether the source may disclose to the recipient and returns
// the most detailed filter level allowed. Denials wrap
// core.ErrSharingPermissionDenied.
func Permit(snap *trust.Snapshot, t core.SharingTrigger) (core.FilterLevel, error) {
	deny := func(reason string) (core.FilterLevel, error) {
		return "", fmt.Errorf("%w: %s → %s: %s", core.ErrSharingPermissionDenied, t.SourceAgentID, t.RecipientAgentID, reason)
	}
	if snap == nil {
		return deny("no visibility snapshot")
	}
	src, ok := snap.Identity(t.SourceAgentID)
	if !ok {
		return deny("source has no governance identity")
	}
	dst, ok := snap.Identity(t.RecipientAgentID)
	if !ok {
		return deny("recipient has no governance identity")
	}
	if !src.Collaboration.SharingEnabled {
		return deny("source has sharing disabled")
	}
	if !reachable(src.Status) || !reachable(dst.Status) {
		return deny("identity not active")
	}
	perm := snap.Permission(t.RecipientAgentID, t.SourceAgentID)
	if !perm.CanView {
		return deny("recipient below the source's visibility threshold")
	}
	return core.MinFilter(core.MinFilter(t.RecommendedFilter, src.Boundaries.MaxDisclosure), TierFilter(perm.Tier)), nil
}

func reachable(s core.IdentityStatus) bool {
	return s == core.StatusActive || s == core.StatusIdle || s == ""
}

// TierFilter is the most detailed filter level a visibility tier allows.
func TierFilter(t core.VisibilityTier) core.FilterLevel {
	switch t {
	case core.TierFull:
		return core.FilterFullTransparency
	case core.TierEnhanced:
		return core.FilterDetailedSharing
	case core.TierStandard:
		return core.FilterFilteredReasoning
	default:
		return core.FilterSummaryOnly
	}
}

// Decide returns auto_executed when the trigger's confidence reaches the
// tier's auto-execute threshold and its urgency exceeds urgencyFloor, and
// suggested otherwise.
func Decide(t core.SharingTrigger, level core.AutonomyLevel, urgencyFloor float64) core.Disposition {
	if t.Confidence >= level.AutoExecuteThreshold() && t.Urgency > urgencyFloor {
		return core.DispositionAutoExecuted
	}
	return core.DispositionSuggested
}

// Execute redacts the record for the trigger and returns the share.
// Permissions are re-checked against snap.
func (e *Engine) Execute(sessionID string, t core.SharingTrigger, rec core.RationaleRecord, snap *trust.Snapshot, disposition core.Disposition, now time.Time) (core.FilteredShare, error) {
	if rec.ID != t.RecordID || rec.AgentID != t.SourceAgentID {
		return core.FilteredShare{}, fmt.Errorf("%w: %s", core.ErrRecordNotFound, t.RecordID)
	}
	filter, err := Permit(snap, t)
	if err != nil {
		return core.FilteredShare{}, err
	}
	recipient, _ := snap.Identity(t.RecipientAgentID)
	share, err := e.redactor.Redact(RedactInput{
		SessionID:   sessionID,
		Trigger:     t,
		Record:      rec,
		Recipient:   recipient,
		Filter:      core.MinFilter(t.RecommendedFilter, filter),
		Disposition: disposition,
		Now:         now,
	})
	if err != nil {
		return core.FilteredShare{}, fmt.Errorf("redact %s: %w", t.ID, err)
	}
	return share, nil
}
