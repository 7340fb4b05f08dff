package sharing

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/codec"
	"github.com/hupe1980/agentfloor/internal/util"
)

// extraction says which parts of a record a trigger type may disclose.
type extraction struct {
	steps    map[core.StepKind]bool
	policies bool
	risks    bool
	// topical restricts steps to those sharing a topic with the trigger.
	topical bool
}

func kinds(ks ...core.StepKind) map[core.StepKind]bool {
	m := make(map[core.StepKind]bool, len(ks))
	for _, k := range ks {
		m[k] = true
	}
	return m
}

var extractions = map[core.TriggerType]extraction{
	core.ShareSimilarDecision:     {steps: kinds(core.StepAnalysis, core.StepConclusion)},
	core.ShareExpertiseGap:        {steps: kinds(core.StepAnalysis, core.StepConclusion), topical: true},
	core.SharePolicyClarification: {steps: kinds(core.StepPolicy), policies: true},
	core.ShareConflictResolution:  {steps: kinds(core.StepAnalysis, core.StepPolicy, core.StepConclusion), policies: true},
	core.ShareNovelDecision:       {steps: kinds(core.StepConclusion)},
	core.ShareQualityValidation:   {steps: kinds(core.StepAnalysis, core.StepPolicy, core.StepRisk, core.StepConclusion), policies: true, risks: true},
	core.ShareLearningFromFailure: {steps: kinds(core.StepRisk, core.StepConclusion), risks: true},
}

// Redactor reduces rationale records to bounded, policy-filtered shares.
type Redactor struct {
	policy *Policy
}

// NewRedactor returns a Redactor using policy, or the built-in policy when
// nil.
func NewRedactor(policy *Policy) *Redactor {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Redactor{policy: policy}
}

// RedactInput is everything needed to build one share.
type RedactInput struct {
	SessionID   string
	Trigger     core.SharingTrigger
	Record      core.RationaleRecord
	Recipient   core.GovernanceIdentity
	Filter      core.FilterLevel
	Disposition core.Disposition
	Now         time.Time
}

// Redact builds the FilteredShare for an approved trigger. The share never
// retains more reasoning steps than the record holds.
func (r *Redactor) Redact(in RedactInput) (core.FilteredShare, error) {
	rec := in.Record
	filter := in.Filter
	if filter.Rank() == 0 {
		filter = core.FilterSummaryOnly
	}
	ex, ok := extractions[in.Trigger.Type]
	if !ok {
		return core.FilteredShare{}, fmt.Errorf("unknown trigger type %q", in.Trigger.Type)
	}

	sourceHash, err := RecordHash(rec)
	if err != nil {
		return core.FilteredShare{}, err
	}

	cleared := make(map[string]bool, len(in.Recipient.Boundaries.DataClasses))
	for _, c := range in.Recipient.Boundaries.DataClasses {
		cleared[c] = true
	}
	var markers []string
	mark := func(hits []string) {
		for _, h := range hits {
			markers = appendUnique(markers, "[REDACTED:"+h+"]")
		}
	}

	share := core.FilteredShare{
		ID:               core.NewID(),
		SessionID:        in.SessionID,
		TriggerID:        in.Trigger.ID,
		TriggerType:      in.Trigger.Type,
		SourceAgentID:    rec.AgentID,
		RecipientAgentID: in.Trigger.RecipientAgentID,
		RecordID:         rec.ID,
		FilterLevel:      filter,
		SourceStepCount:  len(rec.ReasoningSteps),
		ProvenanceHash:   sourceHash,
		Disposition:      in.Disposition,
		CreatedAt:        in.Now,
	}

	summary, hits := r.policy.Apply(rec.Summary, cleared)
	mark(hits)
	share.Summary = summary

	budget := filter.StepBudget()
	for _, s := range selectSteps(rec.ReasoningSteps, ex, in.Trigger.Topics) {
		if budget >= 0 && len(share.ReasoningSteps) >= budget {
			break
		}
		s.Topics = append([]string(nil), s.Topics...)
		s.Description, hits = r.policy.Apply(s.Description, cleared)
		mark(hits)
		share.ReasoningSteps = append(share.ReasoningSteps, s)
	}

	if filter != core.FilterSummaryOnly && ex.policies {
		for _, p := range rec.PolicyConsiderations {
			if p.Jurisdiction != "" && !in.Recipient.Boundaries.AllowsJurisdiction(p.Jurisdiction) {
				m := "[REDACTED:jurisdiction:" + p.Jurisdiction + "]"
				markers = appendUnique(markers, m)
				share.PolicyConsiderations = append(share.PolicyConsiderations, core.PolicyConsideration{Policy: m, Jurisdiction: p.Jurisdiction})
				continue
			}
			p.Note, hits = r.policy.Apply(p.Note, cleared)
			mark(hits)
			share.PolicyConsiderations = append(share.PolicyConsiderations, p)
		}
	}

	if filter != core.FilterSummaryOnly && ex.risks {
		for _, f := range rec.RiskFactors {
			f.Topics = append([]string(nil), f.Topics...)
			f.Name, hits = r.policy.Apply(f.Name, cleared)
			mark(hits)
			share.RiskFactors = append(share.RiskFactors, f)
		}
	}

	share.RedactionMarkers = markers
	share.RelevanceScore = util.Clamp01(0.5*in.Trigger.Confidence + 0.5*similarity(rec.Topics, in.Trigger.Topics))
	share.LearningValue = learningValue(in.Trigger, rec, len(share.ReasoningSteps))

	share.ContentHash, err = codec.Hash(codec.DomainShare, shareContent(share), []byte(in.Trigger.ID))
	if err != nil {
		return core.FilteredShare{}, err
	}
	return share, nil
}

func selectSteps(steps []core.ReasoningStep, ex extraction, topics []string) []core.ReasoningStep {
	var out []core.ReasoningStep
	for _, s := range steps {
		if !ex.steps[s.Kind] {
			continue
		}
		if ex.topical && len(topics) > 0 && len(s.Topics) > 0 && !overlap(s.Topics, topics) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func learningValue(t core.SharingTrigger, rec core.RationaleRecord, retained int) float64 {
	detail := 0.0
	if n := len(rec.ReasoningSteps); n > 0 {
		detail = float64(retained) / float64(n)
	}
	v := 0.5*t.ExpectedValue + 0.3*detail
	if rec.Outcome == core.OutcomeFailure {
		v += 0.2
	}
	return util.Clamp01(v)
}

// shareBody is the hashed part of a share: what the recipient receives.
type shareBody struct {
	RecordID             string                     `cbor:"record_id"`
	Recipient            string                     `cbor:"recipient"`
	FilterLevel          core.FilterLevel           `cbor:"filter_level"`
	Summary              string                     `cbor:"summary"`
	ReasoningSteps       []core.ReasoningStep       `cbor:"reasoning_steps"`
	PolicyConsiderations []core.PolicyConsideration `cbor:"policy_considerations"`
	RiskFactors          []core.RiskFactor          `cbor:"risk_factors"`
	RedactionMarkers     []string                   `cbor:"redaction_markers"`
}

func shareContent(s core.FilteredShare) shareBody {
	return shareBody{
		RecordID:             s.RecordID,
		Recipient:            s.RecipientAgentID,
		FilterLevel:          s.FilterLevel,
		Summary:              s.Summary,
		ReasoningSteps:       s.ReasoningSteps,
		PolicyConsiderations: s.PolicyConsiderations,
		RiskFactors:          s.RiskFactors,
		RedactionMarkers:     s.RedactionMarkers,
	}
}

// RecordHash returns the content hash of a rationale record, ignoring any
// hash already stored on it.
func RecordHash(rec core.RationaleRecord) (string, error) {
	rec.ContentHash = ""
	h, err := codec.Hash(codec.DomainRationale, rec)
	if err != nil {
		return "", fmt.Errorf("hash rationale %s: %w", rec.ID, err)
	}
	return h, nil
}

// Seal returns rec with its ContentHash set.
func Seal(rec core.RationaleRecord) (core.RationaleRecord, error) {
	h, err := RecordHash(rec)
	if err != nil {
		return rec, err
	}
	rec.ContentHash = h
	return rec, nil
}

func appendUnique(xs []string, x string) []string {
	for _, have := range xs {
		if have == x {
			return xs
		}
	}
	return append(xs, x)
}
