package core

import "time"

// IdentityStatus is the live status of a governance identity.
type IdentityStatus string

const (
	StatusActive    IdentityStatus = "active"
	StatusIdle      IdentityStatus = "idle"
	StatusSuspended IdentityStatus = "suspended"
	StatusOffline   IdentityStatus = "offline"
)

// Scorecard holds bounded governance sub-scores in [0,100].
type Scorecard struct {
	Overall      float64 `json:"overall" yaml:"overall" validate:"min=0,max=100"`
	Reliability  float64 `json:"reliability" yaml:"reliability" validate:"min=0,max=100"`
	Compliance   float64 `json:"compliance" yaml:"compliance" validate:"min=0,max=100"`
	Transparency float64 `json:"transparency" yaml:"transparency" validate:"min=0,max=100"`
}

// LiveMetrics are continuously updated operational counters.
type LiveMetrics struct {
	DecisionsMade  int           `json:"decisions_made"`
	SharesGiven    int           `json:"shares_given"`
	SharesReceived int           `json:"shares_received"`
	Violations     int           `json:"violations"`
	AvgLatency     time.Duration `json:"avg_latency"`
}

// TrustBoundaries limit what an agent is allowed to disclose.
type TrustBoundaries struct {
	Jurisdictions []string    `json:"jurisdictions,omitempty" yaml:"jurisdictions"`
	DataClasses   []string    `json:"data_classes,omitempty" yaml:"data_classes"`
	MaxDisclosure FilterLevel `json:"max_disclosure,omitempty" yaml:"max_disclosure"`
}

// AllowsJurisdiction reports whether j is inside the boundary. An empty
// jurisdiction list allows nothing but unscoped content.
func (b TrustBoundaries) AllowsJurisdiction(j string) bool {
	if j == "" {
		return true
	}
	for _, have := range b.Jurisdictions {
		if have == j {
			return true
		}
	}
	return false
}

// CollaborationProfile describes how an agent likes to work with others.
type CollaborationProfile struct {
	SharingEnabled    bool     `json:"sharing_enabled" yaml:"sharing_enabled"`
	PreferredPartners []string `json:"preferred_partners,omitempty" yaml:"preferred_partners"`
}

// VisibilitySettings are the viewer's opt-ins. A viewer never sees more than
// it asked for, even at full trust.
type VisibilitySettings struct {
	MinimumTrustForVisibility float64 `json:"minimum_trust_for_visibility" yaml:"minimum_trust_for_visibility" validate:"min=0,max=100"`
	ShowScorecard             bool    `json:"show_scorecard" yaml:"show_scorecard"`
	ShowMetrics               bool    `json:"show_metrics" yaml:"show_metrics"`
	ShowTrustBoundaries       bool    `json:"show_trust_boundaries" yaml:"show_trust_boundaries"`
	ShowAttestations          bool    `json:"show_attestations" yaml:"show_attestations"`
}

// Attestation is a third-party statement about an identity.
type Attestation struct {
	Issuer   string    `json:"issuer"`
	Claim    string    `json:"claim"`
	IssuedAt time.Time `json:"issued_at"`
}

// GovernanceIdentity is the governance record of one agent.
type GovernanceIdentity struct {
	AgentID       string               `json:"agent_id"`
	Name          string               `json:"name"`
	Scorecard     Scorecard            `json:"scorecard"`
	Metrics       LiveMetrics          `json:"metrics"`
	Boundaries    TrustBoundaries      `json:"boundaries"`
	Collaboration CollaborationProfile `json:"collaboration"`
	Visibility    VisibilitySettings   `json:"visibility"`
	Attestations  []Attestation        `json:"attestations,omitempty"`
	Status        IdentityStatus       `json:"status"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Clone returns a deep copy of the identity.
func (g GovernanceIdentity) Clone() GovernanceIdentity {
	c := g
	c.Boundaries.Jurisdictions = append([]string(nil), g.Boundaries.Jurisdictions...)
	c.Boundaries.DataClasses = append([]string(nil), g.Boundaries.DataClasses...)
	c.Collaboration.PreferredPartners = append([]string(nil), g.Collaboration.PreferredPartners...)
	c.Attestations = append([]Attestation(nil), g.Attestations...)
	return c
}

// VisibilityTier is the visibility bracket derived from a trust score.
type VisibilityTier int

const (
	TierNone VisibilityTier = iota
	TierBasic
	TierStandard
	TierEnhanced
	TierFull
)

// String returns the tier name.
func (t VisibilityTier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierStandard:
		return "standard"
	case TierEnhanced:
		return "enhanced"
	case TierFull:
		return "full"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t VisibilityTier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// VisibilityPermission is what viewer may see about target.
type VisibilityPermission struct {
	ViewerID            string         `json:"viewer_id"`
	TargetID            string         `json:"target_id"`
	CanView             bool           `json:"can_view"`
	GovernanceID        string         `json:"governance_id,omitempty"`
	Tier                VisibilityTier `json:"tier"`
	TrustScore          float64        `json:"trust_score"`
	ShowScorecard       bool           `json:"show_scorecard"`
	ShowMetrics         bool           `json:"show_metrics"`
	ShowTrustBoundaries bool           `json:"show_trust_boundaries"`
	ShowAttestations    bool           `json:"show_attestations"`
	Degraded            bool           `json:"degraded,omitempty"`
}

// VisibleFields counts the metadata field classes shown.
func (p VisibilityPermission) VisibleFields() int {
	n := 0
	for _, b := range []bool{p.ShowScorecard, p.ShowMetrics, p.ShowTrustBoundaries, p.ShowAttestations} {
		if b {
			n++
		}
	}
	return n
}
