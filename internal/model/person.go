package model

import "time"

// Provenance records how a contact field value was established.
type Provenance string

const (
	// ProvenanceVerified means a known value was confirmed against a provider.
	ProvenanceVerified Provenance = "verified"
	// ProvenanceDiscovered means the value was found fresh by a provider.
	ProvenanceDiscovered Provenance = "discovered"
	// ProvenanceUnverified means no provider could establish a value.
	ProvenanceUnverified Provenance = "unverified"
)

// ContactFieldKey identifies a reachable contact channel on a person.
type ContactFieldKey string

const (
	FieldEmail ContactFieldKey = "email"
	FieldPhone ContactFieldKey = "phone"
)

// OutcomeStatus tags the result of a single provider attempt.
type OutcomeStatus string

const (
	OutcomeConfirmed   OutcomeStatus = "confirmed"
	OutcomeNotFound    OutcomeStatus = "not_found"
	OutcomeUnavailable OutcomeStatus = "unavailable"
)

// SourceAttempt is one entry in a contact field's audit chain.
type SourceAttempt struct {
	Provider string        `json:"provider"`
	Mode     string        `json:"mode"` // "verify" or "discover"
	Status   OutcomeStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	CostUSD  float64       `json:"cost_usd"`
}

// ContactField is a single reach value with confidence and audit trail.
// Invariant: Provenance verified/discovered implies Confidence > 0 and a
// non-empty Chain; unverified implies Confidence == 0.
type ContactField struct {
	Value      string          `json:"value,omitempty"`
	Confidence int             `json:"confidence"` // 0-100
	Provenance Provenance      `json:"provenance"`
	Chain      []SourceAttempt `json:"chain,omitempty"`
}

// Established reports whether the field carries a usable value.
func (f ContactField) Established() bool {
	return f.Provenance == ProvenanceVerified || f.Provenance == ProvenanceDiscovered
}

// BuyerRole is a person's function within a buying decision.
type BuyerRole string

const (
	RoleDecision     BuyerRole = "decision"
	RoleChampion     BuyerRole = "champion"
	RoleStakeholder  BuyerRole = "stakeholder"
	RoleBlocker      BuyerRole = "blocker"
	RoleUnclassified BuyerRole = ""
)

// RefreshTier buckets a person by departure risk into a re-check cadence.
type RefreshTier string

const (
	TierRed    RefreshTier = "red"    // daily
	TierOrange RefreshTier = "orange" // weekly
	TierGreen  RefreshTier = "green"  // monthly
)

// Interval returns the re-check cadence for the tier.
func (t RefreshTier) Interval() time.Duration {
	switch t {
	case TierRed:
		return 24 * time.Hour
	case TierOrange:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// Person is a buyer-group candidate or member at a company.
type Person struct {
	ID             string         `json:"id"`
	ProfileID      string         `json:"profile_id"` // stable external profile identifier
	Name           string         `json:"name"`
	CompanyID      string         `json:"company_id"`
	Title          string         `json:"title"`
	Department     string         `json:"department,omitempty"`
	Role           BuyerRole      `json:"role,omitempty"`
	Rank           int            `json:"rank,omitempty"` // organizational rank, 1 = most senior
	Member         bool           `json:"member"`
	Tier           RefreshTier    `json:"tier"`
	ChurnRisk      int            `json:"churn_risk"` // 0-100
	History        []RoleInterval `json:"history,omitempty"`
	Email          ContactField   `json:"email"`
	Phone          ContactField   `json:"phone"`
	LastVerifiedAt time.Time      `json:"last_verified_at"`
	NextRefreshAt  time.Time      `json:"next_refresh_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DueFor reports whether the person is eligible for a sweep at now.
func (p *Person) DueFor(now time.Time) bool {
	return !now.Before(p.NextRefreshAt)
}

// ScheduleNext recomputes the refresh bookkeeping after a completed refresh.
// NextRefreshAt is always LastVerifiedAt + tier interval.
func (p *Person) ScheduleNext(verifiedAt time.Time) {
	p.LastVerifiedAt = verifiedAt
	p.NextRefreshAt = verifiedAt.Add(p.Tier.Interval())
}

// RoleInterval is one completed or current stint in a person's career history.
type RoleInterval struct {
	Company  string        `json:"company"`
	Title    string        `json:"title"`
	Duration time.Duration `json:"duration"`
	Current  bool          `json:"current"`
}
