package domain

import (
	"fmt"
	"time"
)

// Ruleset is the immutable rule configuration snapshot the screening
// engine evaluates against. It is loaded once, validated as a whole, and
// shared read-only by every concurrent screening. Reload replaces the
// whole snapshot atomically; fields are never mutated in place.
type Ruleset struct {
	Version  string `json:"version"`
	TenantID string `json:"tenantId,omitempty"`

	Customer    CustomerRules    `json:"customer"`
	Transaction TransactionRules `json:"transaction"`
	Geographic  GeographicRules  `json:"geographic"`
	Structuring StructuringRules `json:"structuring"`
	Velocity    VelocityRules    `json:"velocity"`
	RedFlags    RedFlagRules     `json:"redFlags"`
	Aggregation AggregationRules `json:"aggregation"`
	Decision    DecisionRules    `json:"decision"`

	// CustomRules are optional CEL expressions evaluated as additional
	// red flag checks. Compiled at load time; a compile failure fails
	// the whole snapshot.
	CustomRules []CustomRule `json:"customRules,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// CustomerRules holds the customer scorer point table.
type CustomerRules struct {
	HighRiskCountries  []string `json:"highRiskCountries"`
	HighRiskIndustries []string `json:"highRiskIndustries"`

	HighRiskCountryPoints  float64 `json:"highRiskCountryPoints"`
	PEPPoints              float64 `json:"pepPoints"`
	HighRiskIndustryPoints float64 `json:"highRiskIndustryPoints"`
	AdverseMediaPoints     float64 `json:"adverseMediaPoints"`
	NewCustomerPoints      float64 `json:"newCustomerPoints"`

	// NewCustomerMaxAgeDays is the tenure below which an account is
	// treated as new. Default 90.
	NewCustomerMaxAgeDays int `json:"newCustomerMaxAgeDays"`
}

// TransactionRules holds the transaction scorer point table.
type TransactionRules struct {
	CashPoints          float64 `json:"cashPoints"`
	InternationalPoints float64 `json:"internationalPoints"`
	CryptoPoints        float64 `json:"cryptoPoints"`
	LargeAmountPoints   float64 `json:"largeAmountPoints"`
	RoundAmountPoints   float64 `json:"roundAmountPoints"`

	// ReportingThreshold is the regulatory reporting amount. Also the
	// anchor for the structuring band and the CTR flag.
	ReportingThreshold float64 `json:"reportingThreshold"`
}

// GeographicRules holds the country list penalties.
type GeographicRules struct {
	Blacklist []string `json:"blacklist"`
	Greylist  []string `json:"greylist"`

	BlacklistPoints float64 `json:"blacklistPoints"`
	GreylistPoints  float64 `json:"greylistPoints"`
}

// StructuringRules parameterizes threshold avoidance detection.
type StructuringRules struct {
	// LookbackHours is the history window measured back from the
	// evaluated transaction's timestamp. Inclusive at the boundary.
	LookbackHours int `json:"lookbackHours"`

	// MinOccurrences is the candidate count at which structuring is
	// flagged. Default 3.
	MinOccurrences int `json:"minOccurrences"`
}

// VelocityRules holds the rolling window limits.
type VelocityRules struct {
	WindowHours    int     `json:"windowHours"`
	MaxDailyCount  int     `json:"maxDailyCount"`
	MaxDailyAmount float64 `json:"maxDailyAmount"`
}

// RedFlagRules parameterizes the heuristic anomaly checks.
type RedFlagRules struct {
	// UnusualVolumeMultiplier flags amounts above this multiple of the
	// customer's historical average. Default 5.
	UnusualVolumeMultiplier float64 `json:"unusualVolumeMultiplier"`

	// RapidMovementMultiplier flags recent history sums above this
	// multiple of the customer's monthly volume. Default 3.
	RapidMovementMultiplier float64 `json:"rapidMovementMultiplier"`

	UnusualVolumeSeverity string `json:"unusualVolumeSeverity"`
	RapidMovementSeverity string `json:"rapidMovementSeverity"`
}

// AggregationRules holds the composite score weights.
type AggregationRules struct {
	CustomerWeight    float64 `json:"customerWeight"`
	TransactionWeight float64 `json:"transactionWeight"`
	GeographicWeight  float64 `json:"geographicWeight"`

	// StructuringPenalty is added once to the weighted sum when
	// structuring is detected. Omitted means 25; an explicit zero
	// disables the escalation.
	StructuringPenalty *float64 `json:"structuringPenalty,omitempty"`
}

// DecisionRules maps composite scores to alert tiers.
type DecisionRules struct {
	// Tiers is the ordered list of score bands. Selection takes the
	// first band containing the score; a gap resolves to CRITICAL.
	Tiers []TierBand `json:"tiers"`

	// SARThreshold is the composite score at which SAR consideration
	// is flagged. Omitted means 60; an explicit zero flags SAR
	// consideration on every screening.
	SARThreshold *float64 `json:"sarThreshold,omitempty"`
}

// TierBand maps a half-open score interval [Min, Max) to an alert tier
// and its recommended action. The final band additionally matches a
// score exactly equal to its upper bound so that 100 has a home.
type TierBand struct {
	Tier   AlertTier `json:"tier"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Action string    `json:"action"`
}

// CustomRule is an operator-authored CEL red flag check. The expression
// must return a bool; true raises a red flag with the given severity.
type CustomRule struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Severity   string `json:"severity"`
	Enabled    bool   `json:"enabled"`
}

// Scores and contributions are clamped to this range.
const (
	ScoreMin = 0.0
	ScoreMax = 100.0
)

// DefaultRuleset returns a complete ruleset with conventional AML
// defaults. Intended for local development and as the fallback when no
// ruleset document is stored.
func DefaultRuleset() *Ruleset {
	rs := &Ruleset{
		Version: "default-1",
		Customer: CustomerRules{
			HighRiskCountries:      []string{"IR", "KP", "MM", "SY"},
			HighRiskIndustries:     []string{"casino", "money_services", "crypto_exchange", "precious_metals"},
			HighRiskCountryPoints:  30,
			PEPPoints:              25,
			HighRiskIndustryPoints: 20,
			AdverseMediaPoints:     15,
			NewCustomerPoints:      10,
		},
		Transaction: TransactionRules{
			CashPoints:          20,
			InternationalPoints: 15,
			CryptoPoints:        20,
			LargeAmountPoints:   25,
			RoundAmountPoints:   10,
			ReportingThreshold:  10000,
		},
		Geographic: GeographicRules{
			Blacklist:       []string{"IR", "KP", "SY"},
			Greylist:        []string{"PA", "AE", "TR", "KY"},
			BlacklistPoints: 60,
			GreylistPoints:  25,
		},
		Structuring: StructuringRules{
			LookbackHours: 72,
		},
		Velocity: VelocityRules{
			MaxDailyCount:  10,
			MaxDailyAmount: 50000,
		},
		Decision: DecisionRules{
			Tiers: []TierBand{
				{Tier: AlertTierLow, Min: 0, Max: 30, Action: "auto-clear"},
				{Tier: AlertTierMedium, Min: 30, Max: 60, Action: "queue for periodic review"},
				{Tier: AlertTierHigh, Min: 60, Max: 80, Action: "escalate to analyst"},
				{Tier: AlertTierCritical, Min: 80, Max: 100, Action: "hold transaction and open case"},
			},
		},
	}
	rs.ApplyDefaults()
	return rs
}

// ApplyDefaults fills omitted numeric knobs with their documented
// defaults. Decision tiers are deliberately excluded: a missing decision
// table is a configuration error, never a silent default.
func (r *Ruleset) ApplyDefaults() {
	if r.Customer.NewCustomerMaxAgeDays == 0 {
		r.Customer.NewCustomerMaxAgeDays = 90
	}
	if r.Structuring.LookbackHours == 0 {
		r.Structuring.LookbackHours = 72
	}
	if r.Structuring.MinOccurrences == 0 {
		r.Structuring.MinOccurrences = 3
	}
	if r.Velocity.WindowHours == 0 {
		r.Velocity.WindowHours = 24
	}
	if r.RedFlags.UnusualVolumeMultiplier == 0 {
		r.RedFlags.UnusualVolumeMultiplier = 5
	}
	if r.RedFlags.RapidMovementMultiplier == 0 {
		r.RedFlags.RapidMovementMultiplier = 3
	}
	if r.RedFlags.UnusualVolumeSeverity == "" {
		r.RedFlags.UnusualVolumeSeverity = "high"
	}
	if r.RedFlags.RapidMovementSeverity == "" {
		r.RedFlags.RapidMovementSeverity = "medium"
	}
	if r.Aggregation.CustomerWeight == 0 && r.Aggregation.TransactionWeight == 0 && r.Aggregation.GeographicWeight == 0 {
		r.Aggregation.CustomerWeight = 0.30
		r.Aggregation.TransactionWeight = 0.35
		r.Aggregation.GeographicWeight = 0.35
	}
	// Pointer fields distinguish "omitted" from an explicit zero, so an
	// operator can genuinely configure a zero penalty or threshold.
	if r.Aggregation.StructuringPenalty == nil {
		r.Aggregation.StructuringPenalty = Float(25)
	}
	if r.Decision.SARThreshold == nil {
		r.Decision.SARThreshold = Float(60)
	}
}

// Float returns a pointer to v, for the optional ruleset knobs.
func Float(v float64) *float64 {
	return &v
}

// Validate checks the snapshot for structural errors. The decision
// table is held to the strictest standard: bands must be ordered,
// non-overlapping, and cover [0,100] with no gaps.
func (r *Ruleset) Validate() error {
	if r.Transaction.ReportingThreshold <= 0 {
		return fmt.Errorf("%w: transaction.reportingThreshold must be positive", ErrConfiguration)
	}
	if r.Structuring.MinOccurrences < 1 {
		return fmt.Errorf("%w: structuring.minOccurrences must be at least 1", ErrConfiguration)
	}
	if r.Structuring.LookbackHours < 1 {
		return fmt.Errorf("%w: structuring.lookbackHours must be at least 1", ErrConfiguration)
	}
	if r.Velocity.WindowHours < 1 {
		return fmt.Errorf("%w: velocity.windowHours must be at least 1", ErrConfiguration)
	}
	if p := r.Aggregation.StructuringPenalty; p != nil && *p < 0 {
		return fmt.Errorf("%w: aggregation.structuringPenalty must not be negative", ErrConfiguration)
	}
	if t := r.Decision.SARThreshold; t != nil && *t < 0 {
		return fmt.Errorf("%w: decision.sarThreshold must not be negative", ErrConfiguration)
	}

	tiers := r.Decision.Tiers
	if len(tiers) == 0 {
		return fmt.Errorf("%w: decision.tiers is empty", ErrConfiguration)
	}
	if tiers[0].Min != ScoreMin {
		return fmt.Errorf("%w: first decision tier must start at %.0f, got %.2f", ErrConfiguration, ScoreMin, tiers[0].Min)
	}
	for i, band := range tiers {
		if !band.Tier.Valid() {
			return fmt.Errorf("%w: unknown alert tier %q", ErrConfiguration, band.Tier)
		}
		if band.Max <= band.Min {
			return fmt.Errorf("%w: decision tier %s has empty interval [%.2f, %.2f)", ErrConfiguration, band.Tier, band.Min, band.Max)
		}
		if i > 0 && band.Min != tiers[i-1].Max {
			return fmt.Errorf("%w: decision tiers %s and %s leave a gap or overlap at %.2f", ErrConfiguration, tiers[i-1].Tier, band.Tier, band.Min)
		}
	}
	if last := tiers[len(tiers)-1]; last.Max < ScoreMax {
		return fmt.Errorf("%w: decision tiers end at %.2f, must cover up to %.0f", ErrConfiguration, last.Max, ScoreMax)
	}

	for _, cr := range r.CustomRules {
		if cr.ID == "" || cr.Expression == "" {
			return fmt.Errorf("%w: custom rule requires id and expression", ErrConfiguration)
		}
	}

	return nil
}
