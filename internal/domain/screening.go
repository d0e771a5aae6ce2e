package domain

import (
	"time"
)

// AlertTier is the ordered alert severity assigned by the decision
// engine.
type AlertTier string

const (
	AlertTierLow      AlertTier = "LOW"
	AlertTierMedium   AlertTier = "MEDIUM"
	AlertTierHigh     AlertTier = "HIGH"
	AlertTierCritical AlertTier = "CRITICAL"
)

// Valid reports whether the tier is one of the known severities.
func (t AlertTier) Valid() bool {
	switch t {
	case AlertTierLow, AlertTierMedium, AlertTierHigh, AlertTierCritical:
		return true
	}
	return false
}

// Decision is the final three-way outcome of a screening.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReview  Decision = "REVIEW"
	DecisionBlock   Decision = "BLOCK"
)

// Factor records one additive contribution to a component score.
type Factor struct {
	Code   string  `json:"code"`
	Points float64 `json:"points"`
}

// ComponentScore is the output of one scorer: a capped additive score
// plus the factors that produced it.
type ComponentScore struct {
	Score   float64  `json:"score"`
	Factors []Factor `json:"factors,omitempty"`
}

// StructuringFinding reports threshold avoidance analysis.
type StructuringFinding struct {
	Detected bool `json:"detected"`

	// Occurrences is the number of near-threshold transactions in the
	// lookback window, current transaction included when it qualifies.
	Occurrences int `json:"occurrences"`

	// TotalAmount sums the qualifying amounts, for investigator context.
	TotalAmount float64 `json:"totalAmount"`

	WindowHours int `json:"windowHours"`
}

// Velocity rule identifiers reported in VelocityFinding.Violations.
const (
	VelocityRuleMaxCount  = "max_daily_count"
	VelocityRuleMaxAmount = "max_daily_amount"
)

// VelocityFinding reports rolling window limit checks. Violations are
// independent flags; they never feed the weighted composite score.
type VelocityFinding struct {
	Violations  []string `json:"violations,omitempty"`
	Count       int      `json:"count"`
	TotalAmount float64  `json:"totalAmount"`
	WindowHours int      `json:"windowHours"`
}

// RedFlag is a heuristic anomaly independent of the weighted score.
type RedFlag struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Detail   string `json:"detail,omitempty"`
}

// Alert is the decision engine output for one screening.
type Alert struct {
	Tier   AlertTier `json:"tier"`
	Action string    `json:"action"`

	// CTRRequired is set when the amount reaches the reporting
	// threshold, irrespective of the risk score.
	CTRRequired bool `json:"ctrRequired"`

	// SARConsideration is set when the composite score reaches the SAR
	// threshold.
	SARConsideration bool `json:"sarConsideration"`

	Decision Decision `json:"decision"`
}

// Screening is the complete structured result for one transaction.
type Screening struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenantId"`
	TxID       string  `json:"txId"`
	CustomerID string  `json:"customerId"`
	Amount     float64 `json:"amount"`

	CustomerScore    ComponentScore `json:"customerScore"`
	TransactionScore ComponentScore `json:"transactionScore"`
	GeographicScore  ComponentScore `json:"geographicScore"`

	CompositeScore float64 `json:"compositeScore"`

	Structuring StructuringFinding `json:"structuring"`
	Velocity    VelocityFinding    `json:"velocity"`
	RedFlags    []RedFlag          `json:"redFlags,omitempty"`

	Alert Alert `json:"alert"`

	Timestamp time.Time         `json:"timestamp"`
	Metadata  ScreeningMetadata `json:"metadata"`
}

// Signal sources reported in ScreeningMetadata.Degraded.
const (
	SignalHistory = "history"
	SignalProfile = "profile"
)

// ScreeningMetadata carries processing information.
type ScreeningMetadata struct {
	TraceID        string `json:"traceId,omitempty"`
	RulesetVersion string `json:"rulesetVersion,omitempty"`
	ScoringMs      int64  `json:"scoringMs"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion,omitempty"`

	// Degraded lists signal sources that could not be resolved for
	// this screening. A screening that lists "history" ran structuring
	// and velocity checks over no history; one that lists "profile"
	// scored the customer from an empty profile. The decision stands,
	// but auditors can see which signals were missing.
	Degraded []string `json:"degraded,omitempty"`
}
