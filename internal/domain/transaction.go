package domain

import (
	"time"
)

// Transaction represents a single transaction submitted for risk screening.
// Transactions are caller-owned and never mutated by the engine.
type Transaction struct {
	// Core identifiers
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	CustomerID string `json:"customerId"`

	// Financial details
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Temporal
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Channel flags
	Cash          bool `json:"cash"`
	International bool `json:"international"`
	Crypto        bool `json:"crypto"`

	// Countries touched by the transaction (origin, destination,
	// intermediaries). ISO 3166-1 alpha-2 codes.
	Countries []string `json:"countries,omitempty"`

	// Optional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CustomerProfile holds the customer attributes consulted during scoring.
// The profile is read-only for the duration of a screening call. Absent
// optional fields contribute zero risk rather than failing the evaluation.
type CustomerProfile struct {
	ID      string `json:"id"`
	Country string `json:"country,omitempty"`

	// PEP marks a Politically Exposed Person.
	PEP bool `json:"pep"`

	// AdverseMedia marks customers with negative news coverage.
	AdverseMedia bool `json:"adverseMedia"`

	Industry string `json:"industry,omitempty"`

	// AccountAgeDays is the account tenure. Zero means unknown.
	AccountAgeDays int `json:"accountAgeDays,omitempty"`

	// Historical baselines consulted by the red flag checks.
	// Zero means unknown and disables the corresponding check.
	AvgTransactionAmount float64 `json:"avgTransactionAmount,omitempty"`
	MonthlyVolume        float64 `json:"monthlyVolume,omitempty"`
}

// RecentHistory is the ordered set of prior transactions for the same
// customer, already filtered by the caller. The engine reads it but never
// mutates or persists it.
type RecentHistory []Transaction
