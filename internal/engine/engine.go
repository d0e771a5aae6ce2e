// Package engine orchestrates a complete risk screening: the three
// additive scorers run in parallel, the temporal detectors run over the
// transaction plus recent history, and the aggregator and decision
// engine turn the signals into one structured result.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/patterns"
	"github.com/opensource-finance/kestrel/internal/ruleset"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Engine screens transactions against the active ruleset snapshot.
// Screening is a pure function of its inputs plus the snapshot: no
// I/O, no shared mutable state, safe for unbounded concurrent use.
type Engine struct {
	store   *ruleset.Store
	version string
}

// New creates a screening engine bound to a ruleset store.
func New(store *ruleset.Store, version string) *Engine {
	return &Engine{
		store:   store,
		version: version,
	}
}

// HistoryWindow returns the lookback needed to evaluate both the
// structuring and velocity rules of the active ruleset. Callers use it
// to size the history they fetch before screening.
func (e *Engine) HistoryWindow() time.Duration {
	rules := e.store.Snapshot().Rules
	hours := rules.Structuring.LookbackHours
	if rules.Velocity.WindowHours > hours {
		hours = rules.Velocity.WindowHours
	}
	return time.Duration(hours) * time.Hour
}

// Input is one screening request. The transaction, profile, and history
// are caller-owned and read-only; history must already be filtered to
// the transaction's customer.
type Input struct {
	Transaction domain.Transaction
	Profile     domain.CustomerProfile
	History     domain.RecentHistory
	TraceID     string
}

// Screen evaluates one transaction and returns the structured result.
// Malformed input timestamps fail the call with ErrInputFormat; the
// caller must treat that as "risk could not be assessed", never as an
// approval.
func (e *Engine) Screen(ctx context.Context, input *Input) (*domain.Screening, error) {
	start := time.Now()
	snap := e.store.Snapshot()
	rules := snap.Rules

	// The three scorers are independent; run them in parallel.
	var (
		wg               sync.WaitGroup
		customerScore    domain.ComponentScore
		transactionScore domain.ComponentScore
		geographicScore  domain.ComponentScore
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		customerScore = scoring.ScoreCustomer(input.Profile, rules.Customer)
	}()
	go func() {
		defer wg.Done()
		transactionScore = scoring.ScoreTransaction(input.Transaction, rules.Transaction)
	}()
	go func() {
		defer wg.Done()
		geographicScore = scoring.ScoreGeographic(input.Transaction.Countries, rules.Geographic)
	}()
	wg.Wait()

	scoringMs := time.Since(start).Milliseconds()

	structuring, err := patterns.DetectStructuring(input.Transaction, input.History, rules.Structuring, rules.Transaction.ReportingThreshold)
	if err != nil {
		return nil, err
	}

	velocityFinding, err := velocity.Check(input.Transaction, input.History, rules.Velocity)
	if err != nil {
		return nil, err
	}

	redFlags := patterns.DetectRedFlags(input.Transaction, input.Profile, input.History, rules.RedFlags)
	redFlags = append(redFlags, snap.Custom.Evaluate(input.Transaction, input.Profile, input.History)...)

	composite := Aggregate(customerScore.Score, transactionScore.Score, geographicScore.Score, structuring.Detected, rules.Aggregation)
	alert := Decide(composite, input.Transaction.Amount, rules.Transaction.ReportingThreshold, rules.Decision)

	return &domain.Screening{
		ID:         uuid.New().String(),
		TenantID:   input.Transaction.TenantID,
		TxID:       input.Transaction.ID,
		CustomerID: input.Transaction.CustomerID,
		Amount:     input.Transaction.Amount,

		CustomerScore:    customerScore,
		TransactionScore: transactionScore,
		GeographicScore:  geographicScore,
		CompositeScore:   composite,

		Structuring: structuring,
		Velocity:    velocityFinding,
		RedFlags:    redFlags,

		Alert: alert,

		Timestamp: time.Now().UTC(),
		Metadata: domain.ScreeningMetadata{
			TraceID:        input.TraceID,
			RulesetVersion: rules.Version,
			ScoringMs:      scoringMs,
			TotalMs:        time.Since(start).Milliseconds(),
			EngineVersion:  e.version,
		},
	}, nil
}

// ShouldAlert reports whether a screening requires follow-up by the
// case management layer.
func ShouldAlert(s *domain.Screening) bool {
	return s.Alert.Decision != domain.DecisionApprove
}
