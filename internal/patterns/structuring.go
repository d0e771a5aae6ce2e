// Package patterns implements temporal pattern detection over a
// customer's recent transaction history: structuring (threshold
// avoidance), heuristic red flags, and operator-defined CEL checks.
package patterns

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Near-threshold band lower bound, as a fraction of the reporting
// threshold. Amounts in [bandFloor*threshold, threshold) count as
// threshold avoidance candidates.
const bandFloor = 0.8

// DetectStructuring inspects the current transaction plus recent
// history for deliberate threshold avoidance. A candidate is any
// transaction whose amount sits in the near-threshold band and whose
// timestamp falls within the lookback window ending at the current
// transaction's timestamp (inclusive at the far edge). Structuring is
// flagged when the candidate count reaches the configured minimum.
//
// History entries are assumed to belong to the same customer; that is
// the caller's responsibility. A missing timestamp on any input is a
// hard failure: silently dropping unparsable entries would be a
// false-negative compliance risk.
func DetectStructuring(tx domain.Transaction, history domain.RecentHistory, rules domain.StructuringRules, reportingThreshold float64) (domain.StructuringFinding, error) {
	finding := domain.StructuringFinding{WindowHours: rules.LookbackHours}

	if tx.Timestamp.IsZero() {
		return finding, fmt.Errorf("%w: transaction %s has no timestamp", domain.ErrInputFormat, tx.ID)
	}

	low := bandFloor * reportingThreshold
	cutoff := tx.Timestamp.Add(-time.Duration(rules.LookbackHours) * time.Hour)

	for _, prior := range history {
		if prior.Timestamp.IsZero() {
			return finding, fmt.Errorf("%w: history entry %s has no timestamp", domain.ErrInputFormat, prior.ID)
		}
		if prior.Timestamp.Before(cutoff) || prior.Timestamp.After(tx.Timestamp) {
			continue
		}
		if inBand(prior.Amount, low, reportingThreshold) {
			finding.Occurrences++
			finding.TotalAmount += prior.Amount
		}
	}

	if inBand(tx.Amount, low, reportingThreshold) {
		finding.Occurrences++
		finding.TotalAmount += tx.Amount
	}

	finding.Detected = finding.Occurrences >= rules.MinOccurrences
	return finding, nil
}

// inBand checks the half-open near-threshold interval [low, threshold).
func inBand(amount, low, threshold float64) bool {
	return amount >= low && amount < threshold
}
