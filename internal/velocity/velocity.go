// Package velocity provides rolling window transaction velocity checks
// and the history retrieval service backing them.
package velocity

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Check evaluates the rolling window count and amount limits over the
// current transaction plus its recent history. The window ends at the
// current transaction's timestamp and is inclusive at its far edge,
// matching the structuring window semantics. Violations surface as
// independent flags consumed by escalation logic only; they carry no
// weight in the composite score, so a breach can never be diluted into
// an average.
func Check(tx domain.Transaction, history domain.RecentHistory, rules domain.VelocityRules) (domain.VelocityFinding, error) {
	finding := domain.VelocityFinding{WindowHours: rules.WindowHours}

	if tx.Timestamp.IsZero() {
		return finding, fmt.Errorf("%w: transaction %s has no timestamp", domain.ErrInputFormat, tx.ID)
	}

	cutoff := tx.Timestamp.Add(-time.Duration(rules.WindowHours) * time.Hour)

	finding.Count = 1
	finding.TotalAmount = tx.Amount
	for _, prior := range history {
		if prior.Timestamp.IsZero() {
			return finding, fmt.Errorf("%w: history entry %s has no timestamp", domain.ErrInputFormat, prior.ID)
		}
		if prior.Timestamp.Before(cutoff) || prior.Timestamp.After(tx.Timestamp) {
			continue
		}
		finding.Count++
		finding.TotalAmount += prior.Amount
	}

	if rules.MaxDailyCount > 0 && finding.Count > rules.MaxDailyCount {
		finding.Violations = append(finding.Violations, domain.VelocityRuleMaxCount)
	}
	if rules.MaxDailyAmount > 0 && finding.TotalAmount > rules.MaxDailyAmount {
		finding.Violations = append(finding.Violations, domain.VelocityRuleMaxAmount)
	}

	return finding, nil
}
