package patterns

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Red flag codes reported by the built-in checks.
const (
	RedFlagUnusualVolume = "unusual_volume"
	RedFlagRapidMovement = "rapid_movement"
)

// DetectRedFlags runs the heuristic anomaly checks that sit outside the
// weighted score. Output order follows check order, not severity. A
// customer without historical baselines fails no checks: unknown
// baselines default to no risk.
func DetectRedFlags(tx domain.Transaction, profile domain.CustomerProfile, history domain.RecentHistory, rules domain.RedFlagRules) []domain.RedFlag {
	var flags []domain.RedFlag

	if profile.AvgTransactionAmount > 0 && tx.Amount > rules.UnusualVolumeMultiplier*profile.AvgTransactionAmount {
		flags = append(flags, domain.RedFlag{
			Code:     RedFlagUnusualVolume,
			Severity: rules.UnusualVolumeSeverity,
			Detail: fmt.Sprintf("amount %.2f exceeds %.0fx historical average %.2f",
				tx.Amount, rules.UnusualVolumeMultiplier, profile.AvgTransactionAmount),
		})
	}

	if profile.MonthlyVolume > 0 {
		var recent float64
		for _, prior := range history {
			recent += prior.Amount
		}
		if recent > rules.RapidMovementMultiplier*profile.MonthlyVolume {
			flags = append(flags, domain.RedFlag{
				Code:     RedFlagRapidMovement,
				Severity: rules.RapidMovementSeverity,
				Detail: fmt.Sprintf("recent volume %.2f exceeds %.0fx monthly average %.2f",
					recent, rules.RapidMovementMultiplier, profile.MonthlyVolume),
			})
		}
	}

	return flags
}
