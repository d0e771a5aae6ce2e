package engine

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Aggregate combines the three component scores into the composite
// using the configured weights, then applies the structuring escalation
// penalty. Structuring is treated as a near-disqualifying signal: a
// fixed penalty on top of the weighted sum, applied exactly once per
// screening no matter how many candidates were found. The result is
// clipped to [0,100].
func Aggregate(customer, transaction, geographic float64, structuringDetected bool, rules domain.AggregationRules) float64 {
	score := customer*rules.CustomerWeight +
		transaction*rules.TransactionWeight +
		geographic*rules.GeographicWeight

	if structuringDetected && rules.StructuringPenalty != nil {
		score += *rules.StructuringPenalty
	}

	if score > domain.ScoreMax {
		return domain.ScoreMax
	}
	if score < domain.ScoreMin {
		return domain.ScoreMin
	}
	return score
}
