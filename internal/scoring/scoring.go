// Package scoring implements the three independent additive risk
// scorers: customer, transaction, and geographic. Each scorer starts at
// zero, adds a configured point value per matched condition, and caps
// the total at 100. Risk factors compound rather than average, and the
// factor list records every contribution for the investigator.
//
// Missing optional inputs score zero. That fail-open policy is
// deliberate and documented; the decision engine is the fail-closed
// side of the asymmetry.
package scoring

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Factor codes reported by the scorers.
const (
	FactorHighRiskCountry  = "high_risk_country"
	FactorPEP              = "pep"
	FactorHighRiskIndustry = "high_risk_industry"
	FactorAdverseMedia     = "adverse_media"
	FactorNewCustomer      = "new_customer"

	FactorCash          = "cash"
	FactorInternational = "international_wire"
	FactorCrypto        = "crypto"
	FactorLargeAmount   = "large_amount"
	FactorRoundAmount   = "round_amount"
)

// capScore clamps an additive total to the score range.
func capScore(score float64) float64 {
	if score > domain.ScoreMax {
		return domain.ScoreMax
	}
	if score < domain.ScoreMin {
		return domain.ScoreMin
	}
	return score
}

// inList reports case-insensitive membership.
func inList(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
