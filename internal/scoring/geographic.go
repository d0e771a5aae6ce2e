package scoring

import (
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ScoreGeographic evaluates the countries touched by a transaction
// against the configured blacklist and greylist. Penalties are additive
// per country, so multiple flagged countries in one transaction
// compound, capped at 100. Unlisted countries add nothing.
func ScoreGeographic(countries []string, rules domain.GeographicRules) domain.ComponentScore {
	var result domain.ComponentScore

	for _, country := range countries {
		if country == "" {
			continue
		}
		switch {
		case inList(rules.Blacklist, country):
			result.Score += rules.BlacklistPoints
			result.Factors = append(result.Factors, domain.Factor{
				Code:   "blacklist:" + strings.ToUpper(country),
				Points: rules.BlacklistPoints,
			})
		case inList(rules.Greylist, country):
			result.Score += rules.GreylistPoints
			result.Factors = append(result.Factors, domain.Factor{
				Code:   "greylist:" + strings.ToUpper(country),
				Points: rules.GreylistPoints,
			})
		}
	}

	result.Score = capScore(result.Score)
	return result
}
