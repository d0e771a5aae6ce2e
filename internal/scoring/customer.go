package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ScoreCustomer evaluates the customer risk factors against the
// configured point table. Each independently true condition adds its
// fixed points; the total is capped at 100.
func ScoreCustomer(profile domain.CustomerProfile, rules domain.CustomerRules) domain.ComponentScore {
	var result domain.ComponentScore

	add := func(code string, points float64) {
		result.Score += points
		result.Factors = append(result.Factors, domain.Factor{Code: code, Points: points})
	}

	if profile.Country != "" && inList(rules.HighRiskCountries, profile.Country) {
		add(FactorHighRiskCountry, rules.HighRiskCountryPoints)
	}
	if profile.PEP {
		add(FactorPEP, rules.PEPPoints)
	}
	if profile.Industry != "" && inList(rules.HighRiskIndustries, profile.Industry) {
		add(FactorHighRiskIndustry, rules.HighRiskIndustryPoints)
	}
	if profile.AdverseMedia {
		add(FactorAdverseMedia, rules.AdverseMediaPoints)
	}
	// Unknown tenure (zero) is not treated as new: absent inputs
	// default to zero risk.
	if profile.AccountAgeDays > 0 && profile.AccountAgeDays < rules.NewCustomerMaxAgeDays {
		add(FactorNewCustomer, rules.NewCustomerPoints)
	}

	result.Score = capScore(result.Score)
	return result
}
