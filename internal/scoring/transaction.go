package scoring

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ScoreTransaction evaluates the transaction risk factors against the
// configured point table. Same additive, capped policy as the customer
// scorer.
func ScoreTransaction(tx domain.Transaction, rules domain.TransactionRules) domain.ComponentScore {
	var result domain.ComponentScore

	add := func(code string, points float64) {
		result.Score += points
		result.Factors = append(result.Factors, domain.Factor{Code: code, Points: points})
	}

	if tx.Cash {
		add(FactorCash, rules.CashPoints)
	}
	if tx.International {
		add(FactorInternational, rules.InternationalPoints)
	}
	if tx.Crypto {
		add(FactorCrypto, rules.CryptoPoints)
	}
	// Inclusive comparison: an amount exactly at the threshold is
	// reportable.
	if tx.Amount >= rules.ReportingThreshold {
		add(FactorLargeAmount, rules.LargeAmountPoints)
	}
	if isRoundAmount(tx.Amount) {
		add(FactorRoundAmount, rules.RoundAmountPoints)
	}

	result.Score = capScore(result.Score)
	return result
}

// isRoundAmount reports whether the amount is a nonzero exact multiple
// of 1000, a common marker of manufactured transactions.
func isRoundAmount(amount float64) bool {
	return amount != 0 && math.Mod(amount, 1000) == 0
}
