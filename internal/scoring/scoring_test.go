package scoring

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testRuleset() *domain.Ruleset {
	return domain.DefaultRuleset()
}

func TestScoreCustomer(t *testing.T) {
	rules := testRuleset().Customer

	t.Run("EmptyProfile", func(t *testing.T) {
		result := ScoreCustomer(domain.CustomerProfile{ID: "cust-001"}, rules)
		if result.Score != 0 {
			t.Errorf("expected score 0 for empty profile, got %.2f", result.Score)
		}
		if len(result.Factors) != 0 {
			t.Errorf("expected no factors, got %v", result.Factors)
		}
	})

	t.Run("FactorsCompound", func(t *testing.T) {
		profile := domain.CustomerProfile{
			ID:             "cust-002",
			Country:        "IR",
			PEP:            true,
			Industry:       "casino",
			AdverseMedia:   true,
			AccountAgeDays: 45,
		}
		result := ScoreCustomer(profile, rules)

		// 30 + 25 + 20 + 15 + 10 = 100
		if result.Score != 100 {
			t.Errorf("expected compounded score 100, got %.2f", result.Score)
		}
		if len(result.Factors) != 5 {
			t.Errorf("expected 5 factors, got %d", len(result.Factors))
		}
	})

	t.Run("CapAt100", func(t *testing.T) {
		boosted := rules
		boosted.PEPPoints = 80
		boosted.HighRiskCountryPoints = 80

		result := ScoreCustomer(domain.CustomerProfile{Country: "KP", PEP: true}, boosted)
		if result.Score != 100 {
			t.Errorf("expected capped score 100, got %.2f", result.Score)
		}
	})

	t.Run("UnknownTenureIsNotNew", func(t *testing.T) {
		result := ScoreCustomer(domain.CustomerProfile{ID: "cust-003"}, rules)
		for _, f := range result.Factors {
			if f.Code == FactorNewCustomer {
				t.Error("zero account age must not score as new customer")
			}
		}
	})

	t.Run("TenureBoundary", func(t *testing.T) {
		at := ScoreCustomer(domain.CustomerProfile{AccountAgeDays: 90}, rules)
		if at.Score != 0 {
			t.Errorf("90-day account should not be new, got score %.2f", at.Score)
		}
		under := ScoreCustomer(domain.CustomerProfile{AccountAgeDays: 89}, rules)
		if under.Score != rules.NewCustomerPoints {
			t.Errorf("89-day account should be new, got score %.2f", under.Score)
		}
	})

	t.Run("Monotonicity", func(t *testing.T) {
		base := domain.CustomerProfile{Country: "DE", Industry: "retail", AccountAgeDays: 400}
		without := ScoreCustomer(base, rules)

		flagged := base
		flagged.PEP = true
		with := ScoreCustomer(flagged, rules)

		if with.Score < without.Score {
			t.Errorf("toggling PEP decreased score: %.2f -> %.2f", without.Score, with.Score)
		}
	})
}

func TestScoreTransaction(t *testing.T) {
	rules := testRuleset().Transaction

	cases := []struct {
		name string
		tx   domain.Transaction
		want float64
	}{
		{"Plain", domain.Transaction{Amount: 123.45}, 0},
		{"Cash", domain.Transaction{Amount: 123.45, Cash: true}, 20},
		{"International", domain.Transaction{Amount: 123.45, International: true}, 15},
		{"Crypto", domain.Transaction{Amount: 123.45, Crypto: true}, 20},
		{"AtReportingThreshold", domain.Transaction{Amount: 10000}, 25 + 10}, // also a round amount
		{"AboveThresholdNotRound", domain.Transaction{Amount: 10500.50}, 25},
		{"RoundAmount", domain.Transaction{Amount: 9000}, 10},
		{"RoundBelowThousand", domain.Transaction{Amount: 500}, 0},
		{"Everything", domain.Transaction{Amount: 20000, Cash: true, International: true, Crypto: true}, 90},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ScoreTransaction(tc.tx, rules)
			if result.Score != tc.want {
				t.Errorf("expected score %.2f, got %.2f (factors %v)", tc.want, result.Score, result.Factors)
			}
			if result.Score < 0 || result.Score > 100 {
				t.Errorf("score %.2f out of range", result.Score)
			}
		})
	}

	t.Run("Monotonicity", func(t *testing.T) {
		base := domain.Transaction{Amount: 2500.75, Timestamp: time.Now()}
		without := ScoreTransaction(base, rules)

		flagged := base
		flagged.Cash = true
		with := ScoreTransaction(flagged, rules)

		if with.Score < without.Score {
			t.Errorf("toggling cash decreased score: %.2f -> %.2f", without.Score, with.Score)
		}
	})
}

func TestScoreGeographic(t *testing.T) {
	rules := testRuleset().Geographic

	t.Run("Unlisted", func(t *testing.T) {
		result := ScoreGeographic([]string{"DE", "FR"}, rules)
		if result.Score != 0 {
			t.Errorf("expected 0 for unlisted countries, got %.2f", result.Score)
		}
	})

	t.Run("Greylist", func(t *testing.T) {
		result := ScoreGeographic([]string{"PA"}, rules)
		if result.Score != rules.GreylistPoints {
			t.Errorf("expected %.2f, got %.2f", rules.GreylistPoints, result.Score)
		}
	})

	t.Run("BlacklistOutranksGreylist", func(t *testing.T) {
		both := rules
		both.Greylist = append([]string{"IR"}, both.Greylist...)

		result := ScoreGeographic([]string{"IR"}, both)
		if result.Score != both.BlacklistPoints {
			t.Errorf("expected blacklist points %.2f, got %.2f", both.BlacklistPoints, result.Score)
		}
	})

	t.Run("MultipleCountriesCompound", func(t *testing.T) {
		result := ScoreGeographic([]string{"IR", "PA"}, rules)
		want := rules.BlacklistPoints + rules.GreylistPoints
		if result.Score != want {
			t.Errorf("expected compounded %.2f, got %.2f", want, result.Score)
		}
	})

	t.Run("CapAt100", func(t *testing.T) {
		result := ScoreGeographic([]string{"IR", "KP", "SY"}, rules)
		if result.Score != 100 {
			t.Errorf("expected capped 100, got %.2f", result.Score)
		}
		if len(result.Factors) != 3 {
			t.Errorf("expected all 3 factors recorded, got %d", len(result.Factors))
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		result := ScoreGeographic([]string{"ir"}, rules)
		if result.Score != rules.BlacklistPoints {
			t.Errorf("expected case-insensitive match, got %.2f", result.Score)
		}
	})
}
