package engine

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func defaultDecisionRules() domain.DecisionRules {
	return domain.DefaultRuleset().Decision
}

func TestSelectTier(t *testing.T) {
	tiers := defaultDecisionRules().Tiers

	cases := []struct {
		score float64
		want  domain.AlertTier
	}{
		{0, domain.AlertTierLow},
		{29.999, domain.AlertTierLow},
		{30, domain.AlertTierMedium},
		{59.999, domain.AlertTierMedium},
		{60, domain.AlertTierHigh},
		{79.999, domain.AlertTierHigh},
		{80, domain.AlertTierCritical},
		{100, domain.AlertTierCritical}, // upper bound of the final band
	}

	for _, tc := range cases {
		tier, action := selectTier(tc.score, tiers)
		if tier != tc.want {
			t.Errorf("score %.3f: expected tier %s, got %s", tc.score, tc.want, tier)
		}
		if action == "" {
			t.Errorf("score %.3f: expected a configured action", tc.score)
		}
	}
}

func TestSelectTierGappedConfigFailsClosed(t *testing.T) {
	// A gapped table never passes load-time validation, but selection
	// must still fail closed if one slips through.
	gapped := []domain.TierBand{
		{Tier: domain.AlertTierLow, Min: 0, Max: 30, Action: "auto-clear"},
		{Tier: domain.AlertTierHigh, Min: 50, Max: 80, Action: "escalate"},
	}

	tier, _ := selectTier(40, gapped)
	if tier != domain.AlertTierCritical {
		t.Errorf("expected CRITICAL for gap score, got %s", tier)
	}

	tier, _ = selectTier(95, gapped)
	if tier != domain.AlertTierCritical {
		t.Errorf("expected CRITICAL above all bands, got %s", tier)
	}
}

func TestDecide(t *testing.T) {
	rules := defaultDecisionRules()

	t.Run("RegulatoryFlagsIndependent", func(t *testing.T) {
		// Reportable amount, harmless score: CTR without SAR.
		alert := Decide(5, 10000, 10000, rules)
		if !alert.CTRRequired {
			t.Error("amount at threshold must set ctrRequired (inclusive boundary)")
		}
		if alert.SARConsideration {
			t.Error("low score must not set sarConsideration")
		}

		// High score, small amount: SAR without CTR.
		alert = Decide(75, 500, 10000, rules)
		if alert.CTRRequired {
			t.Error("small amount must not set ctrRequired")
		}
		if !alert.SARConsideration {
			t.Error("score above SAR threshold must set sarConsideration")
		}
	})

	t.Run("SARBoundaryInclusive", func(t *testing.T) {
		alert := Decide(60, 100, 10000, rules)
		if !alert.SARConsideration {
			t.Error("score exactly at SAR threshold must flag")
		}
	})

	t.Run("ZeroSARThresholdFlagsEveryScreening", func(t *testing.T) {
		strict := rules
		strict.SARThreshold = domain.Float(0)
		alert := Decide(0, 100, 10000, strict)
		if !alert.SARConsideration {
			t.Error("explicit zero SAR threshold must flag every screening")
		}
	})

	t.Run("DecisionFollowsTier", func(t *testing.T) {
		cases := []struct {
			score float64
			want  domain.Decision
		}{
			{10, domain.DecisionApprove},
			{45, domain.DecisionApprove},
			{70, domain.DecisionReview},
			{90, domain.DecisionBlock},
		}
		for _, tc := range cases {
			alert := Decide(tc.score, 100, 10000, rules)
			if alert.Decision != tc.want {
				t.Errorf("score %.0f: expected %s, got %s", tc.score, tc.want, alert.Decision)
			}
		}
	})
}

func TestAggregate(t *testing.T) {
	rules := domain.AggregationRules{
		CustomerWeight:     0.30,
		TransactionWeight:  0.35,
		GeographicWeight:   0.35,
		StructuringPenalty: domain.Float(25),
	}

	t.Run("WeightedSum", func(t *testing.T) {
		got := Aggregate(50, 40, 20, false, rules)
		want := 50*0.30 + 40*0.35 + 20*0.35
		if got != want {
			t.Errorf("expected %.2f, got %.2f", want, got)
		}
	})

	t.Run("EscalationAppliedOnce", func(t *testing.T) {
		plain := Aggregate(30, 30, 30, false, rules)
		escalated := Aggregate(30, 30, 30, true, rules)
		if escalated-plain != *rules.StructuringPenalty {
			t.Errorf("expected exactly one +%.0f escalation, got delta %.2f", *rules.StructuringPenalty, escalated-plain)
		}
	})

	t.Run("ZeroPenaltyDisablesEscalation", func(t *testing.T) {
		disabled := rules
		disabled.StructuringPenalty = domain.Float(0)
		plain := Aggregate(30, 30, 30, false, disabled)
		escalated := Aggregate(30, 30, 30, true, disabled)
		if escalated != plain {
			t.Errorf("zero penalty should not escalate: %.2f vs %.2f", escalated, plain)
		}
	})

	t.Run("ClampedToRange", func(t *testing.T) {
		if got := Aggregate(100, 100, 100, true, rules); got != 100 {
			t.Errorf("expected clamp at 100, got %.2f", got)
		}
		if got := Aggregate(0, 0, 0, false, rules); got != 0 {
			t.Errorf("expected 0, got %.2f", got)
		}
	})
}
