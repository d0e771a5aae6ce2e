package engine

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// fallbackAction is used when a score lands outside every configured
// band. That only happens with a gapped decision table; the load-time
// validator rejects those, but the engine still fails closed.
const fallbackAction = "hold transaction and escalate immediately"

// Decide maps a composite score to an alert tier, recommended action,
// regulatory flags, and the final decision. Tier selection takes the
// first configured band containing the score; the last band is
// inclusive at its upper bound so 100 has a home. A score no band
// claims resolves to CRITICAL: a broken decision table must block, not
// approve.
func Decide(compositeScore, amount float64, reportingThreshold float64, rules domain.DecisionRules) domain.Alert {
	tier, action := selectTier(compositeScore, rules.Tiers)

	return domain.Alert{
		Tier:   tier,
		Action: action,
		// CTR is amount-driven, irrespective of the risk score.
		// Inclusive at the threshold.
		CTRRequired: amount >= reportingThreshold,
		// SAR consideration is score-driven, irrespective of amount.
		SARConsideration: rules.SARThreshold != nil && compositeScore >= *rules.SARThreshold,
		Decision:         decisionForTier(tier),
	}
}

func selectTier(score float64, tiers []domain.TierBand) (domain.AlertTier, string) {
	for i, band := range tiers {
		if score >= band.Min && score < band.Max {
			return band.Tier, band.Action
		}
		// The final band also owns its upper bound.
		if i == len(tiers)-1 && score == band.Max {
			return band.Tier, band.Action
		}
	}

	for _, band := range tiers {
		if band.Tier == domain.AlertTierCritical {
			return domain.AlertTierCritical, band.Action
		}
	}
	return domain.AlertTierCritical, fallbackAction
}

// decisionForTier derives the final decision from the tier alone, so a
// tier boundary change is purely a configuration edit.
func decisionForTier(tier domain.AlertTier) domain.Decision {
	switch tier {
	case domain.AlertTierCritical:
		return domain.DecisionBlock
	case domain.AlertTierHigh:
		return domain.DecisionReview
	default:
		return domain.DecisionApprove
	}
}
