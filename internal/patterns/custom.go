package patterns

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CustomRuleSet holds the compiled operator-defined red flag checks
// from a ruleset snapshot. It is immutable after compilation and safe
// for concurrent use.
type CustomRuleSet struct {
	rules []compiledRule
}

type compiledRule struct {
	config  domain.CustomRule
	program cel.Program
}

// CompileCustomRules compiles the enabled custom rules into CEL
// programs. Expressions must return bool. A compile failure fails the
// whole snapshot: a half-loaded rule table must never go live.
func CompileCustomRules(rules []domain.CustomRule) (*CustomRuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("cash", cel.BoolType),
		cel.Variable("international", cel.BoolType),
		cel.Variable("crypto", cel.BoolType),
		cel.Variable("countries", cel.ListType(cel.StringType)),
		cel.Variable("customer_country", cel.StringType),
		cel.Variable("pep", cel.BoolType),
		cel.Variable("industry", cel.StringType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("history_count", cel.IntType),
		cel.Variable("history_total", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	set := &CustomRuleSet{}
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: custom rule %s: %v", domain.ErrConfiguration, rule.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("%w: custom rule %s must return bool, got %s", domain.ErrConfiguration, rule.ID, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: custom rule %s: %v", domain.ErrConfiguration, rule.ID, err)
		}

		set.rules = append(set.rules, compiledRule{config: rule, program: program})
	}

	return set, nil
}

// Len returns the number of compiled rules.
func (s *CustomRuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Evaluate runs the compiled rules against one screening input and
// returns a red flag per matched rule, in rule order. Evaluation errors
// are logged and skipped; custom heuristics do not fail a screening.
func (s *CustomRuleSet) Evaluate(tx domain.Transaction, profile domain.CustomerProfile, history domain.RecentHistory) []domain.RedFlag {
	if s.Len() == 0 {
		return nil
	}

	var historyTotal float64
	for _, prior := range history {
		historyTotal += prior.Amount
	}

	countries := tx.Countries
	if countries == nil {
		countries = []string{}
	}

	activation := map[string]any{
		"amount":           tx.Amount,
		"currency":         tx.Currency,
		"cash":             tx.Cash,
		"international":    tx.International,
		"crypto":           tx.Crypto,
		"countries":        countries,
		"customer_country": profile.Country,
		"pep":              profile.PEP,
		"industry":         profile.Industry,
		"account_age_days": int64(profile.AccountAgeDays),
		"history_count":    int64(len(history)),
		"history_total":    historyTotal,
	}

	var flags []domain.RedFlag
	for _, rule := range s.rules {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			slog.Warn("custom rule evaluation failed",
				"rule_id", rule.config.ID,
				"error", err,
			)
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			flags = append(flags, domain.RedFlag{
				Code:     rule.config.ID,
				Severity: rule.config.Severity,
				Detail:   rule.config.Name,
			})
		}
	}

	return flags
}
