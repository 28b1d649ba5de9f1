// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mode

import "fmt"

// BudgetCheck is the advisory result of validating an estimated token
// load against a mode budget. It never blocks a request; it informs
// logging and response warnings.
type BudgetCheck struct {
	Valid          bool    `json:"valid"`
	UtilizationPct float64 `json:"utilization_pct"`
	Warning        string  `json:"warning,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// ValidateTokenBudget checks an estimated total token count against the
// budget. Utilization above 90% produces a warning; above 100% the
// check is invalid and carries a recommendation, but callers still
// proceed — the model enforces its own hard limits.
func ValidateTokenBudget(estimatedTokens int, budget TokenBudget) BudgetCheck {
	if budget.MaxTotal <= 0 {
		return BudgetCheck{Valid: true}
	}

	pct := float64(estimatedTokens) / float64(budget.MaxTotal) * 100

	check := BudgetCheck{
		Valid:          estimatedTokens <= budget.MaxTotal,
		UtilizationPct: pct,
	}
	switch {
	case pct > 100:
		check.Warning = fmt.Sprintf("estimated %d tokens exceeds budget of %d", estimatedTokens, budget.MaxTotal)
		check.Recommendation = "narrow the time range or reduce the number of stores"
	case pct > 90:
		check.Warning = fmt.Sprintf("estimated %d tokens is at %.0f%% of budget", estimatedTokens, pct)
	}
	return check
}

// EstimateTokens approximates the token count of a text block. Four
// bytes per token is the usual planning heuristic for English prose and
// JSON rows.
func EstimateTokens(text string) int {
	return len(text) / 4
}
