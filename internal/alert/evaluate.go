package alert

import "token-alert-bot/internal/types"

// Evaluate reports whether currentPrice satisfies the condition against target.
// A missing price never satisfies anything. When the price equals the target both
// conditions hold; each alert only checks its own.
func Evaluate(condition types.Condition, target float64, currentPrice *float64) bool {
	if currentPrice == nil {
		return false
	}

	switch condition {
	case types.ConditionAbove:
		return *currentPrice >= target
	case types.ConditionBelow:
		return *currentPrice <= target
	}
	return false
}
