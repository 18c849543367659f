package core

import "github.com/shopspring/decimal"

// GoalStatus classifies monthly spend against a goal.
type GoalStatus string

const (
	UnderMinimum GoalStatus = "underMinimum"
	WithinGoal   GoalStatus = "withinGoal"
	OverMaximum  GoalStatus = "overMaximum"
)

// EvaluateGoal classifies spent against [min, max]. Exactly one status is
// returned for any input; for an inverted goal (min > max) spent < min takes
// precedence over spent > max.
func EvaluateGoal(spent, min, max decimal.Decimal) GoalStatus {
	switch {
	case spent.LessThan(min):
		return UnderMinimum
	case spent.GreaterThan(max):
		return OverMaximum
	default:
		return WithinGoal
	}
}

// GoalProgress is spent as a percentage of max, clamped to [0, 100].
func GoalProgress(spent, max decimal.Decimal) float64 {
	if !max.IsPositive() {
		return 0
	}
	pct, _ := spent.Div(max).Mul(decimal.NewFromInt(100)).Float64()
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
