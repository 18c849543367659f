package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start Date
	End   Date
}

// NewDateRange parses two YYYY-MM-DD bounds.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	if s.After(e.Time) {
		return DateRange{}, ErrInvalidDateRange
	}
	return DateRange{Start: s, End: e}, nil
}

// MonthRange covers the first through the last day of a month.
func MonthRange(year, month int) DateRange {
	start := NewDate(year, month, 1)
	end := Date{Time: start.AddDate(0, 1, -1)}
	return DateRange{Start: start, End: end}
}

// Contains reports whether d lies within the range, bounds included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// inRange parses the transaction date; malformed dates are never in range.
func (r DateRange) inRange(date string) bool {
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	return r.Contains(d)
}

// SumByCategory totals expense amounts in rng per normalized category name.
// Categories without matching transactions are absent from the result.
func SumByCategory(txs []Transaction, rng DateRange) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if !t.IsExpense() || !rng.inRange(t.Date) {
			continue
		}
		key := NormalizeCategory(t.Category)
		out[key] = out[key].Add(t.Amount)
	}
	return out
}

// TotalSpent sums expense amounts in rng.
func TotalSpent(txs []Transaction, rng DateRange) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.IsExpense() && rng.inRange(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// TotalIncome sums income amounts in rng.
func TotalIncome(txs []Transaction, rng DateRange) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if !t.IsExpense() && rng.inRange(t.Date) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// InRange returns the transactions dated within rng, keeping their order.
func InRange(txs []Transaction, rng DateRange) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if rng.inRange(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

// CategoryBudget compares the spend of one category against its limit.
type CategoryBudget struct {
	Name      string          `json:"name"`
	Spent     decimal.Decimal `json:"spent"`
	Limit     decimal.Decimal `json:"limit"`
	Remaining decimal.Decimal `json:"remaining"`
	OverLimit bool            `json:"overLimit"`
}

// CategoryBudgets merges per-category spend with the user's categories. The
// result holds the union of both name sets; missing spend or limit is zero.
// Orphan categories (spend without a Category record) are kept.
func CategoryBudgets(spending map[string]decimal.Decimal, categories []Category) []CategoryBudget {
	limits := make(map[string]decimal.Decimal, len(categories))
	for _, c := range categories {
		limits[NormalizeCategory(c.Name)] = c.Limit
	}
	keys := make(map[string]struct{}, len(spending)+len(limits))
	for k := range spending {
		keys[k] = struct{}{}
	}
	for k := range limits {
		keys[k] = struct{}{}
	}

	out := make([]CategoryBudget, 0, len(keys))
	for k := range keys {
		spent := spending[k]
		limit := limits[k]
		out = append(out, CategoryBudget{
			Name:      DisplayName(k),
			Spent:     spent,
			Limit:     limit,
			Remaining: limit.Sub(spent),
			OverLimit: limit.IsPositive() && spent.GreaterThan(limit),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Budget is the aggregated view of one user's month.
type Budget struct {
	UserID     string           `json:"userId"`
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Spent      decimal.Decimal  `json:"spent"`
	Income     decimal.Decimal  `json:"income"`
	Goal       MonthlyGoal      `json:"goal"`
	Status     GoalStatus       `json:"status,omitempty"`
	Progress   float64          `json:"progress"`
	Remaining  decimal.Decimal  `json:"remaining"`
	Categories []CategoryBudget `json:"categories"`
	Overview   MonthOverview    `json:"overview"`
	ComputedAt time.Time        `json:"computedAt"`
}

// BuildBudget runs the full aggregation over materialized snapshots. It is a
// pure function of its inputs apart from ComputedAt.
func BuildBudget(userID string, year, month int, txs []Transaction, categories []Category, goal MonthlyGoal) Budget {
	rng := MonthRange(year, month)
	spending := SumByCategory(txs, rng)
	spent := TotalSpent(txs, rng)

	b := Budget{
		UserID:     userID,
		Year:       year,
		Month:      month,
		Spent:      spent,
		Income:     TotalIncome(txs, rng),
		Goal:       goal,
		Categories: CategoryBudgets(spending, categories),
		Overview:   BuildMonthOverview(txs, year, month),
		ComputedAt: time.Now().UTC(),
	}
	if goal.GoalSet {
		b.Status = EvaluateGoal(spent, goal.MinGoalAmount, goal.MaxGoalAmount)
		b.Progress = GoalProgress(spent, goal.MaxGoalAmount)
		b.Remaining = goal.MaxGoalAmount.Sub(spent)
	}
	return b
}

// Statistics summarizes an arbitrary inclusive date range.
type Statistics struct {
	From       string           `json:"from"`
	To         string           `json:"to"`
	Spent      decimal.Decimal  `json:"spent"`
	Income     decimal.Decimal  `json:"income"`
	Net        decimal.Decimal  `json:"net"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

func BuildStatistics(txs []Transaction, rng DateRange) Statistics {
	spent := TotalSpent(txs, rng)
	income := TotalIncome(txs, rng)
	return Statistics{
		From:       rng.Start.String(),
		To:         rng.End.String(),
		Spent:      spent,
		Income:     income,
		Net:        income.Sub(spent),
		Count:      len(InRange(txs, rng)),
		ByCategory: sortedAmounts(SumByCategory(txs, rng)),
	}
}
