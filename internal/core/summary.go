package core

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"` // 1-12
	Total      decimal.Decimal  `json:"total"`
	Income     decimal.Decimal  `json:"income"`
	ByCategory []CategoryAmount `json:"byCategory"`
}

// BuildMonthOverview aggregates the expenses of a month. Categories are
// ordered by amount, largest first, then by name.
func BuildMonthOverview(txs []Transaction, year, month int) MonthOverview {
	rng := MonthRange(year, month)
	ov := MonthOverview{
		Year:   year,
		Month:  month,
		Total:  TotalSpent(txs, rng),
		Income: TotalIncome(txs, rng),
	}
	ov.ByCategory = sortedAmounts(SumByCategory(txs, rng))
	return ov
}

func sortedAmounts(byCat map[string]decimal.Decimal) []CategoryAmount {
	list := make([]CategoryAmount, 0, len(byCat))
	for name, amt := range byCat {
		list = append(list, CategoryAmount{Name: DisplayName(name), Amount: amt})
	}
	sort.Slice(list, func(i, j int) bool {
		if c := list[i].Amount.Cmp(list[j].Amount); c != 0 {
			return c > 0
		}
		return list[i].Name < list[j].Name
	})
	return list
}

// DisplayName upper-cases the first letter of a normalized category key.
func DisplayName(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return key
	}
	r, size := utf8.DecodeRuneInString(key)
	return string(unicode.ToUpper(r)) + key[size:]
}
