package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMergeTransactions(t *testing.T) {
	income := expense("i1", "2024-01-20", "Salary", 1000)
	income.Kind = KindIncome

	legacy := []Transaction{expense("t1", "2024-01-05", "Food", 10)}
	expenses := []Transaction{expense("e2", "2024-01-05", "Fun", 20), expense("e1", "2024-01-10", "Food", 5)}
	incomes := []Transaction{income}

	got := MergeTransactions(legacy, expenses, incomes)
	ids := make([]string, len(got))
	for i, tx := range got {
		ids[i] = tx.ID
	}
	want := []string{"i1", "e1", "e2", "t1"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}

	// Merging is pure: inputs are untouched and totals follow the sources.
	if legacy[0].ID != "t1" || expenses[0].ID != "e2" {
		t.Fatal("inputs were mutated")
	}
	if spent := TotalSpent(got, MonthRange(2024, 1)); !spent.Equal(decimal.NewFromInt(35)) {
		t.Fatalf("TotalSpent = %s, want 35", spent)
	}
}

func TestMergeTransactions_Empty(t *testing.T) {
	if got := MergeTransactions(); len(got) != 0 {
		t.Fatalf("expected empty merge, got %v", got)
	}
	if got := MergeTransactions(nil, []Transaction{}); len(got) != 0 {
		t.Fatalf("expected empty merge, got %v", got)
	}
}
