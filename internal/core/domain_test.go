package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validTransaction() Transaction {
	return Transaction{
		ID:            "t1",
		UserID:        "u1",
		Description:   "Groceries",
		Amount:        decimal.NewFromInt(100),
		Date:          "2024-01-05",
		PaymentMethod: "card",
		Category:      "Food",
		Kind:          KindExpense,
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2024-01-05", true},
		{" 2024-12-31 ", true},
		{"2024-02-30", false},
		{"05/01/2024", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"empty description", func(tx *Transaction) { tx.Description = "  " }, ErrEmptyDescription},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-3) }, ErrInvalidAmount},
		{"bad date", func(tx *Transaction) { tx.Date = "yesterday" }, ErrInvalidDate},
		{"no payment method", func(tx *Transaction) { tx.PaymentMethod = "" }, ErrEmptyPaymentMethod},
		{"no category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTransaction()
			tc.mutate(&tx)
			err := tx.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected error to wrap ErrValidation, got %v", err)
			}
		})
	}
}

func TestMonthlyGoalValidate(t *testing.T) {
	ok := MonthlyGoal{MinGoalAmount: decimal.NewFromInt(200), MaxGoalAmount: decimal.NewFromInt(500)}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	equal := MonthlyGoal{MinGoalAmount: decimal.NewFromInt(300), MaxGoalAmount: decimal.NewFromInt(300)}
	if err := equal.Validate(); err != nil {
		t.Fatalf("min == max should be valid, got %v", err)
	}
	inverted := MonthlyGoal{MinGoalAmount: decimal.NewFromInt(600), MaxGoalAmount: decimal.NewFromInt(500)}
	if err := inverted.Validate(); !errors.Is(err, ErrGoalRange) {
		t.Fatalf("expected ErrGoalRange, got %v", err)
	}
	negative := MonthlyGoal{MinGoalAmount: decimal.NewFromInt(-1), MaxGoalAmount: decimal.NewFromInt(5)}
	if err := negative.Validate(); !errors.Is(err, ErrNegativeGoal) {
		t.Fatalf("expected ErrNegativeGoal, got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Food"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: " "}).Validate(); !errors.Is(err, ErrEmptyCategoryName) {
		t.Fatalf("expected ErrEmptyCategoryName, got %v", err)
	}
	if err := (Category{Name: "Food", Limit: decimal.NewFromInt(-1)}).Validate(); !errors.Is(err, ErrNegativeLimit) {
		t.Fatalf("expected ErrNegativeLimit, got %v", err)
	}
}

func TestValidateCredentials(t *testing.T) {
	cases := []struct {
		email, password string
		want            error
	}{
		{"ana@example.com", "longenough", nil},
		{"not-an-email", "longenough", ErrInvalidEmail},
		{"Ana <ana@example.com>", "longenough", ErrInvalidEmail},
		{"ana@example.com", "short", ErrPasswordTooShort},
	}
	for _, tc := range cases {
		err := ValidateCredentials(tc.email, tc.password)
		if tc.want == nil && err != nil {
			t.Fatalf("%s: expected ok, got %v", tc.email, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.email, tc.want, err)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	if got := NormalizeCategory("  FoOd "); got != "food" {
		t.Fatalf("expected food, got %q", got)
	}
	if got := DisplayName("food"); got != "Food" {
		t.Fatalf("expected Food, got %q", got)
	}
	if got := DisplayName("élan"); got != "Élan" {
		t.Fatalf("expected Élan, got %q", got)
	}
}
