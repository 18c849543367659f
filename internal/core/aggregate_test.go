package core

import (
	"reflect"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

func expense(id, date, category string, amount int64) Transaction {
	return Transaction{
		ID:            id,
		UserID:        "u1",
		Description:   id,
		Amount:        decimal.NewFromInt(amount),
		Date:          date,
		PaymentMethod: "cash",
		Category:      category,
		Kind:          KindExpense,
	}
}

func TestSumByCategory_JanuaryExample(t *testing.T) {
	txs := []Transaction{
		expense("a", "2024-01-05", "Food", 100),
		expense("b", "2024-02-01", "Food", 50),
	}
	jan := MonthRange(2024, 1)

	if got := TotalSpent(txs, jan); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("TotalSpent = %s, want 100", got)
	}
	byCat := SumByCategory(txs, jan)
	if len(byCat) != 1 || !byCat["food"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("SumByCategory = %v, want {food:100}", byCat)
	}
}

func TestSumByCategory_CaseInsensitiveAndSkips(t *testing.T) {
	income := expense("i", "2024-01-10", "Salary", 5000)
	income.Kind = KindIncome
	txs := []Transaction{
		expense("a", "2024-01-01", "Food", 10),
		expense("b", "2024-01-31", " food ", 5),
		expense("c", "2024-01-15", "Transport", 7),
		expense("bad", "not-a-date", "Food", 1000),
		expense("late", "2024-02-01", "Food", 1000),
		income,
	}
	byCat := SumByCategory(txs, MonthRange(2024, 1))
	want := map[string]string{"food": "15", "transport": "7"}
	if len(byCat) != len(want) {
		t.Fatalf("unexpected keys: %v", byCat)
	}
	for k, v := range want {
		if !byCat[k].Equal(decimal.RequireFromString(v)) {
			t.Fatalf("%s = %s, want %s", k, byCat[k], v)
		}
	}
	if got := TotalIncome(txs, MonthRange(2024, 1)); !got.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("TotalIncome = %s", got)
	}
}

func TestSumByCategory_DuplicateIDsSummedIndependently(t *testing.T) {
	txs := []Transaction{
		expense("same", "2024-03-01", "Food", 20),
		expense("same", "2024-03-01", "Food", 20),
	}
	if got := TotalSpent(txs, MonthRange(2024, 3)); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("TotalSpent = %s, want 40", got)
	}
}

func TestMonthRange(t *testing.T) {
	r := MonthRange(2024, 2)
	if r.Start.String() != "2024-02-01" || r.End.String() != "2024-02-29" {
		t.Fatalf("unexpected range %s..%s", r.Start, r.End)
	}
	r = MonthRange(2023, 12)
	if r.End.String() != "2023-12-31" {
		t.Fatalf("unexpected end %s", r.End)
	}
}

func TestNewDateRange(t *testing.T) {
	if _, err := NewDateRange("2024-01-10", "2024-01-01"); err == nil {
		t.Fatal("expected error for inverted range")
	}
	r, err := NewDateRange("2024-01-01", "2024-01-01")
	if err != nil {
		t.Fatalf("single-day range: %v", err)
	}
	if !r.Contains(NewDate(2024, 1, 1)) {
		t.Fatal("range should include its bounds")
	}
}

func randomTransactions(f *gofakeit.Faker, n int) []Transaction {
	cats := []string{"Food", "food", "Rent", "Fun", "TRANSPORT"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	out := make([]Transaction, 0, n)
	for i := 0; i < n; i++ {
		tx := expense(f.UUID(), f.DateRange(start, end).Format(DateLayout), f.RandomString(cats), 0)
		tx.Amount = decimal.NewFromInt(int64(f.Number(1, 100000))).Shift(-2)
		if f.Number(0, 9) == 0 {
			tx.Date = f.Word()
		}
		if f.Number(0, 4) == 0 {
			tx.Kind = KindIncome
		}
		out = append(out, tx)
	}
	return out
}

func TestAggregationProperties(t *testing.T) {
	f := gofakeit.New(42)
	for round := 0; round < 50; round++ {
		txs := randomTransactions(f, f.Number(0, 60))
		month := f.Number(1, 12)
		rng := MonthRange(2024, month)

		// TotalSpent equals the sum over exactly the in-range expense subset.
		want := decimal.Zero
		for _, tx := range txs {
			d, err := ParseDate(tx.Date)
			if err != nil || !tx.IsExpense() {
				continue
			}
			if d.Month() == month && d.Year() == 2024 {
				want = want.Add(tx.Amount)
			}
		}
		total := TotalSpent(txs, rng)
		if !total.Equal(want) {
			t.Fatalf("round %d: TotalSpent = %s, want %s", round, total, want)
		}

		// Category totals partition the spend.
		sum := decimal.Zero
		for _, v := range SumByCategory(txs, rng) {
			sum = sum.Add(v)
		}
		if !sum.Equal(total) {
			t.Fatalf("round %d: category sum %s != total %s", round, sum, total)
		}
	}
}

func TestBuildBudget_Idempotent(t *testing.T) {
	f := gofakeit.New(7)
	txs := randomTransactions(f, 40)
	cats := []Category{{Name: "Food", Limit: decimal.NewFromInt(300)}, {Name: "Savings", Limit: decimal.NewFromInt(50)}}
	goal := MonthlyGoal{UserID: "u1", MinGoalAmount: decimal.NewFromInt(200), MaxGoalAmount: decimal.NewFromInt(500), GoalSet: true}

	a := BuildBudget("u1", 2024, 6, txs, cats, goal)
	b := BuildBudget("u1", 2024, 6, txs, cats, goal)
	a.ComputedAt, b.ComputedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("aggregation not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestCategoryBudgets_Union(t *testing.T) {
	spending := map[string]decimal.Decimal{
		"food":   decimal.NewFromInt(120),
		"orphan": decimal.NewFromInt(5),
	}
	cats := []Category{
		{Name: "Food", Limit: decimal.NewFromInt(100)},
		{Name: "Rent", Limit: decimal.NewFromInt(800)},
	}
	got := CategoryBudgets(spending, cats)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %+v", got)
	}
	names := []string{got[0].Name, got[1].Name, got[2].Name}
	if !reflect.DeepEqual(names, []string{"Food", "Orphan", "Rent"}) {
		t.Fatalf("unexpected order %v", names)
	}
	if !got[0].OverLimit || !got[0].Remaining.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("food row wrong: %+v", got[0])
	}
	if got[1].OverLimit || !got[1].Limit.IsZero() {
		t.Fatalf("orphan row wrong: %+v", got[1])
	}
	if !got[2].Spent.IsZero() {
		t.Fatalf("rent row wrong: %+v", got[2])
	}
}

func TestBuildBudget_GoalNotSet(t *testing.T) {
	txs := []Transaction{expense("a", "2024-01-05", "Food", 100)}
	b := BuildBudget("u1", 2024, 1, txs, nil, MonthlyGoal{UserID: "u1"})
	if b.Status != "" || b.Progress != 0 {
		t.Fatalf("no goal should leave status empty, got %+v", b)
	}
	if !b.Spent.Equal(decimal.NewFromInt(100)) || len(b.Overview.ByCategory) != 1 {
		t.Fatalf("unexpected budget %+v", b)
	}
}

func TestBuildStatistics(t *testing.T) {
	income := expense("i", "2024-01-03", "Salary", 1000)
	income.Kind = KindIncome
	txs := []Transaction{
		expense("a", "2024-01-01", "Food", 100),
		expense("b", "2024-01-03", "Fun", 50),
		expense("c", "2024-01-04", "Fun", 50),
		income,
	}
	rng, err := NewDateRange("2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatal(err)
	}
	s := BuildStatistics(txs, rng)
	if !s.Spent.Equal(decimal.NewFromInt(150)) || !s.Net.Equal(decimal.NewFromInt(850)) || s.Count != 3 {
		t.Fatalf("unexpected statistics %+v", s)
	}
	if s.ByCategory[0].Name != "Food" {
		t.Fatalf("largest category should come first: %+v", s.ByCategory)
	}
}
