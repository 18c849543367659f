package memory

import (
	"context"
	"testing"

	"ledgerly/internal/core"

	"github.com/shopspring/decimal"
)

func TestStoreUpsertIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Upsert(ctx, core.Transaction{ID: "a", Amount: decimal.NewFromInt(1)})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected upsert: ref=%q err=%v", ref, err)
	}
	if ref, _ := s.Upsert(ctx, core.Transaction{ID: "b"}); ref != "mem:2" {
		t.Fatalf("second row ref = %q", ref)
	}
	ref, err = s.Upsert(ctx, core.Transaction{ID: "a", Amount: decimal.NewFromInt(7)})
	if err != nil || ref != "mem:1" {
		t.Fatalf("re-upsert moved row: ref=%q err=%v", ref, err)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[0].ID != "a" || !rows[0].Amount.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestStoreRemove(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.Upsert(ctx, core.Transaction{}); err == nil {
		t.Fatal("expected error for missing id")
	}
	_, _ = s.Upsert(ctx, core.Transaction{ID: "a"})
	if err := s.Remove(ctx, "a", "2024-01-01"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, "missing", ""); err != nil {
		t.Fatalf("Remove missing: %v", err)
	}
	if n := len(s.Rows()); n != 0 {
		t.Fatalf("rows left: %d", n)
	}
}

func TestStoreRemoveOtherYearKeepsRow(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, _ = s.Upsert(ctx, core.Transaction{ID: "a", Date: "2024-01-02"})

	if err := s.Remove(ctx, "a", "2023-12-31"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n := len(s.Rows()); n != 1 {
		t.Fatalf("row in 2024 removed through the 2023 sheet: %d rows", n)
	}
	if err := s.Remove(ctx, "a", "2024-06-30"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n := len(s.Rows()); n != 0 {
		t.Fatalf("rows left: %d", n)
	}
}
