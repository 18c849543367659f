// Package storagetest holds behaviour checks shared by all storage backends.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ledgerly/internal/storage"
)

type item struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// Run exercises a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "items", "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpsertGetReplace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Upsert(ctx, "items", "a", item{UserID: "u1", Name: "first"}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if err := s.Upsert(ctx, "items", "a", item{UserID: "u1", Name: "second"}); err != nil {
			t.Fatalf("Upsert replace: %v", err)
		}
		doc, err := s.Get(ctx, "items", "a")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		var got item
		if err := doc.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if doc.ID != "a" || got.Name != "second" {
			t.Fatalf("got %s %+v", doc.ID, got)
		}
	})

	t.Run("QueryFilterAndOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustUpsert(t, s, "items", "c", item{UserID: "u1", Name: "c"})
		mustUpsert(t, s, "items", "a", item{UserID: "u1", Name: "a"})
		mustUpsert(t, s, "items", "b", item{UserID: "u2", Name: "b"})
		mustUpsert(t, s, "other", "z", item{UserID: "u1", Name: "z"})

		docs, err := s.Query(ctx, "items", storage.Filter{"userId": "u1"})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "c" {
			t.Fatalf("unexpected result %v", ids(docs))
		}

		all, err := s.Query(ctx, "items", nil)
		if err != nil {
			t.Fatalf("Query all: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 docs, got %v", ids(all))
		}

		if _, err := s.Query(ctx, "items", storage.Filter{"bad field": "x"}); !errors.Is(err, storage.ErrInvalidField) {
			t.Fatalf("expected ErrInvalidField, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustUpsert(t, s, "items", "a", item{Name: "a"})
		if err := s.Delete(ctx, "items", "a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, "items", "a"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("second delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RawMessage", func(t *testing.T) {
		s := newStore(t)
		mustUpsert(t, s, "items", "r", json.RawMessage(`{"userId":"u9","name":"raw"}`))
		docs, err := s.Query(context.Background(), "items", storage.Filter{"userId": "u9"})
		if err != nil || len(docs) != 1 {
			t.Fatalf("Query raw: %v %v", ids(docs), err)
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustUpsert(t, s, "items", "a", item{UserID: "u1", Name: "a"})

		sub, err := s.Subscribe(ctx, "items", storage.Filter{"userId": "u1"})
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		defer sub.Cancel()

		waitFor(t, sub, 1)
		mustUpsert(t, s, "items", "b", item{UserID: "u1", Name: "b"})
		waitFor(t, sub, 2)
		if err := s.Delete(ctx, "items", "a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		waitFor(t, sub, 1)
	})
}

func mustUpsert(t *testing.T, s storage.Store, coll, id string, doc any) {
	t.Helper()
	if err := s.Upsert(context.Background(), coll, id, doc); err != nil {
		t.Fatalf("Upsert %s/%s: %v", coll, id, err)
	}
}

// waitFor reads snapshots until one carries n documents.
func waitFor(t *testing.T, sub *storage.Subscription, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				t.Fatal("subscription closed")
			}
			if snap.Err == nil && len(snap.Docs) == n {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d documents", n)
		}
	}
}

func ids(docs []storage.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
