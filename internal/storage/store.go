// Package storage defines the document store used by every repository:
// JSON documents grouped in named collections, field-equality queries and
// live subscriptions that re-deliver a collection whenever it changes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidField = errors.New("invalid filter field")
	ErrClosed       = errors.New("store closed")
)

// Document is a stored JSON body and its id within a collection.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Filter matches documents whose top-level string fields equal the given
// values. An empty filter matches everything.
type Filter map[string]string

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects field names that are not plain identifiers.
func (f Filter) Validate() error {
	for k := range f {
		if !fieldName.MatchString(k) {
			return fmt.Errorf("%w: %q", ErrInvalidField, k)
		}
	}
	return nil
}

// Keys returns the filter fields in a stable order.
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches evaluates the filter against a decoded JSON object.
func (f Filter) Matches(data []byte) bool {
	if len(f) == 0 {
		return true
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return false
	}
	for k, want := range f {
		got, ok := obj[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Store is a collection-oriented document database.
type Store interface {
	// Get returns ErrNotFound when the id is absent.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Upsert creates or fully replaces a document.
	Upsert(ctx context.Context, collection, id string, doc any) error
	// Delete returns ErrNotFound when the id is absent.
	Delete(ctx context.Context, collection, id string) error
	// Query returns matching documents ordered by id.
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	// Subscribe delivers the matching set now and after every change to the
	// collection until the subscription is cancelled.
	Subscribe(ctx context.Context, collection string, filter Filter) (*Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

// Marshal encodes a document body. json.RawMessage values are stored as is.
func Marshal(doc any) ([]byte, error) {
	if raw, ok := doc.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}
