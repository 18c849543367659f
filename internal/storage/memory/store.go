// Package memory is an in-process document store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"ledgerly/internal/storage"
)

type Store struct {
	mu     sync.RWMutex
	colls  map[string]map[string][]byte
	hub    *storage.Hub
	closed bool
}

func New() *Store {
	return &Store{
		colls: make(map[string]map[string][]byte),
		hub:   storage.NewHub(),
	}
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.Document{}, storage.ErrClosed
	}
	body, ok := s.colls[collection][id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return storage.Document{ID: id, Data: clone(body)}, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc any) error {
	body, err := storage.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return storage.ErrClosed
	}
	if s.colls[collection] == nil {
		s.colls[collection] = make(map[string][]byte)
	}
	s.colls[collection][id] = clone(body)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return storage.ErrClosed
	}
	if _, ok := s.colls[collection][id]; !ok {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(s.colls[collection], id)
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, filter storage.Filter) ([]storage.Document, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	docs := make([]storage.Document, 0)
	for id, body := range s.colls[collection] {
		if filter.Matches(body) {
			docs = append(docs, storage.Document{ID: id, Data: clone(body)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter storage.Filter) (*storage.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collection, func(ctx context.Context) ([]storage.Document, error) {
		return s.Query(ctx, collection, filter)
	}), nil
}

// Subscribers reports live subscriptions on a collection.
func (s *Store) Subscribers(collection string) int {
	return s.hub.Subscribers(collection)
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
