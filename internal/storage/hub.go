package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Snapshot is the full matching set of a collection at one point in time.
// Err is set when the refresh query failed; Docs is then nil.
type Snapshot struct {
	Collection string
	Docs       []Document
	Err        error
	At         time.Time
}

// Subscription streams snapshots of one collection. C holds at most one
// pending snapshot: a newer snapshot replaces an unread older one, so a slow
// reader only ever sees the latest state.
type Subscription struct {
	C <-chan Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the subscription and waits for its goroutine to exit. C is
// closed afterwards. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed once the subscription has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// QueryFunc loads the current matching set for a subscription.
type QueryFunc func(ctx context.Context) ([]Document, error)

// Hub fans change notifications out to subscriptions. Backends call Notify
// after every write (and on change events from other processes).
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan struct{}]struct{})}
}

// Notify marks a collection as changed. Bursts of notifications collapse
// into a single refresh per subscriber.
func (h *Hub) Notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions on a collection.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[collection])
}

func (h *Hub) register(collection string) chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	if h.watchers[collection] == nil {
		h.watchers[collection] = make(map[chan struct{}]struct{})
	}
	h.watchers[collection][ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(collection string, ch chan struct{}) {
	h.mu.Lock()
	delete(h.watchers[collection], ch)
	if len(h.watchers[collection]) == 0 {
		delete(h.watchers, collection)
	}
	h.mu.Unlock()
}

// Subscribe runs query immediately and again after every Notify for the
// collection, until ctx is done or the subscription is cancelled.
func (h *Hub) Subscribe(ctx context.Context, collection string, query QueryFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Snapshot, 1)
	sub := &Subscription{C: out, cancel: cancel, done: make(chan struct{})}

	signal := h.register(collection)
	go func() {
		defer close(sub.done)
		defer close(out)
		defer h.unregister(collection, signal)

		for {
			docs, err := query(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				slog.WarnContext(ctx, "Subscription refresh failed", "collection", collection, "error", err)
			}
			deliver(out, Snapshot{Collection: collection, Docs: docs, Err: err, At: time.Now()})

			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
		}
	}()
	return sub
}

// deliver replaces any unread snapshot with s. Only the subscription
// goroutine sends on out, so this never blocks.
func deliver(out chan Snapshot, s Snapshot) {
	for {
		select {
		case out <- s:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
