// Package cache holds computed budget views between requests. Entries are
// invalidated by key prefix when a user's data changes.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache is a TTL cache of values of one type.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, data T)
	Delete(ctx context.Context, key string)
	// DeletePrefix removes every key starting with prefix, advances the
	// prefix version and reports how many keys were removed.
	DeletePrefix(ctx context.Context, prefix string) int
	// Version reports how many times prefix has been invalidated.
	Version(ctx context.Context, prefix string) uint64
	// SetIfVersion stores data only while prefix is still at version, so a
	// value computed before an invalidation is never cached after it.
	SetIfVersion(ctx context.Context, key, prefix string, version uint64, data T) bool
}

// Cleaner is implemented by caches that must be swept for expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically sweeps registered in-process caches.
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache for cleanup. Values that are not Cleaners (such as
// Redis-backed caches, which expire on the server) are ignored.
func (m *Manager) Register(c any) {
	cl, ok := c.(Cleaner)
	if !ok {
		return
	}
	m.mu.Lock()
	m.caches = append(m.caches, cl)
	m.mu.Unlock()
}

func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			caches := append([]Cleaner(nil), m.caches...)
			m.mu.Unlock()

			cleaned := 0
			for _, c := range caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.Debug("Cache cleanup", "removed", cleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup loop. It is a no-op if cleanup never started.
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()
	if !started {
		return
	}
	close(m.stopCleanup)
	<-m.cleanupDone
}
