// Package backend builds the storage, cache and messaging collaborators
// selected by configuration.
package backend

import (
	"context"
	"time"

	"ledgerly/internal/cache"
	"ledgerly/internal/core"
	"ledgerly/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened store, the budget cache and the
// function that releases both.
type BackendResult struct {
	Store   storage.Store
	Budgets cache.Cache[core.Budget]
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	DatabaseURL string

	// Mongo specific
	MongoURI   string
	MongoDB    string
	MongoWatch bool

	// Budget cache
	CacheBackend string
	RedisURL     string
	CacheTTL     time.Duration
	CacheSize    int
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MongoBackend    BackendType = "mongo"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, MongoBackend:
		return true
	default:
		return false
	}
}
