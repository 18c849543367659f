package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerly/internal/cache"
	"ledgerly/internal/config"
	"ledgerly/internal/core"
	"ledgerly/internal/storage"
	"ledgerly/internal/storage/memory"
	"ledgerly/internal/storage/mongo"
	"ledgerly/internal/storage/postgres"
	"ledgerly/internal/storage/sqlite"

	"github.com/redis/go-redis/v9"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the configured store and cache. On error nothing is
// left open.
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	budgets, closeCache, err := f.createCache(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &BackendResult{
		Store:   store,
		Budgets: budgets,
		Cleanup: func() error {
			return errors.Join(closeCache(), store.Close())
		},
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, cfg Config) (storage.Store, error) {
	switch cfg.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil

	case SQLiteBackend:
		store, err := sqlite.New(ctx, cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return store, nil

	case PostgresBackend:
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend", "notify_channel", postgres.Channel)
		return store, nil

	case MongoBackend:
		store, err := mongo.New(ctx, mongo.Options{URI: cfg.MongoURI, Database: cfg.MongoDB, Watch: cfg.MongoWatch})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
		}
		f.logger.Info("Initialized MongoDB backend", "database", cfg.MongoDB, "watch", cfg.MongoWatch)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

func (f *DefaultFactory) createCache(ctx context.Context, cfg Config) (cache.Cache[core.Budget], func() error, error) {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	if cfg.CacheBackend == config.CacheRedis {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		f.logger.Info("Initialized Redis budget cache", "ttl", ttl)
		return cache.NewRedisCache[core.Budget](redis.UniversalClient(client), "ledgerly", ttl), client.Close, nil
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = 1000
	}
	lru := cache.NewLRUCache[core.Budget](size, ttl)
	mgr := cache.NewManager()
	mgr.Register(lru)
	mgr.StartCleanup(time.Minute)
	f.logger.Info("Initialized in-memory budget cache", "size", size, "ttl", ttl)
	return lru, func() error { mgr.Stop(); return nil }, nil
}
