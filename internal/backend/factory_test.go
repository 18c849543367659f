package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"ledgerly/internal/config"
	"ledgerly/internal/core"
	"ledgerly/internal/notify"
	sheetsmem "ledgerly/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("cassandra").IsValid() {
		t.Error("unknown backend should be invalid")
	}
	if got := GetBackendTypeStrings(); len(got) != 4 || got[0] != "memory" {
		t.Errorf("unexpected type strings: %v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"mongo without db", Config{Type: MongoBackend, MongoURI: "mongodb://localhost"}, true},
		{"redis without url", Config{Type: MemoryBackend, CacheBackend: config.CacheRedis}, true},
		{"unknown", Config{Type: "nope"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "bogus"}); err == nil {
		t.Error("expected error for invalid backend")
	}

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:  config.BackendSQLite,
		SQLiteDBPath: "/tmp/x.db",
		CacheBackend: config.CacheMemory,
		CacheTTL:     time.Minute,
		CacheSize:    10,
	})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "/tmp/x.db" || cfg.CacheSize != 10 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, CacheSize: 4, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()

	if err := res.Store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	res.Budgets.Set(ctx, "k", core.Budget{Spent: decimal.NewFromInt(5)})
	if _, ok := res.Budgets.Get(ctx, "k"); !ok {
		t.Fatal("budget cache should hold the value")
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if err := res.Store.Upsert(ctx, "categories", "c1", map[string]any{"userId": "u1", "name": "food"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
}

func TestCreateBackend_InvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestWiring_Defaults(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()
	cfg := &config.Config{}

	if p := NewPublisher(cfg, logger); p != nil {
		t.Error("publisher should be nil without AMQP_URL")
	}
	w, err := NewSheetsWriter(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("NewSheetsWriter: %v", err)
	}
	if _, ok := w.(*sheetsmem.Store); !ok {
		t.Errorf("expected in-memory sheets writer, got %T", w)
	}
	if _, ok := NewNotifier(cfg, logger).(notify.Log); !ok {
		t.Error("expected log notifier when no channel is configured")
	}
}

func TestNewNotifier_SMTP(t *testing.T) {
	cfg := &config.Config{SMTPHost: "smtp.example.com", SMTPPort: 25, SMTPFrom: "ledger@example.com"}
	if _, ok := NewNotifier(cfg, testLogger()).(*notify.SMTP); !ok {
		t.Error("expected SMTP notifier")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
