package cli

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"ledgerly/internal/config"
	applog "ledgerly/internal/log"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, applog.ComponentWorker)
	if logger.Component() != applog.ComponentWorker {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
}

func TestSignalContext_Cancel(t *testing.T) {
	ctx, cancel := SignalContext(applog.New(applog.DefaultConfig()))
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
}
