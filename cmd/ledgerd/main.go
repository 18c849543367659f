package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"ledgerly/internal/auth"
	"ledgerly/internal/backend"
	"ledgerly/internal/cli"
	apphttp "ledgerly/internal/http"
	applog "ledgerly/internal/log"
	"ledgerly/internal/repository"
	"ledgerly/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	logger.Info("Starting ledgerd", "port", cfg.Port, "backend", cfg.DataBackend, "cache", cfg.CacheBackend)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	// Change events are optional; without a broker writes only skip publishing.
	var publisher services.ChangePublisher
	if client := backend.NewPublisher(cfg, logger.Logger); client != nil {
		publisher = client
		defer client.Close()
	}

	ledger := services.NewLedgerService(be.Store, be.Budgets, publisher, logger.WithComponent(applog.ComponentLedger))
	budgets := services.NewBudgetService(be.Store, ledger, be.Budgets)
	// Scheduled monthly reports run in ledger-worker; the API only sends on request.
	reports := services.NewReportService(be.Store, budgets, backend.NewNotifier(cfg, logger.Logger), cfg.Currency)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, apphttp.Services{
		Auth:       auth.NewService(repository.NewUsers(be.Store), auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)),
		Ledger:     ledger,
		Categories: services.NewCategoryService(be.Store, be.Budgets),
		Goals:      services.NewGoalService(be.Store, be.Budgets),
		Budgets:    budgets,
		Reports:    reports,
		Store:      be.Store,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB
	// Open budget streams end with the signal context.
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped
	m := srv.Metrics()
	logger.Info("Server stopped gracefully", "total_requests", m.TotalRequests, "server_errors", m.ServerErrors)
}
