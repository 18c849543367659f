package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledgerly/internal/auth"
	applog "ledgerly/internal/log"
	"ledgerly/internal/middleware/ratelimit"
	"ledgerly/internal/middleware/security"
	"ledgerly/internal/middleware/trace"
	"ledgerly/internal/repository"
	"ledgerly/internal/services"
	"ledgerly/internal/storage"
)

// Services are the collaborators the handlers call into.
type Services struct {
	Auth       *auth.Service
	Ledger     *services.LedgerService
	Categories *services.CategoryService
	Goals      *services.GoalService
	Budgets    *services.BudgetService
	Reports    *services.ReportService
	// Store is pinged by the readiness probe.
	Store storage.Store
}

// Options configure the listener and middleware.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	svc         Services
	logger      *applog.Logger
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc Services) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		svc:    svc,
		logger: logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		tracer: trace.NewMiddleware(logger, clientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/me", s.handleMe)
	for _, coll := range repository.TransactionCollections {
		api.HandleFunc("GET /api/"+coll, s.handleListTransactions(coll))
		api.HandleFunc("POST /api/"+coll, s.handleCreateTransaction(coll))
		api.HandleFunc("GET /api/"+coll+"/{id}", s.handleGetTransaction(coll))
		api.HandleFunc("PUT /api/"+coll+"/{id}", s.handleReplaceTransaction(coll))
		api.HandleFunc("DELETE /api/"+coll+"/{id}", s.handleDeleteTransaction(coll))
	}
	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("PUT /api/categories/limit", s.handleSetCategoryLimit)
	api.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	api.HandleFunc("GET /api/goal", s.handleGetGoal)
	api.HandleFunc("PUT /api/goal", s.handleSetGoal)
	api.HandleFunc("GET /api/budget", s.handleBudget)
	api.HandleFunc("GET /api/budget/stream", s.handleBudgetStream)
	api.HandleFunc("GET /api/statistics", s.handleStatistics)
	api.HandleFunc("GET /api/report", s.handleReport)
	api.HandleFunc("POST /api/report/send", s.handleSendReport)
	api.HandleFunc("GET /api/export", s.handleExport)

	mux.Handle("/api/", svc.Auth.Tokens().Middleware(writeUnauthorized)(api))

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, clientIP(r), "method", r.Method, "url", r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	})(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	// No WriteTimeout: the budget stream is long-lived.
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Metrics exposes the request counters gathered by the tracing middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewResponse().Text("ok").Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Store.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
			return
		}
	}
	NewResponse().Text("ready").Write(w)
}

// userID returns the signed-in user. Routes under /api/ sit behind the auth
// middleware, so it is always set there.
func userID(r *http.Request) string {
	id, _ := auth.CurrentUserID(r.Context())
	return id
}
