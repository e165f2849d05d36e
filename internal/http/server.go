// Package http serves the ledger over a JSON REST API under /api. Every /api
// route requires a bearer token whose subject is the owner id.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"finledger/internal/auth"
	applog "finledger/internal/log"
	"finledger/internal/middleware/ratelimit"
	"finledger/internal/middleware/security"
	"finledger/internal/middleware/trace"
	"finledger/internal/services"
)

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the ledger operations the handlers call.
type Services struct {
	Accounts   *services.AccountService
	Categories *services.CategoryService
	Ledger     *services.LedgerService
	Transfers  *services.TransferService
	Budgets    *services.BudgetService
	Recurring  *services.RecurringScheduler
	Store      Pinger
}

// Config holds the HTTP surface settings.
type Config struct {
	Addr               string
	JWTSecret          string
	CORSOrigins        []string
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers name the client.
	TrustedProxies     []string
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	svc       Services
	jwtSecret string
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
// Invalid trusted proxy CIDRs are logged and skipped.
func NewServer(cfg Config, svc Services) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	httpLog := logger.WithComponent(applog.ComponentHTTP)

	securityLog := logger.WithComponent(applog.ComponentSecurity)
	ips := security.NewClientIPResolver()
	for _, cidr := range cfg.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			securityLog.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	limitLog := logger.WithComponent(applog.ComponentRateLimit)
	s := &Server{
		svc:       svc,
		jwtSecret: cfg.JWTSecret,
		logger:    httpLog,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		tracer:    trace.NewMiddleware(httpLog, ips.ClientIP),
		now:       time.Now,
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		limitLog.WarnContext(r.Context(), "Rate limit exceeded", applog.FieldClientIP, ips.ClientIP(r), applog.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
	}))
	api.Use(s.authenticate)

	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id:[0-9]+}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}/verify", s.handleVerifyAccount).Methods(http.MethodGet)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/transfers", s.handleCreateTransfer).Methods(http.MethodPost)

	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/summary/categories", s.handleCategorySummary).Methods(http.MethodGet)

	api.HandleFunc("/budgets", s.handleListBudgets).Methods(http.MethodGet)
	api.HandleFunc("/budgets", s.handleUpsertBudget).Methods(http.MethodPost)
	api.HandleFunc("/budgets/report", s.handleBudgetReport).Methods(http.MethodGet)
	api.HandleFunc("/budgets/actuals", s.handleBudgetActuals).Methods(http.MethodGet)

	api.HandleFunc("/recurring", s.handleListRecurring).Methods(http.MethodGet)
	api.HandleFunc("/recurring", s.handleCreateRecurring).Methods(http.MethodPost)
	api.HandleFunc("/recurring/run", s.handleRunRecurring).Methods(http.MethodPost)
	api.HandleFunc("/recurring/{id:[0-9]+}", s.handleDeleteRecurring).Methods(http.MethodDelete)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
		MaxAge:         600,
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Middleware(c.Handler(headers.Middleware(router))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// authenticate resolves the bearer token to an owner id and stores it in the
// request context. Handlers never see a request without an owner.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.FromHeader(r.Header.Get("Authorization"))
		var ownerID int64
		if err == nil {
			ownerID, err = auth.Parse(s.jwtSecret, raw)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := auth.WithOwner(r.Context(), ownerID)
		ctx = applog.WithLogger(ctx, applog.FromContext(ctx).With(applog.FieldOwnerID, ownerID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// owner returns the authenticated owner. authenticate guarantees it exists
// on every /api route.
func owner(r *http.Request) int64 {
	id, _ := auth.OwnerFrom(r.Context())
	return id
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Store.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Metrics returns request and rate limit counters.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics()
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
