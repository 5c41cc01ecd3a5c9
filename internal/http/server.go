// Package http exposes the budget engine as a JSON API.
//
// Callers identify themselves with the X-User-ID header; authentication
// happens upstream.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/arsenis-cmd/BudgetBot/internal/core"
	"github.com/arsenis-cmd/BudgetBot/internal/forecast"
	"github.com/arsenis-cmd/BudgetBot/internal/log"
	"github.com/arsenis-cmd/BudgetBot/internal/middleware/ratelimit"
	"github.com/arsenis-cmd/BudgetBot/internal/middleware/security"
	"github.com/arsenis-cmd/BudgetBot/internal/middleware/trace"
	"github.com/arsenis-cmd/BudgetBot/internal/ml"
	"github.com/arsenis-cmd/BudgetBot/internal/services"
	"github.com/arsenis-cmd/BudgetBot/internal/storage"
)

type (
	TransactionService interface {
		Create(ctx context.Context, in services.TransactionInput) (services.CreateResult, error)
		Get(ctx context.Context, userID, id string) (core.Transaction, error)
		List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
		Delete(ctx context.Context, userID, id string) error
		Categories(ctx context.Context) ([]core.Category, error)
		Alerts(ctx context.Context, userID string, limit int) ([]core.Alert, error)
	}

	GoalService interface {
		Set(ctx context.Context, in services.GoalInput) (core.BudgetGoal, error)
		List(ctx context.Context, userID string) ([]core.BudgetGoal, error)
		Deactivate(ctx context.Context, userID, id string) error
	}

	SummaryService interface {
		SummarizeAt(ctx context.Context, userID string, ts time.Time, g core.Granularity) (core.Summary, error)
	}

	InsightService interface {
		Forecast(ctx context.Context, userID string) (ml.ForecastResult, error)
		Recommend(ctx context.Context, userID string) (ml.RecommendationSet, error)
		Insights(ctx context.Context, userID string) (forecast.Insights, error)
	}

	// Check is a readiness probe of one dependency.
	Check func(ctx context.Context) error
)

type Deps struct {
	Transactions TransactionService
	Goals        GoalService
	Summaries    SummaryService
	Insights     InsightService
	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]Check
}

type Options struct {
	RateLimitPerMinute int
	Location           *time.Location
	Logger             *log.Logger
}

type Server struct {
	http.Server
	deps     Deps
	loc      *time.Location
	now      func() time.Time
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentHTTP})
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	s := &Server{
		deps:     deps,
		loc:      opts.Location,
		now:      time.Now,
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/transactions", s.withUser(s.handleCreateTransaction))
	api.HandleFunc("GET /api/v1/transactions", s.withUser(s.handleListTransactions))
	api.HandleFunc("GET /api/v1/transactions/{id}", s.withUser(s.handleGetTransaction))
	api.HandleFunc("DELETE /api/v1/transactions/{id}", s.withUser(s.handleDeleteTransaction))

	api.HandleFunc("POST /api/v1/goals", s.withUser(s.handleSetGoal))
	api.HandleFunc("GET /api/v1/goals", s.withUser(s.handleListGoals))
	api.HandleFunc("DELETE /api/v1/goals/{id}", s.withUser(s.handleDeactivateGoal))

	api.HandleFunc("GET /api/v1/alerts", s.withUser(s.handleListAlerts))
	api.HandleFunc("GET /api/v1/summary", s.withUser(s.handleSummary))
	api.HandleFunc("GET /api/v1/forecast", s.withUser(s.handleForecast))
	api.HandleFunc("GET /api/v1/recommendations", s.withUser(s.handleRecommendations))
	api.HandleFunc("GET /api/v1/insights", s.withUser(s.handleInsights))
	api.HandleFunc("GET /api/v1/categories", s.handleCategories)

	var apiHandler http.Handler = api
	if s.limiter != nil {
		apiHandler = s.limiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", log.FieldPath, r.URL.Path)
			writeError(w, r, errRateLimited)
		})(apiHandler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", apiHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(s.tracer.Middleware(s.flagSuspicious(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) rateLimitKey(r *http.Request) string {
	if user := userIDFrom(r); user != "" {
		return "user:" + user
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

// flagSuspicious logs probing requests and lets them through to a 404.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}
