// Package http serves the JSON API.
package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hisaab/internal/events"
	"hisaab/internal/idempotency"
	"hisaab/internal/log"
	"hisaab/internal/metrics"
	"hisaab/internal/middleware/ratelimit"
	"hisaab/internal/middleware/security"
	"hisaab/internal/middleware/trace"
	"hisaab/internal/services"
	"hisaab/internal/session"
)

// Pinger reports whether a dependency is usable. /readyz calls it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the server. Auth, Sessions, Transactions, Loans and Views are
// required; the rest are optional and their features turn off when nil.
type Deps struct {
	Auth         *services.AuthService
	Sessions     *session.Manager
	Transactions *services.TransactionService
	Loans        *services.LoanService
	Views        *services.Views

	Events      events.Subscriber
	Idempotency *idempotency.Store
	Metrics     *metrics.Metrics
	Limiter     *ratelimit.Limiter
	Ready       Pinger
	Logger      *log.Logger

	Location *time.Location
	Currency string
	Now      func() time.Time
}

type Server struct {
	http.Server

	auth         *services.AuthService
	sessions     *session.Manager
	transactions *services.TransactionService
	loans        *services.LoanService
	views        *services.Views
	subscriber   events.Subscriber
	idem         *idempotency.Store
	metrics      *metrics.Metrics
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	ready        Pinger
	logger       *log.Logger

	money money
	loc   *time.Location
	now   func() time.Time
}

// NewServer builds the router and returns a ready-to-run server. Shutdown
// also ends open event streams.
func NewServer(addr string, d Deps) *Server {
	s := &Server{
		auth:         d.Auth,
		sessions:     d.Sessions,
		transactions: d.Transactions,
		loans:        d.Loans,
		views:        d.Views,
		subscriber:   d.Events,
		idem:         d.Idempotency,
		metrics:      d.Metrics,
		limiter:      d.Limiter,
		detector:     security.NewDetector(),
		ready:        d.Ready,
		logger:       d.Logger,
		money:        money{currency: d.Currency},
		loc:          d.Location,
		now:          d.Now,
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.detector.OnSuspicious(func(r *http.Request) {
		s.metrics.ObserveSuspicious()
		s.logger.WarnContext(r.Context(), "Suspicious request",
			log.FieldComponent, log.ComponentSecurity,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, s.detector.ClientIP(r))
	})

	baseCtx, cancel := context.WithCancel(context.Background())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	s.RegisterOnShutdown(cancel)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(log.ComponentMiddleware(log.ComponentHTTP))
	r.Use(trace.NewMiddleware(s.logger, s.detector.ClientIP).Middleware)
	r.Use(s.metrics.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			s.metrics.ObserveRateLimited()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		}))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		})
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Use(s.idempotent)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/refresh", s.handleRefresh)
			r.Post("/auth/logout", s.handleLogout)

			transactions := func(r chi.Router) {
				r.Get("/", s.handleListTransactions)
				r.Post("/", s.handleCreateTransaction)
				r.Get("/{id}", s.handleGetTransaction)
				r.Put("/{id}", s.handleUpdateTransaction)
				r.Delete("/{id}", s.handleDeleteTransaction)
			}
			r.Route("/transactions", transactions)
			r.Route("/expenses", transactions)

			r.Route("/loans", func(r chi.Router) {
				r.Get("/", s.handleListLoans)
				r.Post("/", s.handleCreateLoan)
				r.Put("/{id}", s.handleUpdateLoan)
				r.Delete("/{id}", s.handleDeleteLoan)
				r.Post("/{id}/received", s.handleLoanMovement(s.loans.RecordReceived))
				r.Post("/{id}/paid", s.handleLoanMovement(s.loans.RecordPaid))
			})

			r.Get("/summary", s.handleSummary)
			r.Get("/ledger", s.handleLedger)
			r.Get("/methods", s.handleMethods)
			r.Get("/methods/breakdown", s.handleMethodBreakdown)
			r.Get("/accounts", s.handleAccounts)
			r.Get("/profile", s.handleProfile)
			r.Get("/events", s.handleEvents)
		})
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
