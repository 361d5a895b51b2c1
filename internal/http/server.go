// Package http exposes the ledger over a JSON API. Each client session owns
// its own ledger.Store, so two sessions see the same backend through
// independently optimistic views.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/text/language"

	"costledger/internal/cache"
	"costledger/internal/core"
	"costledger/internal/gateway"
	"costledger/internal/ledger"
	applog "costledger/internal/log"
	"costledger/internal/middleware/ratelimit"
	"costledger/internal/middleware/security"
	"costledger/internal/middleware/trace"
)

const (
	defaultSessionTTL = 30 * time.Minute
	defaultSessionMax = 256
	storeCloseTimeout = 10 * time.Second
)

// Pinger is implemented by the write journal.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps configures a Server.
type Deps struct {
	Gateway gateway.Gateway
	// StoreOptions is the template for every session's ledger.Store.
	StoreOptions ledger.Options
	Journal      Pinger
	Logger       *applog.Logger
	Locale       language.Tag

	SessionTTL         time.Duration
	SessionMax         int
	RateLimitPerMinute int
	AllowedOrigins     []string
}

type Server struct {
	http.Server

	gw        gateway.Gateway
	storeOpts ledger.Options
	journal   Pinger
	logger    *applog.Logger
	money     *core.Formatter
	started   time.Time

	sessionsMu sync.Mutex
	sessions   *cache.LRUCache[*ledger.Store]
	caches     *cache.Manager

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	clientIP *security.ClientIP

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	maxSessions := deps.SessionMax
	if maxSessions <= 0 {
		maxSessions = defaultSessionMax
	}
	locale := deps.Locale
	if locale == language.Und {
		locale = core.DefaultLocale
	}

	s := &Server{
		gw:        deps.Gateway,
		storeOpts: deps.StoreOptions,
		journal:   deps.Journal,
		logger:    logger,
		money:     core.NewFormatter(locale),
		started:   time.Now(),
		caches:    cache.NewManager(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		clientIP:  security.NewClientIP(),
	}
	s.sessions = cache.NewLRUCache[*ledger.Store](maxSessions, ttl,
		cache.WithEvictHook[*ledger.Store](s.closeSession))
	s.caches.Register(s.sessions)
	s.caches.StartCleanup(time.Minute)
	s.tracer = trace.NewMiddleware(logger, s.clientIP.Extract)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(deps.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Handler)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", HeaderSessionID, trace.HeaderRequestID},
		ExposedHeaders: []string{HeaderSessionID, trace.HeaderRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.clientIP.Extract, s.handleRateLimited))
		r.Use(middleware.AllowContentType("application/json", "text/plain"))

		r.Get("/validation", s.handleValidation)
		r.Post("/refresh", s.handleRefresh)

		r.Route("/sheets", func(r chi.Router) {
			r.Get("/", s.handleListSheets)
			r.Post("/", s.handleCreateSheet)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSheet)
				r.Get("/totals", s.handleTotals)
				r.Get("/items", s.handleSearchItems)
				r.Delete("/items", s.handleDeleteItem)
				r.Post("/items/{head}", s.handleAddItem)
				r.Get("/drafts/{head}", s.handleGetDraft)
				r.Put("/drafts/{head}", s.handlePutDraft)
				r.Delete("/drafts/{head}", s.handleResetDraft)
			})
		})
	})
	return r
}

// Shutdown stops the listener, then waits for every session's pending
// reconciliations.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)

		for _, st := range s.sessions.Values() {
			if err := st.Close(ctx); err != nil {
				s.logger.WarnContext(ctx, "Session did not settle before shutdown", applog.FieldError, err)
			}
		}
	})
	return shutdownErr
}

// Sessions reports how many sessions are live.
func (s *Server) Sessions() int {
	return s.sessions.Size()
}
