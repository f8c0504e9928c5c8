// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/matchforge/internal/auth"
	"github.com/pendergraft/matchforge/internal/config"
	"github.com/pendergraft/matchforge/internal/events"
	ledgerDomain "github.com/pendergraft/matchforge/internal/ledger/domain"
	ledgerTransport "github.com/pendergraft/matchforge/internal/ledger/transport"
	"github.com/pendergraft/matchforge/internal/middleware/logging"
	"github.com/pendergraft/matchforge/internal/middleware/ratelimit"
	"github.com/pendergraft/matchforge/internal/middleware/realip"
	"github.com/pendergraft/matchforge/internal/middleware/security"
	"github.com/pendergraft/matchforge/internal/observability/metrics"
	registryDomain "github.com/pendergraft/matchforge/internal/registry/domain"
	registryTransport "github.com/pendergraft/matchforge/internal/registry/transport"
	"github.com/pendergraft/matchforge/internal/storage"
)

// Server is the HTTP server
type Server struct {
	cfg       *config.Config
	store     storage.Store
	logger    *slog.Logger
	router    *chi.Mux
	publisher events.Publisher

	// Services typed via transport interfaces
	ledgerSvc   ledgerTransport.Service
	registrySvc registryTransport.Service
}

// New creates a new server. The event publisher falls back to a no-op when
// NATS is not configured or unreachable; events are best-effort.
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		router:    chi.NewRouter(),
		publisher: newPublisher(cfg, logger),
	}

	reward, ok := new(big.Int).SetString(cfg.Rewards.MatchReward, 10)
	if !ok || reward.Sign() <= 0 {
		logger.Warn("invalid MATCH_REWARD, using default", "value", cfg.Rewards.MatchReward)
		reward, _ = new(big.Int).SetString(config.DefaultMatchReward, 10)
	}

	ledgerImpl := ledgerDomain.NewService(store, s.publisher)
	registryImpl := registryDomain.NewService(store, store, ledgerImpl, s.publisher, reward, cfg.Rewards.RegistryAddress)

	// Wrap registry service with logging middleware
	s.ledgerSvc = ledgerImpl
	s.registrySvc = registryDomain.LoggingMiddleware(logger)(registryImpl)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.Events.NATSURL == "" {
		return events.Noop{}
	}
	pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
	if err != nil {
		logger.Warn("NATS unavailable, events disabled", "url", cfg.Events.NATSURL, "error", err)
		return events.Noop{}
	}
	return pub
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Close releases the event publisher connection.
func (s *Server) Close() error {
	return s.publisher.Close()
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs first to block malicious requests early.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Security filter (blocks malicious patterns, bypasses health checks)
	s.router.Use(security.Filter(s.cfg.Security.FilterEnabled))

	// 3. Body size limit
	s.router.Use(security.MaxBodySize(s.cfg.Security.MaxBodySizeMB))

	// 4. Rate limiting (bypasses health checks)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 5. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 6. CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	ledgerHandler := ledgerTransport.NewHandler(s.ledgerSvc)
	registryHandler := registryTransport.NewHandler(s.registrySvc)

	// Auth middleware for write operations
	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type == "api-key" {
			r.Use(auth.Middleware(s.store, writeError))
		}
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/ledger", func(r chi.Router) {
			// Read operations - no auth required
			ledgerHandler.RegisterReadRoutes(r)

			// Write operations - auth required; the domain gates minting on
			// the owner flag
			r.Group(func(r chi.Router) {
				requireAuth(r)
				ledgerHandler.RegisterWriteRoutes(r)
			})
		})

		r.Route("/registry", func(r chi.Router) {
			// Read operations - no auth required
			registryHandler.RegisterReadRoutes(r)

			// Write operations - auth required
			r.Group(func(r chi.Router) {
				requireAuth(r)
				registryHandler.RegisterWriteRoutes(r)
			})

			// Owner operations - auth plus owner key required
			r.Group(func(r chi.Router) {
				requireAuth(r)
				if s.cfg.Auth.Type == "api-key" {
					r.Use(auth.RequireOwner(writeError))
				}
				registryHandler.RegisterOwnerRoutes(r)
			})
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
