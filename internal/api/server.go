package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clipnotes/clipnotes/internal/clips"
	"github.com/clipnotes/clipnotes/internal/config"
	"github.com/clipnotes/clipnotes/internal/insights"
	"github.com/clipnotes/clipnotes/internal/usage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Server is the ClipNotes HTTP front end.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server

	clips    clips.Store
	insights *insights.Service
	usage    *usage.Service
	metrics  *Metrics
	counter  *RequestCounter
	limiter  *RateLimiter
}

// NewServer wires the HTTP layer over the given services.
func NewServer(cfg *config.Config, logger *zap.Logger, clipStore clips.Store, insightService *insights.Service, usageService *usage.Service, metrics *Metrics, counter *RequestCounter) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger,
		router:   chi.NewRouter(),
		clips:    clipStore,
		insights: insightService,
		usage:    usageService,
		metrics:  metrics,
		counter:  counter,
	}

	rps, burst := rateBudget(cfg)
	s.limiter = NewRateLimiter(rps, burst)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.requestCounterMiddleware)

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Get("/metrics", s.metrics.Handler().ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)

		r.Route("/clips", func(r chi.Router) {
			r.Post("/", s.handleCreateClip)
			r.Get("/", s.handleListClips)
			r.Get("/{id}", s.handleGetClip)
			r.Delete("/{id}", s.handleDeleteClip)
			r.Get("/{id}/analysis", s.handleGetLatestAnalysis)
			r.Post("/{id}/analysis", s.handleSaveAnalysis)
		})

		r.Route("/insights", func(r chi.Router) {
			r.Get("/", s.handleGetInsights)
			r.Post("/regenerate", s.handleRegenerateInsights)
			r.Post("/share", s.handleCreateShare)
			r.Get("/share/{token}", s.handleGetShare)
		})

		r.Get("/metrics/usage", s.handleGetUsage)
	})
}

func rateBudget(cfg *config.Config) (rps, burst int) {
	rps = cfg.Server.RateLimit
	if rps <= 0 {
		rps = 50
	}
	burst = cfg.Server.RateBurst
	if burst <= 0 {
		burst = 2 * rps
	}
	return rps, burst
}

// ApplyConfig applies the reloadable parts of a fresh config to the running
// server. Only the rate-limiter budget can change without a restart; port
// and database changes still need one.
func (s *Server) ApplyConfig(cfg *config.Config) {
	rps, burst := rateBudget(cfg)
	s.limiter.SetRate(rps, burst)
	s.logger.Info("applied reloaded config",
		zap.Int("rate_limit", rps),
		zap.Int("rate_burst", burst))
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message, detail string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
			"detail":  detail,
		},
	})
}
