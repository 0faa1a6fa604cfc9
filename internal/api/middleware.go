package api

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		elapsed := time.Since(start)
		s.metrics.RecordRequest(r.Method, r.URL.Path, recorder.status, elapsed.Seconds())
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", elapsed))
	})
}

// requestCounterMiddleware records daily API request totals for the usage
// dashboard. Only /api traffic counts; CORS preflights are skipped.
func (s *Server) requestCounterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		if s.counter == nil || r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, "/api") {
			return
		}
		if err := s.counter.Increment(r.Context()); err != nil {
			s.logger.Warn("failed to record request count", zap.Error(err))
		}
	})
}

// RequestCounter persists per-day request totals.
type RequestCounter struct {
	db  *sql.DB
	now func() time.Time
}

// NewRequestCounter creates a counter over the request_counts table.
func NewRequestCounter(db *sql.DB) *RequestCounter {
	return &RequestCounter{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Increment bumps today's request total.
func (c *RequestCounter) Increment(ctx context.Context) error {
	now := c.now()
	query := `INSERT INTO request_counts (date, requests, updated_at) VALUES ($1, 1, $2)
		ON CONFLICT (date) DO UPDATE SET requests = request_counts.requests + 1, updated_at = $2`
	if _, err := c.db.ExecContext(ctx, query, now.Format("2006-01-02"), now); err != nil {
		return fmt.Errorf("increment request count: %w", err)
	}
	return nil
}

// RateLimiter enforces per-client request rates on the API routes.
type RateLimiter struct {
	mu                sync.Mutex
	limiters          map[string]*rate.Limiter
	requestsPerSecond int
	burstSize         int
}

// NewRateLimiter creates a limiter with the given per-client budget.
func NewRateLimiter(requestsPerSecond, burstSize int) *RateLimiter {
	return &RateLimiter{
		limiters:          make(map[string]*rate.Limiter),
		requestsPerSecond: requestsPerSecond,
		burstSize:         burstSize,
	}
}

// SetRate swaps the per-client budget. Existing client limiters are
// discarded so the new rate takes effect on their next request.
func (rl *RateLimiter) SetRate(requestsPerSecond, burstSize int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.requestsPerSecond = requestsPerSecond
	rl.burstSize = burstSize
	rl.limiters = make(map[string]*rate.Limiter)
}

// Allow reports whether the client may proceed.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// MEMORY PROTECTION: Prevent unlimited growth
	if len(rl.limiters) >= 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}

	limiter, exists := rl.limiters[client]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(rl.requestsPerSecond), rl.burstSize)
		rl.limiters[client] = limiter
	}

	return limiter.Allow()
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if !s.limiter.Allow(client) {
			s.metrics.RateLimitHits.WithLabelValues(client).Inc()
			s.writeError(w, http.StatusTooManyRequests, "rate_limited",
				"Too many requests.", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
