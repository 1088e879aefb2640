// Package api provides the HTTP server for ritim.
// It exposes the progression mutation API per user, plus /health and /metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/domain"
	"github.com/ritim-app/ritim/internal/health"
	"github.com/ritim-app/ritim/internal/infra/metrics"
)

// Server is the ritim HTTP API server.
type Server struct {
	users          *engagement.Registry
	notifier       *engagement.NotificationService // nil disables the inbox routes
	health         *health.Checker                 // nil reports ok unconditionally
	metricsEnabled bool
	version        string
	log            *log.Entry
}

// NewServer creates a new API server over users.
func NewServer(users *engagement.Registry) *Server {
	return &Server{
		users:   users,
		version: "dev",
		log:     log.WithField("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetNotifications mounts the notification inbox routes.
func (s *Server) SetNotifications(n *engagement.NotificationService) { s.notifier = n }

// SetHealth makes /health report the checker's latest results.
func (s *Server) SetHealth(h *health.Checker) { s.health = h }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(instrument)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Get("/progression", s.handleProgression)
		r.Post("/tasks/complete", s.handleTaskComplete)
		r.Post("/habits/{habitID}/complete", s.handleHabitComplete)
		r.Post("/pomodoro", s.handlePomodoro)
		r.Post("/xp/award", s.handleAwardXP)
		r.Post("/xp/spend", s.handleSpendXP)
		r.Post("/weekly-summary", s.handleWeeklySummary)
		r.Get("/pass", s.handlePassStatus)
		r.Post("/pass", s.handlePassUse)
		r.Delete("/pass", s.handlePassUndo)
		r.Get("/achievements", s.handleAchievements)

		if s.notifier != nil {
			r.Get("/notifications", s.handleNotifications)
			r.Post("/notifications/{id}/shown", s.handleNotificationShown)
		}
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    http.StatusText(status),
		},
	})
}

// writeFailure maps a service error onto the HTTP contract:
//
//	domain.Reason         → 409 {"ok":false,"reason","message"}
//	ErrPersist            → 503, retry-capable
//	invalid input         → 400
//	ErrNotFound           → 404
//	anything else         → 500
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var reason domain.Reason
	switch {
	case errors.As(err, &reason):
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":      false,
			"reason":  reason,
			"message": reason.Message(),
		})
	case errors.Is(err, domain.ErrPersist):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, domain.ErrPersist.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPercent),
		errors.Is(err, domain.ErrInvalidHabitID),
		errors.Is(err, domain.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request duration per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.APIRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
