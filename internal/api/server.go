package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pathlearn/roadmap-engine/internal/completion"
	"github.com/pathlearn/roadmap-engine/internal/config"
	"github.com/pathlearn/roadmap-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	repo           storage.Repository
	manager        *completion.Manager
	events         *EventHub
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server and subscribes the event hub to the
// transaction manager
func NewServer(
	cfg config.ServerConfig,
	repo storage.Repository,
	manager *completion.Manager,
) *Server {
	s := &Server{
		config:         cfg,
		repo:           repo,
		manager:        manager,
		events:         NewEventHub(),
		authMiddleware: NewAuthMiddleware(repo),
	}

	manager.OnMilestone(s.events.BroadcastMilestone)
	manager.OnViewUpdate(s.events.BroadcastProgress)

	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// Roadmaps
		r.Route("/roadmaps", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("roadmaps:read")).Get("/", s.handleListRoadmaps)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("roadmaps:read")).Get("/", s.handleGetRoadmap)
				r.With(s.authMiddleware.RequirePermission("progress:read")).Get("/progress", s.handleGetProgress)
				r.With(s.authMiddleware.RequirePermission("progress:write")).Post("/toggle", s.handleToggle)
			})
		})

		// Users
		r.With(s.authMiddleware.RequirePermission("progress:write")).
			Post("/users/{id}/refresh", s.handleRefreshUser)

		// Milestone / progress event stream
		r.With(s.authMiddleware.RequirePermission("progress:read")).
			Get("/events", s.handleEventsWS)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
