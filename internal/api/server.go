package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/prepstack/pack-engine/internal/activation"
	"github.com/prepstack/pack-engine/internal/config"
	"github.com/prepstack/pack-engine/internal/health"
	"github.com/prepstack/pack-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	packManager    activation.Manager
	healthRegistry *health.Registry
	events         *EventHub
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	manager activation.Manager,
	registry *health.Registry,
	events *EventHub,
	clients storage.ClientStore,
) *Server {
	s := &Server{
		config:         cfg,
		packManager:    manager,
		healthRegistry: registry,
		events:         events,
		authMiddleware: NewAuthMiddleware(clients),
	}
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

		r.Route("/content", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("content:write")).Post("/upload", s.handleUploadPack)
			r.With(s.authMiddleware.RequirePermission("content:activate")).Post("/activate", s.handleActivatePack)
			r.With(s.authMiddleware.RequirePermission("content:activate")).Post("/rollback", s.handleRollbackPack)
			r.With(s.authMiddleware.RequirePermission("content:read")).Get("/list", s.handleListPacks)
			r.With(s.authMiddleware.RequirePermission("content:read")).Get("/events", s.handleEventsWS)
		})

		r.Route("/content-packs", func(r chi.Router) {
			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("content:read")).Get("/", s.handleGetPack)
				r.With(s.authMiddleware.RequirePermission("content:validate")).Post("/validate", s.handleValidatePack)
			})
		})
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
