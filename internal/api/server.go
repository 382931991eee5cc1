package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/training-engine/internal/config"
	"github.com/terra-clan/training-engine/internal/engine"
)

// Permissions checked by the routes
const (
	PermTasksRead    = "tasks:read"
	PermSessionRead  = "session:read"
	PermSessionWrite = "session:write"
	PermProgressRead = "progress:read"
	PermCareerWrite  = "career:write"
	PermEventsRead   = "events:read"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	engine         *engine.Engine
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, eng *engine.Engine) *Server {
	s := &Server{
		config:         cfg,
		engine:         eng,
		authMiddleware: NewAuthMiddleware(cfg.APIKeys, cfg.ReadOnlyKeys),
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

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)
		perm := s.authMiddleware.RequirePermission

		// The event stream is long-lived and must not get the request timeout
		r.With(perm(PermEventsRead)).Get("/events", s.handleEventsWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/tasks", func(r chi.Router) {
				r.With(perm(PermTasksRead)).Get("/", s.handleListTasks)
				r.With(perm(PermTasksRead)).Get("/{id}", s.handleGetTask)
			})

			r.Route("/session", func(r chi.Router) {
				r.With(perm(PermSessionRead)).Get("/", s.handleGetSession)
				r.With(perm(PermSessionRead)).Get("/result", s.handleLastResult)

				r.Group(func(r chi.Router) {
					r.Use(perm(PermSessionWrite))
					r.Post("/", s.handleStartSession)
					r.Post("/identify", s.handleIdentify)
					r.Post("/step", s.handleCompleteStep)
					r.Post("/measure", s.handleMeasure)
					r.Post("/gauge", s.handleSelectGauge)
					r.Post("/connection", s.handleRecordConnection)
					r.Post("/bonus", s.handleAddBonus)
					r.Post("/diagnostic", s.handleAnswerDiagnostic)
					r.Post("/fault/identify", s.handleIdentifyFault)
					r.Post("/fault/repair", s.handleRepairFault)
					r.Post("/hint", s.handleHint)
					r.Post("/finish", s.handleFinish)
					r.Post("/abandon", s.handleAbandon)
				})
			})

			r.With(perm(PermProgressRead)).Get("/badges", s.handleListBadges)
			r.With(perm(PermProgressRead)).Get("/challenge", s.handleGetChallenge)
			r.With(perm(PermProgressRead)).Get("/progress", s.handleGetProgress)

			r.Route("/day", func(r chi.Router) {
				r.With(perm(PermProgressRead)).Get("/", s.handleGetDay)
				r.With(perm(PermCareerWrite)).Post("/start", s.handleStartDay)
				r.With(perm(PermCareerWrite)).Post("/end", s.handleEndDay)
				r.With(perm(PermCareerWrite)).Post("/orders/{id}/accept", s.handleAcceptOrder)
				r.With(perm(PermCareerWrite)).Post("/orders/{id}/decline", s.handleDeclineOrder)
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
