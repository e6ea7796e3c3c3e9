package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/lessontutor/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/lessontutor/internal/api/middlewares"
	"github.com/markdave123-py/lessontutor/internal/config"
	"github.com/markdave123-py/lessontutor/internal/core/logger"
	"github.com/markdave123-py/lessontutor/internal/core/metrics"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log *logger.Logger, db handlers.Pinger, tutor handlers.Tutor, threads handlers.Threads) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, log, db, tutor, threads),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// NewRouter returns the chi router serving the tutor API.
func NewRouter(cfg *config.Config, log *logger.Logger, db handlers.Pinger, tutor handlers.Tutor, threads handlers.Threads) http.Handler {
	chatHandler := handlers.NewChatHandler(tutor, log)
	threadHandler := handlers.NewThreadHandler(threads)
	healthHandler := handlers.NewHealthHandler(db)
	limiter := appMiddleware.NewRateLimiter(cfg.RatePerMin)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/ai", func(api chi.Router) {
		api.Use(appMiddleware.JWT(cfg.JWTSecret))
		api.With(limiter.Handler).Post("/chat", chatHandler.Ask)
		api.Get("/threads", threadHandler.List)
		api.Get("/threads/{threadID}/messages", threadHandler.Messages)
		api.Delete("/threads/{threadID}", threadHandler.Delete)
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
