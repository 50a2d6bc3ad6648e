package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-recognition/internal/analytics"
	"github.com/kozaktomas/face-recognition/internal/config"
	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/enrollment"
	"github.com/kozaktomas/face-recognition/internal/pipeline"
	"github.com/kozaktomas/face-recognition/internal/store"
	"github.com/kozaktomas/face-recognition/internal/web/binding"
	"github.com/kozaktomas/face-recognition/internal/web/middleware"
	"github.com/kozaktomas/face-recognition/internal/web/realtime"
)

// Deps are the core services exposed over HTTP and WebSocket.
type Deps struct {
	Store      *store.Store
	Enrollment *enrollment.Manager
	Pipeline   *pipeline.Pipeline
	Analytics  *analytics.Aggregator
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Deps
	logger     logrus.FieldLogger
	validator  *binding.Validator
	origins    middleware.Origins
	router     *chi.Mux
	hub        *realtime.Hub
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps, logger logrus.FieldLogger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:    cfg,
		deps:      deps,
		logger:    logger,
		validator: binding.NewValidator(),
		origins:   middleware.NewOrigins(cfg.Server.AllowedOrigins),
		router:    r,
	}

	s.hub = realtime.NewHub(realtime.Deps{
		Pipeline:   deps.Pipeline,
		Enrollment: deps.Enrollment,
		Analytics:  deps.Analytics,
		Validator:  s.validator,
	}, realtime.Options{
		GeometryTimeout: s.geometryTimeout(),
		FrameRate:       rate.Limit(cfg.Recognition.TargetFPS),
		FrameBurst:      cfg.Recognition.FrameBurst,
		CheckOrigin:     s.origins.Allowed,
	}, logger.WithField("component", "websocket"))

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(s.origins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// frames are large and geometry calls are slow
		WriteTimeout: constants.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) geometryTimeout() time.Duration {
	return time.Duration(s.config.Geometry.TimeoutSeconds) * time.Second
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server. Hijacked WebSocket connections are
// not tracked by http.Server, so the hub closes them first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")

	s.hub.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
