package web

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-recognition/internal/constants"
	"github.com/kozaktomas/face-recognition/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	timeout := s.geometryTimeout()

	profilesHandler := handlers.NewProfilesHandler(s.deps.Store, s.logger)
	enrollmentHandler := handlers.NewEnrollmentHandler(s.deps.Enrollment, s.validator, timeout, s.logger)
	analyticsHandler := handlers.NewAnalyticsHandler(s.deps.Analytics, s.validator, s.logger)
	recognitionHandler := handlers.NewRecognitionHandler(s.deps.Pipeline, s.validator, timeout, s.logger)

	s.router.Get("/health", handlers.HealthCheck(s.deps.Store))

	// WebSocket connections outlive any request timeout
	s.router.Get("/ws", s.hub.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(constants.RequestTimeout))

		r.Get("/profiles", profilesHandler.List)

		// Enrollment
		r.Post("/enrollment/start", enrollmentHandler.Start)
		r.Post("/enrollment/capture", enrollmentHandler.Capture)
		r.Post("/enrollment/complete", enrollmentHandler.Complete)
		r.Post("/enrollment/cancel", enrollmentHandler.Cancel)
		r.Get("/enrollment/status", enrollmentHandler.Status)
		r.Delete("/enrollment/profile/{profileId}", profilesHandler.Delete)

		// Analytics
		r.Get("/analytics/session", analyticsHandler.Session)
		r.Get("/analytics/timeline", analyticsHandler.Timeline)
		r.Get("/analytics/confidence", analyticsHandler.Confidence)
		r.Get("/analytics/heatmap", analyticsHandler.Heatmap)
		r.Get("/analytics/events", analyticsHandler.Events)
		r.Get("/analytics/challenges", analyticsHandler.Challenges)
		r.Post("/analytics/challenges", analyticsHandler.SaveChallenge)
		r.Get("/analytics/export/json", analyticsHandler.ExportJSON)
		r.Get("/analytics/export/csv", analyticsHandler.ExportCSV)
		r.Post("/analytics/reset", analyticsHandler.Reset)

		// Recognition
		r.Get("/performance", recognitionHandler.Performance)
		r.Put("/settings", recognitionHandler.UpdateSettings)
		r.Post("/recognize", recognitionHandler.Recognize)
	})
}
