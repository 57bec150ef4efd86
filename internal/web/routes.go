package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/cmena/presente/internal/academic"
	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/web/handlers"
)

func (s *Server) setupRoutes(service handlers.RecognitionService, store database.Store, resolver *academic.Resolver) {
	recognitionHandler := handlers.NewRecognitionHandler(service, s.config.Camera.Width, s.config.Camera.Height)
	enrollHandler := handlers.NewEnrollHandler(service)
	sessionsHandler := handlers.NewSessionsHandler(resolver)
	attendanceHandler := handlers.NewAttendanceHandler(store)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Live recognition
		r.Get("/status", recognitionHandler.Status)
		r.Get("/frame", recognitionHandler.Frame)
		r.Get("/video", recognitionHandler.Video)
		r.Post("/mode", recognitionHandler.SetMode)

		// Enrollment
		r.Post("/enroll/capture", enrollHandler.Capture)
		r.Get("/enroll/photos", enrollHandler.Photos)
		r.Post("/enroll/save", enrollHandler.Save)
		r.Post("/enroll/reset", enrollHandler.Reset)

		// Sessions
		r.Get("/session", sessionsHandler.Info)
		r.Post("/session/enable", sessionsHandler.Enable)

		// Attendance
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/stats", attendanceHandler.Stats)
	})
}
