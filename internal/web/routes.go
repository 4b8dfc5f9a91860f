package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kiosklabs/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	enrollHandler := handlers.NewEnrollHandler(deps.Registry)
	galleryHandler := handlers.NewGalleryHandler(deps.Gallery, deps.Templates)
	attendanceHandler := handlers.NewAttendanceHandler(deps.Sessions)
	eventsHandler := handlers.NewEventsHandler(deps.Events)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Enrollment
		r.Post("/enroll", enrollHandler.Start)
		r.Get("/enroll/{id}", enrollHandler.Progress)
		r.Delete("/enroll/{id}", enrollHandler.Cancel)

		// Gallery
		r.Get("/gallery", galleryHandler.List)
		r.Get("/gallery/{id}", galleryHandler.Get)
		r.Delete("/gallery/{id}", galleryHandler.Delete)

		// Attendance
		r.Get("/attendance/{id}/today", attendanceHandler.Today)

		// Recognition events
		r.Get("/events", eventsHandler.List)
	})
}
