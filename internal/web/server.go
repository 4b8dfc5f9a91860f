// Package web exposes the engine's HTTP API: enrollment control, the
// gallery of enrolled identities, attendance history and recent
// recognition events.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kiosklabs/facegate/internal/enroll"
	"github.com/kiosklabs/facegate/internal/gallery"
	"github.com/kiosklabs/facegate/internal/store"
	"github.com/kiosklabs/facegate/internal/web/handlers"
	"github.com/kiosklabs/facegate/internal/web/middleware"
)

// Deps are the engine components the API is built over.
type Deps struct {
	Registry  *enroll.Registry
	Gallery   *gallery.Store
	Templates store.TemplateStore
	Sessions  handlers.SessionLister
	Events    *handlers.EventLog
}

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server.
func NewServer(host string, port int, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS())

	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
