package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiosklabs/facegate/internal/gallery"
	"github.com/kiosklabs/facegate/internal/store"
)

// GalleryHandler handles enrolled-identity endpoints. Removal goes to both
// the in-memory gallery and the persistent template store so the identity
// stays gone after a restart.
type GalleryHandler struct {
	gallery   *gallery.Store
	templates store.TemplateStore
}

// NewGalleryHandler creates a new gallery handler.
func NewGalleryHandler(g *gallery.Store, templates store.TemplateStore) *GalleryHandler {
	return &GalleryHandler{gallery: g, templates: templates}
}

type identityResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// List returns every enrolled identity. Embedding vectors stay server-side.
// With ?name=, it looks up the single identity with that display name
// instead (case- and diacritic-insensitive).
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		t, ok := h.gallery.FindByName(name)
		if !ok {
			respondError(w, http.StatusNotFound, "identity not enrolled")
			return
		}
		respondJSON(w, http.StatusOK, identityResponse{
			ID:         t.ID,
			Name:       t.Name,
			EnrolledAt: t.EnrolledAt,
		})
		return
	}

	templates := h.gallery.Snapshot()

	out := make([]identityResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, identityResponse{
			ID:         t.ID,
			Name:       t.Name,
			EnrolledAt: t.EnrolledAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"identities": out,
		"count":      len(out),
	})
}

// Get returns a single enrolled identity.
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := h.gallery.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "identity not enrolled")
		return
	}

	respondJSON(w, http.StatusOK, identityResponse{
		ID:         t.ID,
		Name:       t.Name,
		EnrolledAt: t.EnrolledAt,
	})
}

// Delete removes an identity's template from the gallery and the store.
func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := h.gallery.Get(id); !ok {
		respondError(w, http.StatusNotFound, "identity not enrolled")
		return
	}

	if err := h.templates.Delete(r.Context(), id); err != nil {
		log.Printf("template delete failed for %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	h.gallery.Remove(id)

	w.WriteHeader(http.StatusNoContent)
}
