package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiosklabs/facegate/internal/enroll"
	"github.com/kiosklabs/facegate/internal/vision"
)

// EnrollHandler handles enrollment capture runs.
type EnrollHandler struct {
	registry *enroll.Registry
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(registry *enroll.Registry) *EnrollHandler {
	return &EnrollHandler{registry: registry}
}

type enrollRequest struct {
	IdentityID string `json:"identity_id"`
	Name       string `json:"name"`
}

// Start begins an enrollment capture run for an identity.
func (h *EnrollHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.IdentityID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "identity_id and name are required")
		return
	}

	runID, err := h.registry.Start(req.IdentityID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, enroll.ErrEnrollmentActive):
			respondError(w, http.StatusConflict, "enrollment already in progress for this identity")
		case errors.Is(err, vision.ErrDeviceBusy):
			respondError(w, http.StatusConflict, "capture device is busy")
		default:
			log.Printf("enrollment start failed for %s: %v", sanitizeForLog(req.IdentityID), err)
			respondError(w, http.StatusInternalServerError, "failed to start enrollment")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id":      runID,
		"identity_id": req.IdentityID,
	})
}

// Progress reports the state of the identity's capture run.
func (h *EnrollHandler) Progress(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")

	p := h.registry.Progress(identityID)
	if p.RunID == "" {
		respondError(w, http.StatusNotFound, "no enrollment run for this identity")
		return
	}

	resp := map[string]any{
		"run_id": p.RunID,
		"count":  p.Count,
		"done":   p.Done,
	}
	if err := h.registry.Err(identityID); err != nil {
		resp["error"] = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// Cancel stops the identity's capture run without publishing a template.
func (h *EnrollHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")
	h.registry.Cancel(identityID)
	w.WriteHeader(http.StatusNoContent)
}
