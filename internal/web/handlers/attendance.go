package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kiosklabs/facegate/internal/attendance"
)

// SessionLister reads an identity's attendance sessions for one day.
type SessionLister interface {
	SessionsForDay(ctx context.Context, identityID, date string) ([]attendance.Session, error)
}

// AttendanceHandler serves per-identity attendance history.
type AttendanceHandler struct {
	sessions SessionLister
	now      func() time.Time
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(sessions SessionLister) *AttendanceHandler {
	return &AttendanceHandler{sessions: sessions, now: time.Now}
}

type sessionResponse struct {
	ID       string     `json:"id"`
	CheckIn  time.Time  `json:"check_in"`
	CheckOut *time.Time `json:"check_out,omitempty"`
	Open     bool       `json:"open"`
}

// Today returns the identity's check-in/check-out cycles for the current
// date. A day may hold several closed cycles plus at most one open one.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")
	date := attendance.DateOf(h.now())

	sessions, err := h.sessions.SessionsForDay(r.Context(), identityID, date)
	if err != nil {
		log.Printf("attendance query failed for %s: %v", sanitizeForLog(identityID), err)
		respondError(w, http.StatusInternalServerError, "failed to query attendance")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:       s.ID,
			CheckIn:  s.CheckIn,
			CheckOut: s.CheckOut,
			Open:     s.Open(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id": identityID,
		"date":        date,
		"sessions":    out,
	})
}
