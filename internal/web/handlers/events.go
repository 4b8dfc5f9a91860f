package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kiosklabs/facegate/internal/recognize"
)

// defaultEventLogSize bounds the in-memory event history.
const defaultEventLogSize = 256

// EventLog is a fixed-size ring buffer of recent recognition events. The
// recognition loop appends; the API reads newest-first.
type EventLog struct {
	mu   sync.RWMutex
	buf  []recognize.Event
	next int
	full bool
}

// NewEventLog creates an event log holding up to size events.
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = defaultEventLogSize
	}
	return &EventLog{buf: make([]recognize.Event, size)}
}

// Append records an event, evicting the oldest when full.
func (l *EventLog) Append(e recognize.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns up to limit events, newest first.
func (l *EventLog) Recent(limit int) []recognize.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := l.next
	if l.full {
		count = len(l.buf)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]recognize.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

// Consume drains the recognition loop's event channel into the log until
// the channel closes. Run it in its own goroutine.
func (l *EventLog) Consume(events <-chan recognize.Event) {
	for e := range events {
		l.Append(e)
	}
}

// EventsHandler serves the recent recognition event history.
type EventsHandler struct {
	log *EventLog
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(log *EventLog) *EventsHandler {
	return &EventsHandler{log: log}
}

type eventResponse struct {
	IdentityID  string    `json:"identity_id"`
	Name        string    `json:"name"`
	Score       float64   `json:"score"`
	Status      string    `json:"status"`
	WaitSeconds int       `json:"wait_seconds,omitempty"`
	At          time.Time `json:"at"`
}

// List returns recent events, newest first. Accepts an optional ?limit=
// query parameter.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events := h.log.Recent(limit)
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			IdentityID:  e.IdentityID,
			Name:        e.Name,
			Score:       e.Score,
			Status:      string(e.Status),
			WaitSeconds: int(e.Wait.Seconds()),
			At:          e.At,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"events": out,
		"count":  len(out),
	})
}
