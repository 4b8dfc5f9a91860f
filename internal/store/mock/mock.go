// Package mock provides in-memory implementations of the persistence
// contracts for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiosklabs/facegate/internal/attendance"
	"github.com/kiosklabs/facegate/internal/store"
)

// Ledger is an in-memory attendance.Ledger.
type Ledger struct {
	mu       sync.Mutex
	sessions []*attendance.Session

	// Error injection
	LatestError error
	CreateError error
	CloseError  error

	// Mutation counters for asserting "no mutation" paths
	Creates int
	Closes  int
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// LatestSession returns the most recently created session for identity+date.
func (l *Ledger) LatestSession(ctx context.Context, identityID, date string) (*attendance.Session, error) {
	if l.LatestError != nil {
		return nil, l.LatestError
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var latest *attendance.Session
	for _, s := range l.sessions {
		if s.IdentityID != identityID || s.Date != date {
			continue
		}
		if latest == nil || s.CheckIn.After(latest.CheckIn) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// CreateSession opens a new session, refusing a second open one per
// identity+date.
func (l *Ledger) CreateSession(ctx context.Context, identityID, date string, checkIn time.Time) (*attendance.Session, error) {
	if l.CreateError != nil {
		return nil, l.CreateError
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.sessions {
		if s.IdentityID == identityID && s.Date == date && s.Open() {
			return nil, attendance.ErrSessionConflict
		}
	}

	session := &attendance.Session{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Date:       date,
		CheckIn:    checkIn,
	}
	l.sessions = append(l.sessions, session)
	l.Creates++

	copied := *session
	return &copied, nil
}

// CloseSession sets the check-out on an open session.
func (l *Ledger) CloseSession(ctx context.Context, sessionID string, checkOut time.Time) error {
	if l.CloseError != nil {
		return l.CloseError
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range l.sessions {
		if s.ID == sessionID {
			if !s.Open() {
				return fmt.Errorf("session %s already closed", sessionID)
			}
			out := checkOut
			s.CheckOut = &out
			l.Closes++
			return nil
		}
	}
	return fmt.Errorf("session %s not found", sessionID)
}

// Sessions returns copies of all sessions for an identity+date ordered by
// check-in.
func (l *Ledger) Sessions(identityID, date string) []attendance.Session {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []attendance.Session
	for _, s := range l.sessions {
		if s.IdentityID == identityID && s.Date == date {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckIn.Before(out[j].CheckIn) })
	return out
}

// Len returns the total number of sessions across identities.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// Templates is an in-memory store.TemplateStore.
type Templates struct {
	mu        sync.Mutex
	templates map[string]store.StoredTemplate

	// Error injection
	PublishError error
	LoadError    error
	DeleteError  error
}

// NewTemplates creates an empty in-memory template store.
func NewTemplates() *Templates {
	return &Templates{templates: make(map[string]store.StoredTemplate)}
}

// Publish inserts or replaces the identity's template.
func (t *Templates) Publish(ctx context.Context, tmpl store.StoredTemplate) error {
	if t.PublishError != nil {
		return t.PublishError
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.templates[tmpl.ID] = tmpl
	return nil
}

// LoadAll returns every stored template ordered by enrollment time.
func (t *Templates) LoadAll(ctx context.Context) ([]store.StoredTemplate, error) {
	if t.LoadError != nil {
		return nil, t.LoadError
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]store.StoredTemplate, 0, len(t.templates))
	for _, tmpl := range t.templates {
		out = append(out, tmpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out, nil
}

// Delete removes the identity's template.
func (t *Templates) Delete(ctx context.Context, id string) error {
	if t.DeleteError != nil {
		return t.DeleteError
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.templates, id)
	return nil
}

// Get returns the stored template for an identity, if present.
func (t *Templates) Get(id string) (store.StoredTemplate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tmpl, ok := t.templates[id]
	return tmpl, ok
}
