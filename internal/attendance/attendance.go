// Package attendance turns accepted, debounced match events into per-day
// check-in / check-out sessions.
package attendance

import (
	"context"
	"errors"
	"time"
)

// Session is one check-in/check-out pair for an identity on a calendar
// date. CheckOut nil means the session is open; at most one open session
// may exist per identity+date.
type Session struct {
	ID         string
	IdentityID string
	Date       string // calendar date, YYYY-MM-DD
	CheckIn    time.Time
	CheckOut   *time.Time
}

// Open reports whether the session has no check-out yet.
func (s *Session) Open() bool {
	return s.CheckOut == nil
}

// DateOf formats a timestamp as the session calendar date.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// ErrSessionConflict means a create would produce a second open session
// for the same identity+date. The ledger must fail loudly rather than
// silently allow it.
var ErrSessionConflict = errors.New("open attendance session already exists")

// Ledger is the persistence boundary of the state machine. Create and
// close are each a single atomic operation per identity+date.
type Ledger interface {
	// LatestSession returns the most recently created session for the
	// identity on the date (ordered by check-in), or nil if none exists.
	LatestSession(ctx context.Context, identityID, date string) (*Session, error)

	// CreateSession opens a new session. Returns ErrSessionConflict if an
	// open session already exists for the identity+date, which makes a
	// retry idempotent rather than double-creating.
	CreateSession(ctx context.Context, identityID, date string, checkIn time.Time) (*Session, error)

	// CloseSession sets the check-out time on an open session.
	CloseSession(ctx context.Context, sessionID string, checkOut time.Time) error
}
