// Package debounce collapses duplicate detections of the same physically
// present face across consecutive frames. It is independent of the
// attendance dwell interval: its only job is keeping one presence from
// producing frame-rate-speed events.
package debounce

import (
	"sync"
	"time"
)

// Tracker records the last accepted match time per identity.
type Tracker struct {
	mu        sync.Mutex
	window    time.Duration
	lastFired map[string]time.Time
}

// NewTracker creates a tracker with the given suppression window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window:    window,
		lastFired: make(map[string]time.Time),
	}
}

// ShouldFire returns true and records now as the identity's last-fired time
// iff no fire is recorded within the window before now. Otherwise it
// returns false and leaves state untouched.
func (t *Tracker) ShouldFire(id string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastFired[id]; ok && now.Sub(last) < t.window {
		return false
	}
	t.lastFired[id] = now
	return true
}

// Last returns the identity's last accepted match time, if any.
func (t *Tracker) Last(id string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastFired[id]
	return last, ok
}

// Len returns the number of tracked identities.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastFired)
}

// Prune drops entries whose last fire is older than now minus keep.
// Entries are soft state and are re-created on demand.
func (t *Tracker) Prune(now time.Time, keep time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, last := range t.lastFired {
		if now.Sub(last) > keep {
			delete(t.lastFired, id)
		}
	}
}
