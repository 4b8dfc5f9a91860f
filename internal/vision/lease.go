package vision

import "sync"

// Lease serializes ownership of a single camera device. Enrollment holds
// the device exclusively for the duration of a capture run; the recognition
// loop holds it otherwise. A holder name is kept for error reporting.
type Lease struct {
	mu     sync.Mutex
	holder string
}

// NewLease creates an unheld lease.
func NewLease() *Lease {
	return &Lease{}
}

// TryAcquire takes the lease for the named holder. Returns ErrDeviceBusy
// without blocking if someone else holds it.
func (l *Lease) TryAcquire(holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return ErrDeviceBusy
	}
	l.holder = holder
	return nil
}

// Release gives the lease back. Releasing an unheld lease is a no-op.
func (l *Lease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holder = ""
}

// Holder returns the current holder name, or "" when unheld.
func (l *Lease) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder
}
