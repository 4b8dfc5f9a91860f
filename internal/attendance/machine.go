package attendance

import (
	"context"
	"fmt"
	"time"
)

// Status is the outcome of one debounced match event.
type Status string

const (
	StatusCheckIn  Status = "check-in"
	StatusCheckOut Status = "check-out"
	StatusWait     Status = "wait"
)

// Result describes what the state machine did with one event.
type Result struct {
	Status  Status
	Session *Session
	Wait    time.Duration // for StatusWait: time left until a check-out is accepted
}

// Message renders the result the way the check-in surface displays it.
func (r Result) Message() string {
	switch r.Status {
	case StatusCheckIn:
		return "Check-In"
	case StatusCheckOut:
		return "Check-Out"
	case StatusWait:
		return fmt.Sprintf("Wait %ds before checkout", int(r.Wait.Seconds()))
	}
	return ""
}

// Machine applies one accepted, debounced match event to the identity's
// attendance sessions for the day. MinInterval zero gives the
// immediate-checkout policy.
type Machine struct {
	ledger      Ledger
	minInterval time.Duration
}

// NewMachine creates a state machine over the given ledger.
func NewMachine(ledger Ledger, minInterval time.Duration) *Machine {
	return &Machine{ledger: ledger, minInterval: minInterval}
}

// Mark processes one match event at time now. Decisions are always made on
// the most recently created session for the identity+date:
//
//	no session today            -> create, check-in
//	open, dwell not satisfied   -> no mutation, wait
//	open, dwell satisfied       -> close, check-out
//	latest session closed       -> create a new session, check-in
func (m *Machine) Mark(ctx context.Context, identityID string, now time.Time) (Result, error) {
	date := DateOf(now)

	latest, err := m.ledger.LatestSession(ctx, identityID, date)
	if err != nil {
		return Result{}, fmt.Errorf("loading latest session: %w", err)
	}

	if latest == nil || !latest.Open() {
		session, err := m.ledger.CreateSession(ctx, identityID, date, now)
		if err != nil {
			return Result{}, fmt.Errorf("creating session: %w", err)
		}
		return Result{Status: StatusCheckIn, Session: session}, nil
	}

	elapsed := now.Sub(latest.CheckIn)
	if elapsed < m.minInterval {
		return Result{
			Status:  StatusWait,
			Session: latest,
			Wait:    m.minInterval - elapsed,
		}, nil
	}

	if err := m.ledger.CloseSession(ctx, latest.ID, now); err != nil {
		return Result{}, fmt.Errorf("closing session: %w", err)
	}
	closed := *latest
	closed.CheckOut = &now
	return Result{Status: StatusCheckOut, Session: &closed}, nil
}
