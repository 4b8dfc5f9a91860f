package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kiosklabs/facegate/internal/attendance"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pgUniqueViolation = "23505"

// AttendanceRepository provides PostgreSQL-backed session storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// LatestSession returns the most recently opened session for the identity
// on the date, or nil if none exists.
func (r *AttendanceRepository) LatestSession(ctx context.Context, identityID, date string) (*attendance.Session, error) {
	query := `
		SELECT id, identity_id, date, check_in, check_out
		FROM attendance_sessions
		WHERE identity_id = $1 AND date = $2
		ORDER BY check_in DESC
		LIMIT 1
	`

	var s attendance.Session
	var d time.Time
	var checkOut sql.NullTime

	err := r.pool.QueryRow(ctx, query, identityID, date).Scan(
		&s.ID,
		&s.IdentityID,
		&d,
		&s.CheckIn,
		&checkOut,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest session: %w", err)
	}

	s.Date = d.Format("2006-01-02")
	if checkOut.Valid {
		t := checkOut.Time
		s.CheckOut = &t
	}
	return &s, nil
}

// CreateSession opens a new session. The partial unique index on open
// sessions turns a double-create into ErrSessionConflict.
func (r *AttendanceRepository) CreateSession(ctx context.Context, identityID, date string, checkIn time.Time) (*attendance.Session, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO attendance_sessions (id, identity_id, date, check_in)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.pool.Exec(ctx, query, id, identityID, date, checkIn); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return nil, attendance.ErrSessionConflict
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &attendance.Session{
		ID:         id,
		IdentityID: identityID,
		Date:       date,
		CheckIn:    checkIn,
	}, nil
}

// CloseSession sets the check-out time on an open session.
func (r *AttendanceRepository) CloseSession(ctx context.Context, sessionID string, checkOut time.Time) error {
	result, err := r.pool.Exec(ctx,
		"UPDATE attendance_sessions SET check_out = $1 WHERE id = $2 AND check_out IS NULL",
		checkOut, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("close session: no open session with id %s", sessionID)
	}
	return nil
}

// SessionsForDay returns all of the identity's sessions on the date,
// ordered by check-in. A day may hold several closed cycles.
func (r *AttendanceRepository) SessionsForDay(ctx context.Context, identityID, date string) ([]attendance.Session, error) {
	query := `
		SELECT id, identity_id, date, check_in, check_out
		FROM attendance_sessions
		WHERE identity_id = $1 AND date = $2
		ORDER BY check_in
	`

	rows, err := r.pool.Query(ctx, query, identityID, date)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []attendance.Session
	for rows.Next() {
		var s attendance.Session
		var d time.Time
		var checkOut sql.NullTime

		if err := rows.Scan(&s.ID, &s.IdentityID, &d, &s.CheckIn, &checkOut); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		s.Date = d.Format("2006-01-02")
		if checkOut.Valid {
			t := checkOut.Time
			s.CheckOut = &t
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Verify interface compliance.
var _ attendance.Ledger = (*AttendanceRepository)(nil)
