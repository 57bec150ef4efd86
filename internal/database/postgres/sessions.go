package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cmena/presente/internal/database"
)

const sessionColumns = `
	id, year, semester, cut, course, session_number, name, room,
	scheduled_date, start_time, end_time, attendance_open, tolerance_minutes
`

func scanSession(row interface{ Scan(...any) error }) (*database.Session, error) {
	var s database.Session
	err := row.Scan(
		&s.ID, &s.Year, &s.Semester, &s.Cut, &s.Course, &s.Number, &s.Name, &s.Room,
		&s.ScheduledDate, &s.StartTime, &s.EndTime, &s.AttendanceOpen, &s.ToleranceMinutes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

// FindEnabledSession returns the most recent session with attendance
// enabled, or nil.
func (s *Store) FindEnabledSession(ctx context.Context) (*database.Session, error) {
	query := "SELECT " + sessionColumns + `
		FROM sessions
		WHERE attendance_open = TRUE
		ORDER BY start_time DESC
		LIMIT 1
	`
	return scanSession(s.pool.QueryRow(ctx, query))
}

// FindSessionAt returns a session scheduled on now's date whose time
// window contains now, or nil.
func (s *Store) FindSessionAt(ctx context.Context, now time.Time) (*database.Session, error) {
	query := "SELECT " + sessionColumns + `
		FROM sessions
		WHERE scheduled_date = $1::date
		  AND start_time <= $2
		  AND end_time >= $2
		ORDER BY start_time DESC
		LIMIT 1
	`
	return scanSession(s.pool.QueryRow(ctx, query, now, now))
}

// NextSessionNumber returns MAX(session_number)+1 for the period tuple.
func (s *Store) NextSessionNumber(ctx context.Context, year int, semester string, cut int, course string) (int, error) {
	query := `
		SELECT COALESCE(MAX(session_number), 0) + 1
		FROM sessions
		WHERE year = $1 AND semester = $2 AND cut = $3 AND course = $4
	`

	var next int
	err := s.pool.QueryRow(ctx, query, year, semester, cut, course).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next session number: %w", err)
	}
	return next, nil
}

// UpsertSession inserts the session keyed by its period tuple. On a
// conflict the existing row wins and is returned, so concurrent creators
// converge on one session.
func (s *Store) UpsertSession(ctx context.Context, sess database.Session) (*database.Session, error) {
	insert := `
		INSERT INTO sessions (
			year, semester, cut, course, session_number, name, room,
			scheduled_date, start_time, end_time, attendance_open, tolerance_minutes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (year, semester, cut, course, session_number) DO NOTHING
		RETURNING ` + sessionColumns

	created, err := scanSession(s.pool.QueryRow(ctx, insert,
		sess.Year, sess.Semester, sess.Cut, sess.Course, sess.Number, sess.Name, sess.Room,
		sess.ScheduledDate, sess.StartTime, sess.EndTime, sess.AttendanceOpen, sess.ToleranceMinutes,
	))
	if err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}
	if created != nil {
		return created, nil
	}

	// Conflict: another caller inserted the tuple first, return theirs.
	query := "SELECT " + sessionColumns + `
		FROM sessions
		WHERE year = $1 AND semester = $2 AND cut = $3 AND course = $4 AND session_number = $5
	`
	existing, err := scanSession(s.pool.QueryRow(ctx, query,
		sess.Year, sess.Semester, sess.Cut, sess.Course, sess.Number))
	if err != nil {
		return nil, fmt.Errorf("load conflicting session: %w", err)
	}
	if existing == nil {
		return nil, errors.New("session vanished between upsert and select")
	}
	return existing, nil
}

// EnableAttendance flips the attendance flag for a session.
func (s *Store) EnableAttendance(ctx context.Context, sessionID int64) error {
	if _, err := s.pool.Exec(ctx, "UPDATE sessions SET attendance_open = TRUE WHERE id = $1", sessionID); err != nil {
		return fmt.Errorf("enable attendance: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID, returns nil if not found.
func (s *Store) GetSession(ctx context.Context, id int64) (*database.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions WHERE id = $1"
	return scanSession(s.pool.QueryRow(ctx, query, id))
}
