package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cmena/presente/internal/database"
)

// InsertAttendance inserts a record. The (session, person) uniqueness
// constraint turns a concurrent duplicate into a no-op: false, nil.
func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	query := `
		INSERT INTO attendance (session_id, person_id, recorded_at, method, confidence, status, minutes_late)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, person_id) DO NOTHING
	`

	result, err := s.pool.Exec(ctx, query,
		rec.SessionID, rec.PersonID, rec.RecordedAt, rec.Method, rec.Confidence, rec.Status, rec.MinutesLate)
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListToday returns today's records joined with person names, newest first.
func (s *Store) ListToday(ctx context.Context, now time.Time) ([]database.AttendanceEntry, error) {
	query := `
		SELECT a.id, a.session_id, a.person_id, p.first_name || ' ' || p.last_name,
		       a.recorded_at, a.method, a.confidence, a.status, a.minutes_late
		FROM attendance a
		JOIN persons p ON p.id = a.person_id
		WHERE a.recorded_at::date = $1::date
		ORDER BY a.recorded_at DESC
	`
	return s.queryAttendance(ctx, query, now)
}

// ListAll returns every record joined with person names, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]database.AttendanceEntry, error) {
	query := `
		SELECT a.id, a.session_id, a.person_id, p.first_name || ' ' || p.last_name,
		       a.recorded_at, a.method, a.confidence, a.status, a.minutes_late
		FROM attendance a
		JOIN persons p ON p.id = a.person_id
		ORDER BY a.recorded_at
	`
	return s.queryAttendance(ctx, query)
}

func (s *Store) queryAttendance(ctx context.Context, query string, args ...any) ([]database.AttendanceEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []database.AttendanceEntry
	for rows.Next() {
		var e database.AttendanceEntry
		err := rows.Scan(&e.ID, &e.SessionID, &e.PersonID, &e.PersonName,
			&e.RecordedAt, &e.Method, &e.Confidence, &e.Status, &e.MinutesLate)
		if err != nil {
			return nil, fmt.Errorf("scan attendance entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return entries, nil
}

// PeriodStats aggregates sessions and attendance for one cut.
func (s *Store) PeriodStats(ctx context.Context, year int, semester string, cut int) (*database.PeriodStats, error) {
	var stats database.PeriodStats

	sessionQuery := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE attendance_open),
		       COUNT(*) FILTER (WHERE end_time < NOW()),
		       COUNT(*) FILTER (WHERE start_time > NOW())
		FROM sessions
		WHERE year = $1 AND semester = $2 AND cut = $3
	`
	err := s.pool.QueryRow(ctx, sessionQuery, year, semester, cut).Scan(
		&stats.Sessions.Total, &stats.Sessions.Open, &stats.Sessions.Past, &stats.Sessions.Planned)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}

	attendanceQuery := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE a.status = 'present'),
		       COUNT(*) FILTER (WHERE a.status = 'late'),
		       COUNT(*) FILTER (WHERE a.status = 'absent'),
		       COALESCE(AVG(a.minutes_late) FILTER (WHERE a.status = 'late'), 0)
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		WHERE s.year = $1 AND s.semester = $2 AND s.cut = $3
	`
	err = s.pool.QueryRow(ctx, attendanceQuery, year, semester, cut).Scan(
		&stats.Attendance.Total, &stats.Attendance.Present, &stats.Attendance.Late,
		&stats.Attendance.Absent, &stats.Attendance.AvgLateness)
	if err != nil {
		return nil, fmt.Errorf("attendance stats: %w", err)
	}

	return &stats, nil
}

// ClearToday deletes today's records, returning the count.
func (s *Store) ClearToday(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM attendance WHERE recorded_at::date = $1::date", now)
	if err != nil {
		return 0, fmt.Errorf("clear today's attendance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear attendance rows affected: %w", err)
	}
	return affected, nil
}

// ClearAll deletes every attendance record, returning the count.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM attendance")
	if err != nil {
		return 0, fmt.Errorf("clear attendance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear attendance rows affected: %w", err)
	}
	return affected, nil
}

// CountByPerson returns the number of records for a person.
func (s *Store) CountByPerson(ctx context.Context, personID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM attendance WHERE person_id = $1", personID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
