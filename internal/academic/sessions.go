package academic

import (
	"context"
	"fmt"
	"time"

	"github.com/cmena/presente/internal/database"
)

// Resolver looks up and creates the session active for a given instant.
type Resolver struct {
	store database.SessionStore
}

// NewResolver creates a session resolver backed by the given store.
func NewResolver(store database.SessionStore) *Resolver {
	return &Resolver{store: store}
}

// FindActiveSession returns the session that should receive attendance at
// now, or nil. A session explicitly flagged as open takes precedence over
// one merely matching today's time window.
func (r *Resolver) FindActiveSession(ctx context.Context, now time.Time) (*database.Session, error) {
	sess, err := r.store.FindEnabledSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("find enabled session: %w", err)
	}
	if sess != nil {
		return sess, nil
	}

	sess, err = r.store.FindSessionAt(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find session by time window: %w", err)
	}
	return sess, nil
}

// EnsureSession returns the active session, creating one for the resolved
// period when none exists. Creation is an upsert keyed by the period
// tuple, so concurrent callers converge on a single row.
func (r *Resolver) EnsureSession(ctx context.Context, now time.Time) (*database.Session, error) {
	sess, err := r.FindActiveSession(ctx, now)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}

	period := ResolvePeriod(now)
	course := calendar.Session.DefaultCourse
	number, err := r.store.NextSessionNumber(ctx, period.Year, period.Semester, period.Cut, course)
	if err != nil {
		return nil, fmt.Errorf("next session number: %w", err)
	}

	start := now
	end := now.Add(time.Duration(calendar.Session.DurationMinutes) * time.Minute)
	created, err := r.store.UpsertSession(ctx, database.Session{
		Year:             period.Year,
		Semester:         period.Semester,
		Cut:              period.Cut,
		Course:           course,
		Number:           number,
		Name:             fmt.Sprintf("Session %d (%s cut %d)", number, period.Semester, period.Cut),
		Room:             calendar.Session.DefaultRoom,
		ScheduledDate:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		StartTime:        start,
		EndTime:          end,
		AttendanceOpen:   true,
		ToleranceMinutes: calendar.Session.ToleranceMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}
	return created, nil
}

// EnableCurrent enables attendance for the session scheduled right now.
// Returns nil without error when no session covers the current instant.
func (r *Resolver) EnableCurrent(ctx context.Context, now time.Time) (*database.Session, error) {
	sess, err := r.store.FindSessionAt(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find session by time window: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	if err := r.store.EnableAttendance(ctx, sess.ID); err != nil {
		return nil, fmt.Errorf("enable attendance: %w", err)
	}
	sess.AttendanceOpen = true
	return sess, nil
}

// DefaultTolerance returns the calendar's default lateness tolerance.
func DefaultTolerance() int {
	return calendar.Session.ToleranceMinutes
}

// DefaultDuration returns the calendar's default session length.
func DefaultDuration() time.Duration {
	return time.Duration(calendar.Session.DurationMinutes) * time.Minute
}

// DefaultCourse returns the course tag used for auto-created sessions.
func DefaultCourse() string {
	return calendar.Session.DefaultCourse
}

// DefaultRoom returns the room label used for auto-created sessions.
func DefaultRoom() string {
	return calendar.Session.DefaultRoom
}
