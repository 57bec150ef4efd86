// Package attendance records recognized students into the active session,
// applying the lateness rule and guarding against duplicate records.
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmena/presente/internal/academic"
	"github.com/cmena/presente/internal/database"
)

const recordMethod = "face_recognition"

// Outcome tells the recognition loop what happened with a sighting.
type Outcome int

const (
	// Registered means a new attendance record was written.
	Registered Outcome = iota
	// AlreadyRegistered means the person already has a record in this
	// session. Not an error, expected on every frame after the first.
	AlreadyRegistered
	// Throttled means the sighting arrived inside the cooldown window
	// and was dropped without touching the store.
	Throttled
	// Rejected means the store refused the record. The reason carries
	// the underlying error.
	Rejected
)

// Result is the outcome of a single RecordSighting call.
type Result struct {
	Outcome     Outcome
	Session     *database.Session
	Status      string
	MinutesLate int
	Reason      error
}

// Recorder turns match sightings into attendance records. It throttles
// writes with a global cooldown so a crowd in front of the camera does
// not hammer the database on every frame.
type Recorder struct {
	store    database.Store
	resolver *academic.Resolver
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	lastWrite time.Time
}

func NewRecorder(store database.Store, resolver *academic.Resolver, cooldown time.Duration, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:    store,
		resolver: resolver,
		cooldown: cooldown,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordSighting registers attendance for the given person. The active
// session is resolved (and created when missing), the lateness rule
// applied against its start time, and duplicates collapsed by the store.
func (r *Recorder) RecordSighting(ctx context.Context, personID int64, confidence float64) Result {
	now := r.now()

	r.mu.Lock()
	throttled := !r.lastWrite.IsZero() && now.Sub(r.lastWrite) < r.cooldown
	r.mu.Unlock()
	if throttled {
		return Result{Outcome: Throttled}
	}

	sess, err := r.resolver.EnsureSession(ctx, now)
	if err != nil {
		return Result{Outcome: Rejected, Reason: fmt.Errorf("resolving session: %w", err)}
	}

	status, minutesLate := Classify(now, sess.StartTime, sess.ToleranceMinutes)

	inserted, err := r.store.InsertAttendance(ctx, database.AttendanceRecord{
		SessionID:   sess.ID,
		PersonID:    personID,
		RecordedAt:  now,
		Method:      recordMethod,
		Confidence:  confidence,
		Status:      status,
		MinutesLate: minutesLate,
	})
	if err != nil {
		return Result{Outcome: Rejected, Session: sess, Reason: fmt.Errorf("inserting attendance: %w", err)}
	}
	if !inserted {
		return Result{Outcome: AlreadyRegistered, Session: sess}
	}

	// The cooldown runs from the last successful registration of anyone,
	// not per person. See Recorder doc.
	r.mu.Lock()
	r.lastWrite = now
	r.mu.Unlock()

	r.logger.Info("attendance recorded",
		"person_id", personID,
		"session_id", sess.ID,
		"status", status,
		"minutes_late", minutesLate,
		"confidence", confidence,
	)
	return Result{Outcome: Registered, Session: sess, Status: status, MinutesLate: minutesLate}
}

// Classify applies the lateness rule: arrivals within the tolerance after
// session start are present, anything later is late by the minutes past
// the tolerance. Arrivals before the start are present.
func Classify(at, start time.Time, toleranceMinutes int) (string, int) {
	elapsed := at.Sub(start)
	if elapsed <= 0 {
		return database.StatusPresent, 0
	}

	tolerance := time.Duration(toleranceMinutes) * time.Minute
	if elapsed <= tolerance {
		return database.StatusPresent, 0
	}
	return database.StatusLate, int((elapsed - tolerance).Minutes())
}
