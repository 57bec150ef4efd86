package academic

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/database/mock"
)

func TestFindActiveSessionPrefersEnabled(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

	// A session covering now's window but not enabled.
	windowed, err := store.UpsertSession(ctx, database.Session{
		Year: 2025, Semester: "2025-1", Cut: 2, Course: "general", Number: 1,
		ScheduledDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		StartTime:     now.Add(-30 * time.Minute),
		EndTime:       now.Add(30 * time.Minute),
	})
	if err != nil {
		t.Fatalf("upsert windowed session: %v", err)
	}

	// A session explicitly enabled, on a different day.
	enabled, err := store.UpsertSession(ctx, database.Session{
		Year: 2025, Semester: "2025-1", Cut: 2, Course: "general", Number: 2,
		ScheduledDate:  time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC),
		AttendanceOpen: true,
	})
	if err != nil {
		t.Fatalf("upsert enabled session: %v", err)
	}

	r := NewResolver(store)
	got, err := r.FindActiveSession(ctx, now)
	if err != nil {
		t.Fatalf("FindActiveSession: %v", err)
	}
	if got == nil || got.ID != enabled.ID {
		t.Errorf("expected enabled session %d to win, got %+v (windowed was %d)", enabled.ID, got, windowed.ID)
	}
}

func TestFindActiveSessionLatestStartedEnabledWins(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	day := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

	// Two enabled sessions on the same date; the one started later wins.
	earlier, err := store.UpsertSession(ctx, database.Session{
		Year: 2025, Semester: "2025-1", Cut: 2, Course: "general", Number: 1,
		ScheduledDate:  day,
		StartTime:      day.Add(8 * time.Hour),
		EndTime:        day.Add(9 * time.Hour),
		AttendanceOpen: true,
	})
	if err != nil {
		t.Fatalf("upsert earlier session: %v", err)
	}
	later, err := store.UpsertSession(ctx, database.Session{
		Year: 2025, Semester: "2025-1", Cut: 2, Course: "general", Number: 2,
		ScheduledDate:  day,
		StartTime:      day.Add(10 * time.Hour),
		EndTime:        day.Add(11 * time.Hour),
		AttendanceOpen: true,
	})
	if err != nil {
		t.Fatalf("upsert later session: %v", err)
	}

	r := NewResolver(store)
	got, err := r.FindActiveSession(ctx, day.Add(10*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("FindActiveSession: %v", err)
	}
	if got == nil || got.ID != later.ID {
		t.Errorf("expected session %d (started later), got %+v (earlier was %d)", later.ID, got, earlier.ID)
	}
}

func TestFindActiveSessionFallsBackToWindow(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)

	sess, err := store.UpsertSession(ctx, database.Session{
		Year: 2025, Semester: "2025-1", Cut: 2, Course: "general", Number: 1,
		ScheduledDate: time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		StartTime:     now.Add(-10 * time.Minute),
		EndTime:       now.Add(50 * time.Minute),
	})
	if err != nil {
		t.Fatalf("upsert session: %v", err)
	}

	r := NewResolver(store)
	got, err := r.FindActiveSession(ctx, now)
	if err != nil {
		t.Fatalf("FindActiveSession: %v", err)
	}
	if got == nil || got.ID != sess.ID {
		t.Errorf("expected windowed session %d, got %+v", sess.ID, got)
	}
}

func TestEnsureSessionCreatesWhenNoneActive(t *testing.T) {
	store := mock.NewStore()
	r := NewResolver(store)
	now := time.Date(2025, time.November, 2, 9, 30, 0, 0, time.UTC)

	sess, err := r.EnsureSession(context.Background(), now)
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if sess.Year != 2025 || sess.Semester != "2025-2" || sess.Cut != 3 {
		t.Errorf("unexpected period on created session: %+v", sess)
	}
	if sess.Number != 1 {
		t.Errorf("expected session number 1, got %d", sess.Number)
	}
	if sess.ToleranceMinutes != 15 {
		t.Errorf("expected default tolerance 15, got %d", sess.ToleranceMinutes)
	}
	if got := sess.EndTime.Sub(sess.StartTime); got != time.Hour {
		t.Errorf("expected 1h window, got %v", got)
	}
	if !sess.AttendanceOpen {
		t.Error("auto-created session should have attendance enabled")
	}
}

func TestEnsureSessionIdempotentUnderConcurrency(t *testing.T) {
	store := mock.NewStore()
	r := NewResolver(store)
	now := time.Date(2025, time.November, 2, 9, 30, 0, 0, time.UTC)

	var wg sync.WaitGroup
	ids := make([]int64, 8)
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := r.EnsureSession(context.Background(), now)
			if err != nil {
				t.Errorf("EnsureSession: %v", err)
				return
			}
			ids[i] = sess.ID
		}(i)
	}
	wg.Wait()

	if store.SessionCount() != 1 {
		t.Fatalf("expected exactly one session, got %d", store.SessionCount())
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Errorf("callers observed different sessions: %v", ids)
			break
		}
	}
}

func TestEnableCurrentWithoutSession(t *testing.T) {
	r := NewResolver(mock.NewStore())
	sess, err := r.EnableCurrent(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("EnableCurrent: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil session, got %+v", sess)
	}
}
