//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cmena/presente/internal/config"
	"github.com/cmena/presente/internal/database"
)

const testDim = 128

func setupTestStore(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return NewStore(pool, testDim), cleanup
}

func testEmbedding(seed float32) []float32 {
	emb := make([]float32, testDim)
	emb[0] = seed
	emb[1] = 1 - seed
	return emb
}

func createTestPerson(t *testing.T, store *Store, uid string) *database.Person {
	t.Helper()
	person, err := store.CreatePerson(context.Background(), database.Person{
		UID:       uid,
		FirstName: "Test",
		LastName:  uid,
		Role:      "student",
	})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	return person
}

func TestPersonLifecycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	person := createTestPerson(t, store, "alice")

	got, err := store.GetPerson(ctx, person.ID)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if got == nil || got.UID != "alice" {
		t.Fatalf("got %+v", got)
	}

	err = store.SaveEmbeddings(ctx, person.ID, []database.FaceEmbedding{
		{Ordinal: 0, Embedding: testEmbedding(0.1), BBox: []float64{1, 2, 3, 4}, DetScore: 0.9},
		{Ordinal: 1, Embedding: testEmbedding(0.2), DetScore: 0.8},
	})
	if err != nil {
		t.Fatalf("save embeddings: %v", err)
	}

	count, err := store.CountEmbeddings(ctx, person.ID)
	if err != nil {
		t.Fatalf("count embeddings: %v", err)
	}
	if count != 2 {
		t.Errorf("embeddings = %d, want 2", count)
	}

	gallery, err := store.LoadGallery(ctx)
	if err != nil {
		t.Fatalf("load gallery: %v", err)
	}
	if len(gallery) != 2 {
		t.Fatalf("gallery entries = %d, want 2", len(gallery))
	}
	if gallery[0].Name != "Test alice" {
		t.Errorf("gallery name = %q", gallery[0].Name)
	}
	if len(gallery[0].Embedding) != testDim {
		t.Errorf("embedding dim = %d", len(gallery[0].Embedding))
	}

	deleted, err := store.DeletePerson(ctx, person.ID)
	if err != nil || !deleted {
		t.Fatalf("delete person: %v %v", deleted, err)
	}

	// Embeddings cascade with the person.
	count, err = store.CountEmbeddings(ctx, person.ID)
	if err != nil {
		t.Fatalf("count after delete: %v", err)
	}
	if count != 0 {
		t.Errorf("embeddings after delete = %d", count)
	}
}

func TestSaveEmbeddingsRejectsWrongDimension(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	person := createTestPerson(t, store, "alice")
	err := store.SaveEmbeddings(context.Background(), person.ID, []database.FaceEmbedding{
		{Ordinal: 0, Embedding: []float32{1, 2, 3}},
	})
	if err == nil {
		t.Fatal("wrong-dimension embedding accepted")
	}
}

func TestSessionUpsertConvergesUnderConcurrency(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now()
	sess := database.Session{
		Year:             2026,
		Semester:         "2026-2",
		Cut:              2,
		Course:           "general",
		Number:           1,
		Name:             "Session 1",
		ScheduledDate:    now.Truncate(24 * time.Hour),
		StartTime:        now,
		EndTime:          now.Add(time.Hour),
		AttendanceOpen:   true,
		ToleranceMinutes: 15,
	}

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := store.UpsertSession(ctx, sess)
			if err != nil {
				t.Errorf("upsert %d: %v", i, err)
				return
			}
			ids[i] = created.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent upserts produced different sessions: %v", ids)
		}
	}

	var count int
	if err := store.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if count != 1 {
		t.Errorf("sessions = %d, want 1", count)
	}
}

func TestAttendanceDuplicateInsert(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	person := createTestPerson(t, store, "alice")
	now := time.Now()
	sess, err := store.UpsertSession(ctx, database.Session{
		Year: 2026, Semester: "2026-2", Cut: 2, Course: "general", Number: 1,
		ScheduledDate: now, StartTime: now, EndTime: now.Add(time.Hour),
		ToleranceMinutes: 15,
	})
	if err != nil {
		t.Fatalf("upsert session: %v", err)
	}

	rec := database.AttendanceRecord{
		SessionID:  sess.ID,
		PersonID:   person.ID,
		RecordedAt: now,
		Method:     "face_recognition",
		Confidence: 0.9,
		Status:     database.StatusPresent,
	}

	const attempts = 8
	results := make([]bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, err := store.InsertAttendance(ctx, rec)
			if err != nil {
				t.Errorf("insert %d: %v", i, err)
				return
			}
			results[i] = inserted
		}(i)
	}
	wg.Wait()

	inserted := 0
	for _, ok := range results {
		if ok {
			inserted++
		}
	}
	if inserted != 1 {
		t.Errorf("%d inserts reported success, want exactly 1", inserted)
	}

	entries, err := store.ListToday(ctx, now)
	if err != nil {
		t.Fatalf("list today: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("records = %d, want 1", len(entries))
	}
}

func TestPeriodStats(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	alice := createTestPerson(t, store, "alice")
	bob := createTestPerson(t, store, "bob")

	start := time.Now().Add(-30 * time.Minute)
	sess, err := store.UpsertSession(ctx, database.Session{
		Year: 2026, Semester: "2026-2", Cut: 2, Course: "general", Number: 1,
		ScheduledDate: start, StartTime: start, EndTime: start.Add(time.Hour),
		AttendanceOpen: true, ToleranceMinutes: 15,
	})
	if err != nil {
		t.Fatalf("upsert session: %v", err)
	}

	records := []database.AttendanceRecord{
		{SessionID: sess.ID, PersonID: alice.ID, RecordedAt: start.Add(5 * time.Minute), Status: database.StatusPresent},
		{SessionID: sess.ID, PersonID: bob.ID, RecordedAt: start.Add(25 * time.Minute), Status: database.StatusLate, MinutesLate: 10},
	}
	for _, rec := range records {
		rec.Method = "face_recognition"
		if _, err := store.InsertAttendance(ctx, rec); err != nil {
			t.Fatalf("insert attendance: %v", err)
		}
	}

	stats, err := store.PeriodStats(ctx, 2026, "2026-2", 2)
	if err != nil {
		t.Fatalf("period stats: %v", err)
	}
	if stats.Sessions.Total != 1 || stats.Sessions.Open != 1 {
		t.Errorf("session stats = %+v", stats.Sessions)
	}
	if stats.Attendance.Total != 2 || stats.Attendance.Present != 1 || stats.Attendance.Late != 1 {
		t.Errorf("attendance stats = %+v", stats.Attendance)
	}
	if stats.Attendance.AvgLateness != 10 {
		t.Errorf("avg lateness = %v, want 10", stats.Attendance.AvgLateness)
	}
}
