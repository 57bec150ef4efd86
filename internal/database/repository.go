package database

import (
	"context"
	"time"
)

// PersonStore provides access to enrolled persons and their embeddings.
type PersonStore interface {
	// CreatePerson inserts a person and returns it with ID and UID populated.
	CreatePerson(ctx context.Context, p Person) (*Person, error)
	// GetPerson retrieves a person by ID, returns nil if not found.
	GetPerson(ctx context.Context, id int64) (*Person, error)
	// ListPersons returns all persons ordered by ID.
	ListPersons(ctx context.Context) ([]Person, error)
	// DeletePerson removes a person together with their embeddings and
	// attendance records. Returns false if the person does not exist.
	DeletePerson(ctx context.Context, id int64) (bool, error)

	// SaveEmbeddings stores embeddings for a person in ordinal order.
	SaveEmbeddings(ctx context.Context, personID int64, embs []FaceEmbedding) error
	// DeleteEmbeddings removes all embeddings of a person.
	DeleteEmbeddings(ctx context.Context, personID int64) error
	// LoadGallery returns one entry per stored student embedding,
	// in deterministic (person, ordinal) order.
	LoadGallery(ctx context.Context) ([]GalleryEntry, error)
	// CountEmbeddings returns the number of embeddings for a person.
	CountEmbeddings(ctx context.Context, personID int64) (int, error)
}

// SessionStore provides access to academic sessions.
type SessionStore interface {
	// FindEnabledSession returns the most recent session with attendance
	// enabled, or nil.
	FindEnabledSession(ctx context.Context) (*Session, error)
	// FindSessionAt returns a session scheduled on now's date whose
	// [start, end] window contains now's time, or nil.
	FindSessionAt(ctx context.Context, now time.Time) (*Session, error)
	// NextSessionNumber returns MAX(number)+1 for the period tuple.
	NextSessionNumber(ctx context.Context, year int, semester string, cut int, course string) (int, error)
	// UpsertSession inserts the session keyed by its period tuple. If a
	// session for the tuple already exists, the existing row is returned
	// unchanged. Safe under concurrent callers.
	UpsertSession(ctx context.Context, s Session) (*Session, error)
	// EnableAttendance flips the attendance flag for a session.
	EnableAttendance(ctx context.Context, sessionID int64) error
	// GetSession retrieves a session by ID, returns nil if not found.
	GetSession(ctx context.Context, id int64) (*Session, error)
}

// AttendanceStore provides access to attendance records.
type AttendanceStore interface {
	// InsertAttendance inserts a record. Returns false without error when
	// a record for (session, person) already exists.
	InsertAttendance(ctx context.Context, rec AttendanceRecord) (bool, error)
	// ListToday returns today's records joined with person names, newest first.
	ListToday(ctx context.Context, now time.Time) ([]AttendanceEntry, error)
	// PeriodStats aggregates sessions and attendance for one cut.
	PeriodStats(ctx context.Context, year int, semester string, cut int) (*PeriodStats, error)
	// ClearToday deletes today's records, returning the count.
	ClearToday(ctx context.Context, now time.Time) (int64, error)
	// ClearAll deletes every attendance record, returning the count.
	ClearAll(ctx context.Context) (int64, error)
	// ListAll returns every record joined with person names, oldest first.
	ListAll(ctx context.Context) ([]AttendanceEntry, error)
	// CountByPerson returns the number of records for a person.
	CountByPerson(ctx context.Context, personID int64) (int, error)
}

// Store bundles the three repositories the service needs.
type Store interface {
	PersonStore
	SessionStore
	AttendanceStore
}
