package database

import (
	"time"
)

// Person is an enrolled identity. A person owns zero or more face
// embeddings; embeddings are immutable once stored.
type Person struct {
	ID        int64
	UID       string // public identifier, assigned at enrollment
	FirstName string
	LastName  string
	Email     string
	Role      string // "student" or "other"
	CreatedAt time.Time
}

// FullName returns the display name used by the gallery and the UI.
func (p Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// FaceEmbedding is one stored face vector for a person. Best-quality
// embeddings are stored first (lowest ordinal).
type FaceEmbedding struct {
	ID        int64
	PersonID  int64
	Ordinal   int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2] in source photo pixels
	DetScore  float64
	CreatedAt time.Time
}

// GalleryEntry is the (person, name, embedding) view the matcher consumes.
type GalleryEntry struct {
	PersonID  int64
	Name      string
	Embedding []float32
}

// Session is a scheduled class occurrence. At most one session is active
// for a given instant. The (Year, Semester, Cut, Course, Number) tuple is
// unique in the store.
type Session struct {
	ID               int64
	Year             int
	Semester         string // e.g. "2025-1"
	Cut              int    // 1..3
	Course           string
	Number           int // session number within the period tuple
	Name             string
	Room             string
	ScheduledDate    time.Time // date component only
	StartTime        time.Time
	EndTime          time.Time
	AttendanceOpen   bool // attendance explicitly enabled
	ToleranceMinutes int
	CreatedAt        time.Time
}

// Attendance statuses.
const (
	StatusPresent = "present"
	StatusLate    = "late"
	StatusAbsent  = "absent"
)

// AttendanceRecord is unique per (SessionID, PersonID).
type AttendanceRecord struct {
	ID          int64
	SessionID   int64
	PersonID    int64
	RecordedAt  time.Time
	Method      string // registration method tag, e.g. "face_recognition"
	Confidence  float64
	Status      string // present | late | absent
	MinutesLate int
}

// AttendanceEntry is an attendance row joined with the person's name,
// served by the listing endpoints and the CSV export.
type AttendanceEntry struct {
	ID          int64
	SessionID   int64
	PersonID    int64
	PersonName  string
	RecordedAt  time.Time
	Method      string
	Confidence  float64
	Status      string
	MinutesLate int
}

// PeriodStats aggregates sessions and attendance for one academic cut.
type PeriodStats struct {
	Sessions struct {
		Total   int
		Open    int
		Past    int
		Planned int
	}
	Attendance struct {
		Total       int
		Present     int
		Late        int
		Absent      int
		AvgLateness float64 // minutes, over all records
	}
}
