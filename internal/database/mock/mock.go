// Package mock provides an in-memory implementation of the database
// interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cmena/presente/internal/database"
)

type sessionKey struct {
	Year     int
	Semester string
	Cut      int
	Course   string
	Number   int
}

type attendanceKey struct {
	SessionID int64
	PersonID  int64
}

// Store is an in-memory database.Store.
type Store struct {
	mu sync.RWMutex

	persons    map[int64]database.Person
	embeddings map[int64][]database.FaceEmbedding
	sessions   map[int64]database.Session
	byTuple    map[sessionKey]int64
	attendance map[attendanceKey]database.AttendanceRecord

	nextPersonID     int64
	nextSessionID    int64
	nextAttendanceID int64

	// Error injection
	PersonError     error
	SessionError    error
	AttendanceError error
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		persons:    make(map[int64]database.Person),
		embeddings: make(map[int64][]database.FaceEmbedding),
		sessions:   make(map[int64]database.Session),
		byTuple:    make(map[sessionKey]int64),
		attendance: make(map[attendanceKey]database.AttendanceRecord),
	}
}

func (s *Store) CreatePerson(ctx context.Context, p database.Person) (*database.Person, error) {
	if s.PersonError != nil {
		return nil, s.PersonError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPersonID++
	p.ID = s.nextPersonID
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.persons[p.ID] = p
	return &p, nil
}

func (s *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	if s.PersonError != nil {
		return nil, s.PersonError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.persons[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]database.Person, error) {
	if s.PersonError != nil {
		return nil, s.PersonError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.Person, 0, len(s.persons))
	for _, p := range s.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeletePerson(ctx context.Context, id int64) (bool, error) {
	if s.PersonError != nil {
		return false, s.PersonError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[id]; !ok {
		return false, nil
	}
	delete(s.persons, id)
	delete(s.embeddings, id)
	for k := range s.attendance {
		if k.PersonID == id {
			delete(s.attendance, k)
		}
	}
	return true, nil
}

func (s *Store) SaveEmbeddings(ctx context.Context, personID int64, embs []database.FaceEmbedding) error {
	if s.PersonError != nil {
		return s.PersonError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[personID]; !ok {
		return fmt.Errorf("person %d not found", personID)
	}
	stored := make([]database.FaceEmbedding, len(embs))
	copy(stored, embs)
	for i := range stored {
		stored[i].PersonID = personID
		stored[i].Ordinal = i
	}
	s.embeddings[personID] = stored
	return nil
}

func (s *Store) DeleteEmbeddings(ctx context.Context, personID int64) error {
	if s.PersonError != nil {
		return s.PersonError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.embeddings, personID)
	return nil
}

func (s *Store) LoadGallery(ctx context.Context) ([]database.GalleryEntry, error) {
	if s.PersonError != nil {
		return nil, s.PersonError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.persons))
	for id := range s.persons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []database.GalleryEntry
	for _, id := range ids {
		p := s.persons[id]
		if p.Role != "student" {
			continue
		}
		for _, e := range s.embeddings[id] {
			if len(e.Embedding) == 0 {
				continue
			}
			out = append(out, database.GalleryEntry{
				PersonID:  id,
				Name:      p.FullName(),
				Embedding: e.Embedding,
			})
		}
	}
	return out, nil
}

func (s *Store) CountEmbeddings(ctx context.Context, personID int64) (int, error) {
	if s.PersonError != nil {
		return 0, s.PersonError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings[personID]), nil
}

func (s *Store) FindEnabledSession(ctx context.Context) (*database.Session, error) {
	if s.SessionError != nil {
		return nil, s.SessionError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Most recently started open session wins, as in the SQL ordering.
	var best *database.Session
	for id := range s.sessions {
		sess := s.sessions[id]
		if !sess.AttendanceOpen {
			continue
		}
		if best == nil || sess.StartTime.After(best.StartTime) {
			c := sess
			best = &c
		}
	}
	return best, nil
}

func (s *Store) FindSessionAt(ctx context.Context, now time.Time) (*database.Session, error) {
	if s.SessionError != nil {
		return nil, s.SessionError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, m, d := now.Date()
	for id := range s.sessions {
		sess := s.sessions[id]
		sy, sm, sd := sess.ScheduledDate.Date()
		if sy != y || sm != m || sd != d {
			continue
		}
		if !now.Before(sess.StartTime) && !now.After(sess.EndTime) {
			c := sess
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) NextSessionNumber(ctx context.Context, year int, semester string, cut int, course string) (int, error) {
	if s.SessionError != nil {
		return 0, s.SessionError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, sess := range s.sessions {
		if sess.Year == year && sess.Semester == semester && sess.Cut == cut && sess.Course == course {
			if sess.Number > max {
				max = sess.Number
			}
		}
	}
	return max + 1, nil
}

func (s *Store) UpsertSession(ctx context.Context, sess database.Session) (*database.Session, error) {
	if s.SessionError != nil {
		return nil, s.SessionError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{sess.Year, sess.Semester, sess.Cut, sess.Course, sess.Number}
	if id, ok := s.byTuple[key]; ok {
		existing := s.sessions[id]
		return &existing, nil
	}
	s.nextSessionID++
	sess.ID = s.nextSessionID
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	s.sessions[sess.ID] = sess
	s.byTuple[key] = sess.ID
	return &sess, nil
}

func (s *Store) EnableAttendance(ctx context.Context, sessionID int64) error {
	if s.SessionError != nil {
		return s.SessionError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %d not found", sessionID)
	}
	sess.AttendanceOpen = true
	s.sessions[sessionID] = sess
	return nil
}

func (s *Store) GetSession(ctx context.Context, id int64) (*database.Session, error) {
	if s.SessionError != nil {
		return nil, s.SessionError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[id]; ok {
		return &sess, nil
	}
	return nil, nil
}

func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	if s.AttendanceError != nil {
		return false, s.AttendanceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attendanceKey{rec.SessionID, rec.PersonID}
	if _, ok := s.attendance[key]; ok {
		return false, nil
	}
	s.nextAttendanceID++
	rec.ID = s.nextAttendanceID
	s.attendance[key] = rec
	return true, nil
}

func (s *Store) ListToday(ctx context.Context, now time.Time) ([]database.AttendanceEntry, error) {
	if s.AttendanceError != nil {
		return nil, s.AttendanceError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	y, m, d := now.Date()
	var out []database.AttendanceEntry
	for key, rec := range s.attendance {
		ry, rm, rd := rec.RecordedAt.Date()
		if ry != y || rm != m || rd != d {
			continue
		}
		out = append(out, s.entryLocked(key.PersonID, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return out, nil
}

// entryLocked builds the joined listing row. Caller holds s.mu.
func (s *Store) entryLocked(personID int64, rec database.AttendanceRecord) database.AttendanceEntry {
	name := ""
	if p, ok := s.persons[personID]; ok {
		name = p.FullName()
	}
	return database.AttendanceEntry{
		ID:          rec.ID,
		SessionID:   rec.SessionID,
		PersonID:    rec.PersonID,
		PersonName:  name,
		RecordedAt:  rec.RecordedAt,
		Method:      rec.Method,
		Confidence:  rec.Confidence,
		Status:      rec.Status,
		MinutesLate: rec.MinutesLate,
	}
}

func (s *Store) PeriodStats(ctx context.Context, year int, semester string, cut int) (*database.PeriodStats, error) {
	if s.AttendanceError != nil {
		return nil, s.AttendanceError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &database.PeriodStats{}
	inPeriod := make(map[int64]bool)
	now := time.Now()
	for id, sess := range s.sessions {
		if sess.Year != year || sess.Semester != semester || sess.Cut != cut {
			continue
		}
		inPeriod[id] = true
		stats.Sessions.Total++
		switch {
		case sess.AttendanceOpen:
			stats.Sessions.Open++
		case sess.EndTime.Before(now):
			stats.Sessions.Past++
		default:
			stats.Sessions.Planned++
		}
	}
	var lateSum float64
	for key, rec := range s.attendance {
		if !inPeriod[key.SessionID] {
			continue
		}
		stats.Attendance.Total++
		switch rec.Status {
		case database.StatusPresent:
			stats.Attendance.Present++
		case database.StatusLate:
			stats.Attendance.Late++
			lateSum += float64(rec.MinutesLate)
		case database.StatusAbsent:
			stats.Attendance.Absent++
		}
	}
	// Average over late records only, matching the SQL aggregate.
	if stats.Attendance.Late > 0 {
		stats.Attendance.AvgLateness = lateSum / float64(stats.Attendance.Late)
	}
	return stats, nil
}

func (s *Store) ClearToday(ctx context.Context, now time.Time) (int64, error) {
	if s.AttendanceError != nil {
		return 0, s.AttendanceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	y, m, d := now.Date()
	var n int64
	for key, rec := range s.attendance {
		ry, rm, rd := rec.RecordedAt.Date()
		if ry == y && rm == m && rd == d {
			delete(s.attendance, key)
			n++
		}
	}
	return n, nil
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	if s.AttendanceError != nil {
		return 0, s.AttendanceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.attendance))
	s.attendance = make(map[attendanceKey]database.AttendanceRecord)
	return n, nil
}

func (s *Store) ListAll(ctx context.Context) ([]database.AttendanceEntry, error) {
	if s.AttendanceError != nil {
		return nil, s.AttendanceError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.AttendanceEntry
	for key, rec := range s.attendance {
		out = append(out, s.entryLocked(key.PersonID, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (s *Store) CountByPerson(ctx context.Context, personID int64) (int, error) {
	if s.AttendanceError != nil {
		return 0, s.AttendanceError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.attendance {
		if key.PersonID == personID {
			n++
		}
	}
	return n, nil
}

// AttendanceCount returns the number of stored records (test helper).
func (s *Store) AttendanceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attendance)
}

// SessionCount returns the number of stored sessions (test helper).
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
