package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/cmena/presente/internal/database"
)

// CreatePerson inserts a person and returns it with the generated ID.
func (s *Store) CreatePerson(ctx context.Context, p database.Person) (*database.Person, error) {
	query := `
		INSERT INTO persons (uid, first_name, last_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query, p.UID, p.FirstName, p.LastName, p.Email, p.Role).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	return &p, nil
}

// GetPerson retrieves a person by ID, returns nil if not found.
func (s *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	query := `
		SELECT id, uid, first_name, last_name, email, role, created_at
		FROM persons
		WHERE id = $1
	`

	var p database.Person
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.UID, &p.FirstName, &p.LastName, &p.Email, &p.Role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &p, nil
}

// ListPersons returns all persons ordered by ID.
func (s *Store) ListPersons(ctx context.Context) ([]database.Person, error) {
	query := `
		SELECT id, uid, first_name, last_name, email, role, created_at
		FROM persons
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []database.Person
	for rows.Next() {
		var p database.Person
		if err := rows.Scan(&p.ID, &p.UID, &p.FirstName, &p.LastName, &p.Email, &p.Role, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}

// DeletePerson removes a person; embeddings and attendance cascade.
func (s *Store) DeletePerson(ctx context.Context, id int64) (bool, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM persons WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("delete person: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete person rows affected: %w", err)
	}
	return affected > 0, nil
}

// SaveEmbeddings stores embeddings for a person, replacing any existing
// row with the same ordinal.
func (s *Store) SaveEmbeddings(ctx context.Context, personID int64, embs []database.FaceEmbedding) error {
	query := `
		INSERT INTO face_embeddings (person_id, ordinal, embedding, bbox, det_score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (person_id, ordinal)
		DO UPDATE SET embedding = EXCLUDED.embedding, bbox = EXCLUDED.bbox, det_score = EXCLUDED.det_score
	`

	for _, emb := range embs {
		if len(emb.Embedding) != s.dim {
			return fmt.Errorf("embedding has %d dimensions, schema expects %d", len(emb.Embedding), s.dim)
		}
		_, err := s.pool.Exec(ctx, query,
			personID, emb.Ordinal, pgvector.NewVector(emb.Embedding), pq.Array(emb.BBox), emb.DetScore)
		if err != nil {
			return fmt.Errorf("insert embedding %d: %w", emb.Ordinal, err)
		}
	}
	return nil
}

// DeleteEmbeddings removes all embeddings of a person.
func (s *Store) DeleteEmbeddings(ctx context.Context, personID int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE person_id = $1", personID); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

// LoadGallery returns one entry per stored student embedding in
// deterministic (person, ordinal) order.
func (s *Store) LoadGallery(ctx context.Context) ([]database.GalleryEntry, error) {
	query := `
		SELECT p.id, p.first_name, p.last_name, e.embedding
		FROM face_embeddings e
		JOIN persons p ON p.id = e.person_id
		WHERE p.role = 'student'
		ORDER BY p.id, e.ordinal
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []database.GalleryEntry
	for rows.Next() {
		var (
			entry       database.GalleryEntry
			first, last string
			vec         pgvector.Vector
		)
		if err := rows.Scan(&entry.PersonID, &first, &last, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		entry.Name = first + " " + last
		entry.Embedding = vec.Slice()
		if len(entry.Embedding) == 0 {
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}
	return entries, nil
}

// CountEmbeddings returns the number of embeddings for a person.
func (s *Store) CountEmbeddings(ctx context.Context, personID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_embeddings WHERE person_id = $1", personID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}
