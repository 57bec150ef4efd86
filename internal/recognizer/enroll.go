package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/matcher"
	"github.com/cmena/presente/internal/vision"
)

// enrollPhotoMaxSize bounds the longer edge of a photo sent to the face
// service. Camera frames are smaller; the cap matters for imported images.
const enrollPhotoMaxSize = 1024

// ErrNoEmbeddings means no face could be extracted from any of the
// enrollment photos. The enrollment is rolled back completely.
var ErrNoEmbeddings = errors.New("no face found in any enrollment photo")

// Enroller persists a new student from a full set of enrollment photos.
type Enroller struct {
	detector matcher.Detector
	store    database.PersonStore
	logger   *slog.Logger
}

func NewEnroller(detector matcher.Detector, store database.PersonStore, logger *slog.Logger) *Enroller {
	return &Enroller{detector: detector, store: store, logger: logger}
}

// Save extracts one embedding per photo and creates the person with them.
// Oversized photos are shrunk before detection. Photos without a
// detectable face are skipped; at least one embedding is required. If saving the embeddings fails after the person row was
// created, the person is deleted again so a retry starts clean.
func (e *Enroller) Save(ctx context.Context, photos [][]byte, firstName, lastName, email string) (*database.Person, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, errors.New("first and last name are required")
	}

	var embeddings []database.FaceEmbedding
	for i, photo := range photos {
		prepared, err := vision.ResizeToFit(photo, enrollPhotoMaxSize)
		if err != nil {
			e.logger.Warn("could not resize enrollment photo", "photo", i+1, "error", err)
			prepared = photo
		}
		resp, err := e.detector.DetectFaces(ctx, prepared)
		if err != nil {
			return nil, fmt.Errorf("extracting embedding from photo %d: %w", i+1, err)
		}
		if len(resp.Faces) == 0 {
			e.logger.Warn("no face in enrollment photo", "photo", i+1)
			continue
		}
		face := resp.Faces[0]
		embeddings = append(embeddings, database.FaceEmbedding{
			Ordinal:   len(embeddings),
			Embedding: face.Embedding,
			BBox:      face.BBox,
			DetScore:  face.DetScore,
		})
	}
	if len(embeddings) == 0 {
		return nil, ErrNoEmbeddings
	}

	person, err := e.store.CreatePerson(ctx, database.Person{
		UID:       newPersonUID(firstName, lastName),
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Role:      "student",
	})
	if err != nil {
		return nil, fmt.Errorf("creating person: %w", err)
	}

	if err := e.store.SaveEmbeddings(ctx, person.ID, embeddings); err != nil {
		if _, delErr := e.store.DeletePerson(ctx, person.ID); delErr != nil {
			e.logger.Error("rollback of partial enrollment failed",
				"person_id", person.ID, "error", delErr)
		}
		return nil, fmt.Errorf("saving embeddings: %w", err)
	}

	e.logger.Info("student enrolled",
		"person_id", person.ID,
		"uid", person.UID,
		"name", person.FullName(),
		"embeddings", len(embeddings),
	)
	return person, nil
}
