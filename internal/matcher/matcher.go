// Package matcher turns camera frames into identity verdicts by comparing
// detected face embeddings against the enrolled gallery.
package matcher

import (
	"context"
	"fmt"

	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/vision"
)

// Downscale factor applied before detection. Detection cost scales with
// pixel count and the face service handles half resolution fine.
const detectScale = 0.5

// Detector produces face embeddings for a JPEG image.
type Detector interface {
	DetectFaces(ctx context.Context, imageData []byte) (*vision.DetectResponse, error)
}

// Verdict classifies a single detected face.
type Verdict string

const (
	// VerdictMatched means the face is within tolerance of a gallery entry
	// and the match confidence clears the floor.
	VerdictMatched Verdict = "matched"
	// VerdictUncertain means the nearest entry is within tolerance but the
	// confidence is too low to record attendance.
	VerdictUncertain Verdict = "uncertain"
	// VerdictUnrecognized means no gallery entry is within tolerance,
	// or the gallery is empty.
	VerdictUnrecognized Verdict = "unrecognized"
)

// Result describes one face found in a frame. BBox coordinates are in the
// original frame's pixel space.
type Result struct {
	Verdict    Verdict
	PersonID   int64
	Name       string
	Distance   float64
	Confidence float64
	BBox       []float64
}

// Matcher matches faces in frames against gallery entries using Euclidean
// distance between embeddings.
type Matcher struct {
	detector        Detector
	tolerance       float64
	confidenceFloor float64
}

func New(detector Detector, tolerance, confidenceFloor float64) *Matcher {
	return &Matcher{
		detector:        detector,
		tolerance:       tolerance,
		confidenceFloor: confidenceFloor,
	}
}

// Match detects faces in the frame and classifies each one against the
// given gallery entries. Frames are downscaled before detection and the
// bounding boxes scaled back, so callers always see original coordinates.
func (m *Matcher) Match(ctx context.Context, frame []byte, entries []database.GalleryEntry) ([]Result, error) {
	small, err := vision.Downscale(frame, detectScale)
	if err != nil {
		return nil, fmt.Errorf("downscaling frame: %w", err)
	}

	resp, err := m.detector.DetectFaces(ctx, small)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	results := make([]Result, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		results = append(results, m.classify(face, entries))
	}
	return results, nil
}

func (m *Matcher) classify(face vision.Face, entries []database.GalleryEntry) Result {
	result := Result{
		Verdict: VerdictUnrecognized,
		BBox:    scaleBBox(face.BBox, 1/detectScale),
	}
	if len(entries) == 0 {
		return result
	}

	best := -1
	bestDist := 0.0
	for i := range entries {
		d := database.EuclideanDistance(face.Embedding, entries[i].Embedding)
		// Strict less-than keeps the first entry on equal distances, so
		// ties resolve the same way on every frame.
		if best == -1 || d < bestDist {
			best = i
			bestDist = d
		}
	}

	if bestDist > m.tolerance {
		result.Distance = bestDist
		return result
	}

	confidence := 1 - bestDist
	result.PersonID = entries[best].PersonID
	result.Name = entries[best].Name
	result.Distance = bestDist
	result.Confidence = confidence
	if confidence < m.confidenceFloor {
		result.Verdict = VerdictUncertain
	} else {
		result.Verdict = VerdictMatched
	}
	return result
}

func scaleBBox(bbox []float64, factor float64) []float64 {
	if len(bbox) == 0 {
		return nil
	}
	scaled := make([]float64, len(bbox))
	for i, v := range bbox {
		scaled[i] = v * factor
	}
	return scaled
}
