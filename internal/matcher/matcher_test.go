package matcher

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/vision"
)

type fakeDetector struct {
	resp *vision.DetectResponse
	err  error
}

func (f *fakeDetector) DetectFaces(ctx context.Context, imageData []byte) (*vision.DetectResponse, error) {
	return f.resp, f.err
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return buf.Bytes()
}

func detectorWith(embedding []float32) *fakeDetector {
	return &fakeDetector{resp: &vision.DetectResponse{
		FacesCount: 1,
		Faces: []vision.Face{
			{FaceIndex: 0, Dim: len(embedding), Embedding: embedding, BBox: []float64{10, 10, 20, 20}, DetScore: 0.99},
		},
	}}
}

func TestMatchEmptyGallery(t *testing.T) {
	m := New(detectorWith([]float32{1, 0, 0}), 0.45, 0.55)

	results, err := m.Match(context.Background(), testFrame(t), nil)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Verdict != VerdictUnrecognized {
		t.Errorf("empty gallery must yield unrecognized, got %s", results[0].Verdict)
	}
}

func TestMatchVerdicts(t *testing.T) {
	gallery := []database.GalleryEntry{
		{PersonID: 1, Name: "Alice Test", Embedding: []float32{1, 0, 0}},
		{PersonID: 2, Name: "Bob Test", Embedding: []float32{0, 1, 0}},
	}

	tests := []struct {
		name      string
		embedding []float32
		verdict   Verdict
		personID  int64
	}{
		{"exact match", []float32{1, 0, 0}, VerdictMatched, 1},
		{"within tolerance", []float32{1, 0.3, 0}, VerdictMatched, 1},
		{"beyond tolerance", []float32{0.5, 0.5, 0.7}, VerdictUnrecognized, 0},
		// Distance 0.46 exceeds the 0.45 tolerance by a hair.
		{"just over tolerance", []float32{1, 0.46, 0}, VerdictUnrecognized, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(detectorWith(tt.embedding), 0.45, 0.55)
			results, err := m.Match(context.Background(), testFrame(t), gallery)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if results[0].Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s (distance %.3f)", results[0].Verdict, tt.verdict, results[0].Distance)
			}
			if results[0].PersonID != tt.personID {
				t.Errorf("personID = %d, want %d", results[0].PersonID, tt.personID)
			}
		})
	}
}

func TestMatchUncertainBelowConfidenceFloor(t *testing.T) {
	gallery := []database.GalleryEntry{
		{PersonID: 1, Name: "Alice Test", Embedding: []float32{1, 0, 0}},
	}
	// Distance 0.4 is inside the tolerance, but confidence 0.6 sits below
	// a raised floor of 0.7.
	m := New(detectorWith([]float32{1, 0.4, 0}), 0.45, 0.7)

	results, err := m.Match(context.Background(), testFrame(t), gallery)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if results[0].Verdict != VerdictUncertain {
		t.Errorf("verdict = %s, want uncertain", results[0].Verdict)
	}
	if results[0].PersonID != 1 {
		t.Errorf("uncertain verdict should still name the candidate, got %d", results[0].PersonID)
	}
}

func TestMatchTieKeepsFirstEntry(t *testing.T) {
	// Both entries are at the same distance from the probe.
	gallery := []database.GalleryEntry{
		{PersonID: 7, Name: "First", Embedding: []float32{1, 0, 0}},
		{PersonID: 8, Name: "Second", Embedding: []float32{-1, 0, 0}},
	}
	m := New(detectorWith([]float32{0, 0.2, 0}), 2.0, 0)

	for i := 0; i < 5; i++ {
		results, err := m.Match(context.Background(), testFrame(t), gallery)
		if err != nil {
			t.Fatalf("match: %v", err)
		}
		if results[0].PersonID != 7 {
			t.Fatalf("tie must resolve to first entry, got %d", results[0].PersonID)
		}
	}
}

func TestMatchScalesBBoxToFrameCoordinates(t *testing.T) {
	m := New(detectorWith([]float32{1, 0, 0}), 0.45, 0.55)

	results, err := m.Match(context.Background(), testFrame(t), nil)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	want := []float64{20, 20, 40, 40}
	for i, v := range results[0].BBox {
		if v != want[i] {
			t.Fatalf("bbox = %v, want %v", results[0].BBox, want)
		}
	}
}

func TestMatchDetectorError(t *testing.T) {
	m := New(&fakeDetector{err: errors.New("service down")}, 0.45, 0.55)
	if _, err := m.Match(context.Background(), testFrame(t), nil); err == nil {
		t.Fatal("expected detector error to propagate")
	}
}
