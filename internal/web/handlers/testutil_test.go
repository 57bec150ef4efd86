package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/recognizer"
)

// fakeService implements RecognitionService with scripted responses.
type fakeService struct {
	running   bool
	snapshot  recognizer.Snapshot
	frame     []byte
	photos    [][]byte
	count     int
	person    *database.Person
	err       error
	lastMode  recognizer.Mode
	saveCalls int
}

func (f *fakeService) Running() bool                 { return f.running }
func (f *fakeService) Snapshot() recognizer.Snapshot { return f.snapshot }
func (f *fakeService) Frame() []byte                 { return f.frame }
func (f *fakeService) Photos() [][]byte              { return f.photos }

func (f *fakeService) SetMode(ctx context.Context, mode recognizer.Mode) error {
	f.lastMode = mode
	return f.err
}

func (f *fakeService) CapturePhoto(ctx context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.count++
	return f.count, nil
}

func (f *fakeService) ResetEnrollment(ctx context.Context) error {
	f.count = 0
	return f.err
}

func (f *fakeService) SaveEnrollment(ctx context.Context, firstName, lastName, email string) (*database.Person, error) {
	f.saveCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.person, nil
}

var errFake = errors.New("fake failure")

// decodeJSON unmarshals a recorded response body.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}
