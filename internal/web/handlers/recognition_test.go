package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cmena/presente/internal/recognizer"
)

func TestStatus(t *testing.T) {
	svc := &fakeService{
		running: true,
		snapshot: recognizer.Snapshot{
			Mode:        recognizer.ModeAttendance,
			CameraAlive: true,
			GallerySize: 12,
			LastMatch: &recognizer.MatchInfo{
				PersonID:   3,
				Name:       "Alice Test",
				Confidence: 0.91,
				Dedup:      recognizer.DedupRegistered,
			},
		},
	}
	h := NewRecognitionHandler(svc, 640, 480)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatusResponse
	decodeJSON(t, rec, &resp)
	if !resp.CameraAlive || resp.GallerySize != 12 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.CurrentMode != "attendance" {
		t.Errorf("mode = %s", resp.CurrentMode)
	}
	if resp.LastMatch == nil || resp.LastMatch.Name != "Alice Test" {
		t.Errorf("last match = %+v", resp.LastMatch)
	}
}

func TestFrameReturnsLatestJPEG(t *testing.T) {
	svc := &fakeService{frame: []byte{0xFF, 0xD8, 0xFF, 0xAA}}
	h := NewRecognitionHandler(svc, 640, 480)

	rec := httptest.NewRecorder()
	h.Frame(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frame", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %s", ct)
	}
	if rec.Body.Len() != 4 {
		t.Errorf("body length = %d", rec.Body.Len())
	}
}

func TestFrameFallsBackToPlaceholder(t *testing.T) {
	h := NewRecognitionHandler(&fakeService{}, 320, 240)

	rec := httptest.NewRecorder()
	h.Frame(rec, httptest.NewRequest(http.MethodGet, "/api/v1/frame", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// A generated placeholder is a real JPEG, starts with the SOI marker.
	body := rec.Body.Bytes()
	if len(body) < 2 || body[0] != 0xFF || body[1] != 0xD8 {
		t.Error("placeholder is not a JPEG")
	}
}

func TestSetMode(t *testing.T) {
	svc := &fakeService{running: true}
	h := NewRecognitionHandler(svc, 640, 480)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mode", strings.NewReader(`{"mode":"enroll"}`))
	h.SetMode(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastMode != recognizer.ModeEnrollCapturing {
		t.Errorf("mode passed to service = %v", svc.lastMode)
	}
}

func TestSetModeRejectsUnknown(t *testing.T) {
	h := NewRecognitionHandler(&fakeService{}, 640, 480)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mode", strings.NewReader(`{"mode":"party"}`))
	h.SetMode(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSetModeWorkerStopped(t *testing.T) {
	svc := &fakeService{err: recognizer.ErrNotRunning}
	h := NewRecognitionHandler(svc, 640, 480)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mode", strings.NewReader(`{"mode":"attendance"}`))
	h.SetMode(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
