package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/recognizer"
	"github.com/cmena/presente/internal/vision"
)

// videoFrameInterval paces the MJPEG stream. The worker produces frames
// faster than a browser needs them.
const videoFrameInterval = 50 * time.Millisecond

// RecognitionService is the slice of the worker the HTTP layer uses.
type RecognitionService interface {
	Running() bool
	Snapshot() recognizer.Snapshot
	Frame() []byte
	Photos() [][]byte
	SetMode(ctx context.Context, mode recognizer.Mode) error
	CapturePhoto(ctx context.Context) (int, error)
	ResetEnrollment(ctx context.Context) error
	SaveEnrollment(ctx context.Context, firstName, lastName, email string) (*database.Person, error)
}

// RecognitionHandler exposes the live recognition state: status, frames,
// the video stream and mode switching.
type RecognitionHandler struct {
	service RecognitionService
	width   int
	height  int
}

func NewRecognitionHandler(service RecognitionService, width, height int) *RecognitionHandler {
	return &RecognitionHandler{service: service, width: width, height: height}
}

// StatusResponse mirrors what the frontend polls every second.
type StatusResponse struct {
	CameraAlive    bool                  `json:"camera_alive"`
	CurrentMode    string                `json:"current_mode"`
	GallerySize    int                   `json:"gallery_size"`
	PhotosCaptured int                   `json:"photos_captured"`
	LastMatch      *recognizer.MatchInfo `json:"last_match"`
}

// Status returns the current recognition snapshot.
func (h *RecognitionHandler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	respondJSON(w, http.StatusOK, StatusResponse{
		CameraAlive:    snap.CameraAlive,
		CurrentMode:    snap.Mode.String(),
		GallerySize:    snap.GallerySize,
		PhotosCaptured: snap.PhotoCount,
		LastMatch:      snap.LastMatch,
	})
}

// frameOrPlaceholder returns the latest camera frame, falling back to a
// generated placeholder when the camera has not produced one.
func (h *RecognitionHandler) frameOrPlaceholder() []byte {
	if frame := h.service.Frame(); frame != nil {
		return frame
	}
	return vision.PlaceholderJPEG(h.width, h.height)
}

// Frame serves a single JPEG snapshot of the camera.
func (h *RecognitionHandler) Frame(w http.ResponseWriter, r *http.Request) {
	frame := h.frameOrPlaceholder()
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(frame)
}

// Video streams MJPEG (multipart/x-mixed-replace) until the client
// disconnects.
func (h *RecognitionHandler) Video(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(videoFrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame := h.frameOrPlaceholder()
		_, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame))
		if err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

// SetMode switches the worker between attendance and enrollment.
func (h *RecognitionHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	mode, err := recognizer.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetMode(r.Context(), mode); err != nil {
		if errors.Is(err, recognizer.ErrNotRunning) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
}
