package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cmena/presente/internal/recognizer"
)

// EnrollHandler drives the 4-photo enrollment flow.
type EnrollHandler struct {
	service RecognitionService
}

func NewEnrollHandler(service RecognitionService) *EnrollHandler {
	return &EnrollHandler{service: service}
}

func enrollStatus(err error, w http.ResponseWriter) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, recognizer.ErrNotRunning):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, recognizer.ErrWrongMode),
		errors.Is(err, recognizer.ErrBufferFull),
		errors.Is(err, recognizer.ErrNoFrame):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
	return false
}

// Capture buffers the current camera frame as an enrollment photo.
func (h *EnrollHandler) Capture(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CapturePhoto(r.Context())
	if !enrollStatus(err, w) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  count,
		"status": h.service.Snapshot().Mode.String(),
	})
}

// Photos returns the buffered photos, base64-encoded for the preview UI.
func (h *EnrollHandler) Photos(w http.ResponseWriter, r *http.Request) {
	photos := h.service.Photos()
	encoded := make([]string, len(photos))
	for i, p := range photos {
		encoded[i] = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(p)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":  len(encoded),
		"photos": encoded,
	})
}

type saveEnrollmentRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Save finalizes the enrollment with the buffered photos.
func (h *EnrollHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	person, err := h.service.SaveEnrollment(r.Context(), req.FirstName, req.LastName, req.Email)
	if err != nil {
		if errors.Is(err, recognizer.ErrNotRunning) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		// Enrollment failures (no faces, missing names, store errors)
		// leave the photos buffered for a retry.
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "student enrolled",
		"person_id": person.ID,
		"uid":       person.UID,
	})
}

// Reset discards the buffered photos and restarts capturing.
func (h *EnrollHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetEnrollment(r.Context()); !enrollStatus(err, w) {
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
