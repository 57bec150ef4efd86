package handlers

import (
	"net/http"
	"time"

	"github.com/cmena/presente/internal/academic"
	"github.com/cmena/presente/internal/database"
)

// SessionsHandler answers "which session is active right now" questions.
type SessionsHandler struct {
	resolver *academic.Resolver
	now      func() time.Time
}

func NewSessionsHandler(resolver *academic.Resolver) *SessionsHandler {
	return &SessionsHandler{resolver: resolver, now: time.Now}
}

// SessionInfoResponse describes the current academic context.
type SessionInfoResponse struct {
	Period        academic.Period   `json:"period"`
	ActiveSession *database.Session `json:"active_session"`
}

// Info returns the resolved period and the active session, if any.
func (h *SessionsHandler) Info(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	sess, err := h.resolver.FindActiveSession(r.Context(), now)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, SessionInfoResponse{
		Period:        academic.ResolvePeriod(now),
		ActiveSession: sess,
	})
}

// Enable opens attendance for the session covering this instant,
// creating one when the schedule has none.
func (h *SessionsHandler) Enable(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	sess, err := h.resolver.EnableCurrent(r.Context(), now)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		// Nothing scheduled right now, create an ad hoc open session.
		sess, err = h.resolver.EnsureSession(r.Context(), now)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "attendance enabled",
		"session": sess,
	})
}
