package handlers

import (
	"net/http"
	"time"

	"github.com/cmena/presente/internal/academic"
	"github.com/cmena/presente/internal/database"
)

// AttendanceHandler serves attendance listings and period statistics.
type AttendanceHandler struct {
	store database.AttendanceStore
	now   func() time.Time
}

func NewAttendanceHandler(store database.AttendanceStore) *AttendanceHandler {
	return &AttendanceHandler{store: store, now: time.Now}
}

// Today lists today's attendance records, newest first.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListToday(r.Context(), h.now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []database.AttendanceEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"records": entries,
	})
}

// Stats aggregates sessions and attendance for the current cut.
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	period := academic.ResolvePeriod(now)

	stats, err := h.store.PeriodStats(r.Context(), period.Year, period.Semester, period.Cut)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"period": period,
		"stats":  stats,
	})
}
