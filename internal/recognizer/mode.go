package recognizer

import "fmt"

// Mode is the worker's operating mode. Attendance is the steady state;
// the three enrollment modes form the multi-shot capture flow.
type Mode int

const (
	// ModeAttendance matches frames against the gallery and records
	// attendance.
	ModeAttendance Mode = iota
	// ModeEnrollCapturing collects up to four photos of a new student.
	ModeEnrollCapturing
	// ModeEnrollPreview holds a full set of four photos awaiting save
	// or reset.
	ModeEnrollPreview
	// ModeEnrollProcessing extracts embeddings and persists the new
	// student. Transient.
	ModeEnrollProcessing
)

func (m Mode) String() string {
	switch m {
	case ModeAttendance:
		return "attendance"
	case ModeEnrollCapturing:
		return "enroll_capturing"
	case ModeEnrollPreview:
		return "enroll_preview"
	case ModeEnrollProcessing:
		return "enroll_processing"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps the external mode names onto entry states. Clients only
// ever request the two top-level modes; the preview and processing states
// are reached through captures and saves.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "attendance":
		return ModeAttendance, nil
	case "enroll":
		return ModeEnrollCapturing, nil
	default:
		return ModeAttendance, fmt.Errorf("unknown mode %q", s)
	}
}
