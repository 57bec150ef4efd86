package recognizer

import (
	"errors"
	"fmt"
)

// enrollmentSize is how many photos a complete enrollment needs.
const enrollmentSize = 4

var (
	// ErrBufferFull means the capture buffer already holds a full set.
	ErrBufferFull = errors.New("capture buffer already holds a full photo set")
	// ErrNoFrame means no camera frame was available to capture.
	ErrNoFrame = errors.New("no frame available to capture")
	// ErrWrongMode means the requested action is invalid in the current
	// mode.
	ErrWrongMode = errors.New("action not valid in current mode")
)

// Controller is the mode state machine plus the enrollment photo buffer.
// It is not safe for concurrent use; the worker owns it and drives it
// from its loop, which serializes all transitions.
type Controller struct {
	mode   Mode
	photos [][]byte
}

func NewController() *Controller {
	return &Controller{mode: ModeAttendance}
}

func (c *Controller) Mode() Mode {
	return c.mode
}

// PhotoCount reports how many photos are buffered.
func (c *Controller) PhotoCount() int {
	return len(c.photos)
}

// Photos returns copies of the buffered photos in capture order.
func (c *Controller) Photos() [][]byte {
	out := make([][]byte, len(c.photos))
	for i, p := range c.photos {
		out[i] = make([]byte, len(p))
		copy(out[i], p)
	}
	return out
}

// Switch moves between the two entry modes. Entering enrollment always
// starts with an empty buffer; leaving it discards any captured photos.
func (c *Controller) Switch(target Mode) error {
	switch target {
	case ModeAttendance:
		c.mode = ModeAttendance
		c.photos = nil
		return nil
	case ModeEnrollCapturing:
		c.mode = ModeEnrollCapturing
		c.photos = nil
		return nil
	default:
		return fmt.Errorf("cannot switch directly to %s", target)
	}
}

// Capture buffers one photo. Rejected without any state change when the
// mode is wrong, the buffer is full, or the frame is missing. The fourth
// accepted photo moves the machine to preview.
func (c *Controller) Capture(frame []byte) error {
	if c.mode != ModeEnrollCapturing {
		return fmt.Errorf("%w: capture in %s", ErrWrongMode, c.mode)
	}
	if len(c.photos) >= enrollmentSize {
		return ErrBufferFull
	}
	if len(frame) == 0 {
		return ErrNoFrame
	}

	photo := make([]byte, len(frame))
	copy(photo, frame)
	c.photos = append(c.photos, photo)

	if len(c.photos) == enrollmentSize {
		c.mode = ModeEnrollPreview
	}
	return nil
}

// BeginSave moves preview to processing. Requires the full photo set.
func (c *Controller) BeginSave() error {
	if c.mode != ModeEnrollPreview {
		return fmt.Errorf("%w: save in %s", ErrWrongMode, c.mode)
	}
	if len(c.photos) != enrollmentSize {
		return fmt.Errorf("enrollment needs %d photos, have %d", enrollmentSize, len(c.photos))
	}
	c.mode = ModeEnrollProcessing
	return nil
}

// FinishSave leaves processing. Success clears the buffer and returns to
// attendance; failure keeps the photos and returns to preview so the
// save can be retried.
func (c *Controller) FinishSave(success bool) {
	if c.mode != ModeEnrollProcessing {
		return
	}
	if success {
		c.mode = ModeAttendance
		c.photos = nil
	} else {
		c.mode = ModeEnrollPreview
	}
}

// Reset discards captured photos and restarts the capture flow.
func (c *Controller) Reset() {
	c.mode = ModeEnrollCapturing
	c.photos = nil
}
