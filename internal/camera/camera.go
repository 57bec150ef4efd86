// Package camera wraps a local video device behind a small JPEG-frame
// interface, keeping OpenCV bindings out of the rest of the codebase.
package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrNoDevice means none of the configured device indices opened.
	ErrNoDevice = errors.New("camera: no capture device available")
	// ErrReadFailed means the open device stopped delivering frames,
	// usually because it was unplugged or grabbed by another process.
	ErrReadFailed = errors.New("camera: frame read failed")
	// ErrClosed means Read was called on a closed camera.
	ErrClosed = errors.New("camera: device closed")
)

// Camera owns an exclusive handle on one capture device. Open probes the
// configured indices in order and keeps the first that both opens and
// delivers a frame.
type Camera struct {
	indices []int
	width   int
	height  int
	logger  *slog.Logger

	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	index   int
}

func New(indices []int, width, height int, logger *slog.Logger) *Camera {
	return &Camera{
		indices: indices,
		width:   width,
		height:  height,
		logger:  logger,
		index:   -1,
	}
}

// Open acquires the first working device. Some platforms report an index
// as open but never produce frames, so a probe read is part of the check.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	for _, idx := range c.indices {
		capture, err := gocv.OpenVideoCapture(idx)
		if err != nil {
			c.logger.Debug("camera index unavailable", "index", idx, "error", err)
			continue
		}

		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))

		probe := gocv.NewMat()
		if !capture.Read(&probe) || probe.Empty() {
			probe.Close()
			capture.Close()
			c.logger.Debug("camera index opened but produced no frame", "index", idx)
			continue
		}
		probe.Close()

		c.capture = capture
		c.mat = gocv.NewMat()
		c.index = idx
		c.logger.Info("camera opened", "index", idx, "width", c.width, "height", c.height)
		return nil
	}

	return fmt.Errorf("%w (tried indices %v)", ErrNoDevice, c.indices)
}

// ReadJPEG grabs one frame and returns it JPEG-encoded.
func (c *Camera) ReadJPEG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrClosed
	}
	if !c.capture.Read(&c.mat) || c.mat.Empty() {
		return nil, ErrReadFailed
	}

	buf, err := gocv.IMEncode(".jpg", c.mat)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	defer buf.Close()

	// The native buffer dies with buf, copy out.
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// Close releases the device so another process (or a later Open) can
// claim it. Safe to call twice.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	c.mat.Close()
	c.capture = nil
	c.index = -1
	c.logger.Info("camera released")
	if err != nil {
		return fmt.Errorf("closing capture device: %w", err)
	}
	return nil
}

// Index reports the device index currently held, or -1 when closed.
func (c *Camera) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}
