// Package recognizer runs the long-lived recognition loop: it owns the
// camera, the operating mode and the enrollment buffer, matches frames
// against the gallery and records attendance. HTTP handlers talk to it
// only through commands and published snapshots.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmena/presente/internal/attendance"
	"github.com/cmena/presente/internal/database"
	"github.com/cmena/presente/internal/matcher"
)

// ErrNotRunning means a command was issued while the worker was stopped.
var ErrNotRunning = errors.New("recognition worker is not running")

// FrameSource is the camera abstraction the worker pumps frames from.
type FrameSource interface {
	Open() error
	ReadJPEG() ([]byte, error)
	Close() error
}

// FrameMatcher classifies the faces in a frame against gallery entries.
type FrameMatcher interface {
	Match(ctx context.Context, frame []byte, entries []database.GalleryEntry) ([]matcher.Result, error)
}

// Gallery is the embedding snapshot the worker matches against.
type Gallery interface {
	Entries() []database.GalleryEntry
	Size() int
	Reload(ctx context.Context) error
}

// Recorder registers sightings of matched persons.
type Recorder interface {
	RecordSighting(ctx context.Context, personID int64, confidence float64) attendance.Result
}

// Saver persists a new student from enrollment photos.
type Saver interface {
	Save(ctx context.Context, photos [][]byte, firstName, lastName, email string) (*database.Person, error)
}

// Dedup status values published with a match.
const (
	DedupRegistered = "registered"
	DedupDuplicate  = "already_registered"
	DedupCooldown   = "cooldown"
	DedupUncertain  = "uncertain"
	DedupError      = "error"
)

// MatchInfo describes the most recent recognition result.
type MatchInfo struct {
	PersonID   int64   `json:"person_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Dedup      string  `json:"dedup_status"`
}

// Snapshot is the worker state visible to HTTP handlers. Always a copy,
// never shared memory.
type Snapshot struct {
	Mode        Mode
	CameraAlive bool
	GallerySize int
	PhotoCount  int
	LastMatch   *MatchInfo
}

type command interface{}

type setModeCmd struct {
	mode  Mode
	reply chan error
}

type captureCmd struct {
	reply chan captureReply
}

type captureReply struct {
	count int
	err   error
}

type resetCmd struct {
	reply chan struct{}
}

type saveCmd struct {
	firstName string
	lastName  string
	email     string
	reply     chan saveReply
}

type saveReply struct {
	person *database.Person
	err    error
}

type reloadCmd struct{}

// Worker drives the recognition loop. Only one run may be active at a
// time; Start joins any previous run before reacquiring the camera.
type Worker struct {
	source        FrameSource
	match         FrameMatcher
	gallery       Gallery
	recorder      Recorder
	saver         Saver
	frameInterval int
	loopDelay     time.Duration
	logger        *slog.Logger

	// lifeMu serializes Start/Stop so two callers never race for the
	// device.
	lifeMu   sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	commands chan command
	runDone  chan struct{}

	// stateMu guards the published state. The loop writes, handlers
	// read copies.
	stateMu     sync.RWMutex
	mode        Mode
	photoCount  int
	photos      [][]byte
	frame       []byte
	cameraAlive bool
	lastMatch   *MatchInfo

	ctrl *Controller // loop-goroutine only
}

type Config struct {
	FrameInterval int
	LoopDelay     time.Duration
}

func NewWorker(source FrameSource, match FrameMatcher, gallery Gallery, recorder Recorder, saver Saver, cfg Config, logger *slog.Logger) *Worker {
	if cfg.FrameInterval < 1 {
		cfg.FrameInterval = 1
	}
	return &Worker{
		source:        source,
		match:         match,
		gallery:       gallery,
		recorder:      recorder,
		saver:         saver,
		frameInterval: cfg.FrameInterval,
		loopDelay:     cfg.LoopDelay,
		logger:        logger,
		ctrl:          NewController(),
	}
}

// Start opens the camera and launches the loop. A previous run is
// stopped and joined first, so the device is never held twice.
func (w *Worker) Start() error {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	w.stopLocked()

	if err := w.source.Open(); err != nil {
		return fmt.Errorf("starting recognition worker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.commands = make(chan command, 16)
	w.runDone = make(chan struct{})
	w.ctrl = NewController()
	w.publishController()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.runDone)
		w.run(ctx)
	}()

	w.logger.Info("recognition worker started")
	return nil
}

// Stop signals the loop and waits for it to exit and release the camera.
func (w *Worker) Stop() {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()
	w.stopLocked()
}

func (w *Worker) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.cancel = nil
	w.logger.Info("recognition worker stopped")
}

// Running reports whether a loop is currently active.
func (w *Worker) Running() bool {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.cameraAlive
}

// Snapshot returns a copy of the current worker state.
func (w *Worker) Snapshot() Snapshot {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()

	snap := Snapshot{
		Mode:        w.mode,
		CameraAlive: w.cameraAlive,
		GallerySize: w.gallery.Size(),
		PhotoCount:  w.photoCount,
	}
	if w.lastMatch != nil {
		m := *w.lastMatch
		snap.LastMatch = &m
	}
	return snap
}

// Frame returns a copy of the latest camera frame, or nil when the
// camera has not delivered one yet.
func (w *Worker) Frame() []byte {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()

	if w.frame == nil {
		return nil
	}
	out := make([]byte, len(w.frame))
	copy(out, w.frame)
	return out
}

// Photos returns copies of the buffered enrollment photos.
func (w *Worker) Photos() [][]byte {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()

	out := make([][]byte, len(w.photos))
	for i, p := range w.photos {
		out[i] = make([]byte, len(p))
		copy(out[i], p)
	}
	return out
}

// SetMode switches between attendance and enrollment.
func (w *Worker) SetMode(ctx context.Context, mode Mode) error {
	reply := make(chan error, 1)
	done, err := w.send(ctx, setModeCmd{mode: mode, reply: reply})
	if err != nil {
		return err
	}
	res, err := await(ctx, done, reply)
	if err != nil {
		return err
	}
	return res
}

// CapturePhoto buffers the current frame for enrollment and returns the
// new photo count.
func (w *Worker) CapturePhoto(ctx context.Context) (int, error) {
	reply := make(chan captureReply, 1)
	done, err := w.send(ctx, captureCmd{reply: reply})
	if err != nil {
		return 0, err
	}
	r, err := await(ctx, done, reply)
	if err != nil {
		return 0, err
	}
	return r.count, r.err
}

// ResetEnrollment discards buffered photos and restarts capturing.
func (w *Worker) ResetEnrollment(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	done, err := w.send(ctx, resetCmd{reply: reply})
	if err != nil {
		return err
	}
	_, err = await(ctx, done, reply)
	return err
}

// SaveEnrollment persists the buffered photos as a new student.
func (w *Worker) SaveEnrollment(ctx context.Context, firstName, lastName, email string) (*database.Person, error) {
	reply := make(chan saveReply, 1)
	cmd := saveCmd{firstName: firstName, lastName: lastName, email: email, reply: reply}
	done, err := w.send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	r, err := await(ctx, done, reply)
	if err != nil {
		return nil, err
	}
	return r.person, r.err
}

// RequestGalleryReload asks the loop to reload the gallery before its
// next matching pass.
func (w *Worker) RequestGalleryReload(ctx context.Context) error {
	_, err := w.send(ctx, reloadCmd{})
	return err
}

// send enqueues a command for the loop and returns the run's done
// channel so the caller can stop waiting if the loop dies.
func (w *Worker) send(ctx context.Context, cmd command) (<-chan struct{}, error) {
	w.lifeMu.Lock()
	commands, done := w.commands, w.runDone
	running := w.cancel != nil
	w.lifeMu.Unlock()

	if !running {
		return nil, ErrNotRunning
	}
	select {
	case commands <- cmd:
		return done, nil
	case <-done:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, reply chan T) (T, error) {
	var zero T
	select {
	case r := <-reply:
		return r, nil
	case <-done:
		return zero, ErrNotRunning
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		if err := w.source.Close(); err != nil {
			w.logger.Error("closing camera", "error", err)
		}
		w.stateMu.Lock()
		w.cameraAlive = false
		w.stateMu.Unlock()
	}()

	w.stateMu.Lock()
	w.cameraAlive = true
	w.stateMu.Unlock()

	frameCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := w.source.ReadJPEG()
		if err != nil {
			w.logger.Error("camera read failed, stopping loop", "error", err)
			return
		}

		w.drainCommands(ctx, frame)

		frameCount++
		if w.ctrl.Mode() == ModeAttendance && frameCount%w.frameInterval == 0 {
			w.matchFrame(ctx, frame)
		}

		w.stateMu.Lock()
		w.frame = frame
		w.stateMu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.loopDelay):
		}
	}
}

// drainCommands handles every pending command without blocking when the
// queue is empty. Commands mutate the controller, so all transitions
// happen on the loop goroutine.
func (w *Worker) drainCommands(ctx context.Context, frame []byte) {
	for {
		select {
		case cmd := <-w.commands:
			w.handleCommand(ctx, cmd, frame)
		default:
			return
		}
	}
}

func (w *Worker) handleCommand(ctx context.Context, cmd command, frame []byte) {
	switch c := cmd.(type) {
	case setModeCmd:
		err := w.ctrl.Switch(c.mode)
		w.publishController()
		if err == nil {
			w.logger.Info("mode switched", "mode", w.ctrl.Mode().String())
		}
		c.reply <- err

	case captureCmd:
		err := w.ctrl.Capture(frame)
		w.publishController()
		c.reply <- captureReply{count: w.ctrl.PhotoCount(), err: err}

	case resetCmd:
		w.ctrl.Reset()
		w.publishController()
		c.reply <- struct{}{}

	case saveCmd:
		c.reply <- w.processEnrollment(ctx, c)

	case reloadCmd:
		w.reloadGallery(ctx)
	}
}

func (w *Worker) processEnrollment(ctx context.Context, c saveCmd) saveReply {
	if err := w.ctrl.BeginSave(); err != nil {
		return saveReply{err: err}
	}
	w.publishController()

	person, err := w.saver.Save(ctx, w.ctrl.Photos(), c.firstName, c.lastName, c.email)
	w.ctrl.FinishSave(err == nil)
	w.publishController()

	if err != nil {
		w.logger.Warn("enrollment failed", "error", err)
		return saveReply{err: err}
	}

	w.reloadGallery(ctx)
	return saveReply{person: person}
}

func (w *Worker) reloadGallery(ctx context.Context) {
	if err := w.gallery.Reload(ctx); err != nil {
		w.logger.Error("gallery reload failed", "error", err)
		return
	}
	w.logger.Info("gallery reloaded", "entries", w.gallery.Size())
}

// matchFrame runs one matching pass. Store and matcher errors are logged
// and swallowed; only device failure stops the loop.
func (w *Worker) matchFrame(ctx context.Context, frame []byte) {
	results, err := w.match.Match(ctx, frame, w.gallery.Entries())
	if err != nil {
		w.logger.Warn("frame matching failed", "error", err)
		return
	}

	for _, res := range results {
		switch res.Verdict {
		case matcher.VerdictMatched:
			rec := w.recorder.RecordSighting(ctx, res.PersonID, res.Confidence)
			w.publishMatch(res, dedupFor(rec))
			if rec.Outcome == attendance.Rejected {
				w.logger.Warn("attendance registration failed",
					"person_id", res.PersonID, "error", rec.Reason)
			}
		case matcher.VerdictUncertain:
			w.publishMatch(res, DedupUncertain)
		}
	}
}

func dedupFor(rec attendance.Result) string {
	switch rec.Outcome {
	case attendance.Registered:
		return DedupRegistered
	case attendance.AlreadyRegistered:
		return DedupDuplicate
	case attendance.Throttled:
		return DedupCooldown
	default:
		return DedupError
	}
}

func (w *Worker) publishMatch(res matcher.Result, dedup string) {
	w.stateMu.Lock()
	w.lastMatch = &MatchInfo{
		PersonID:   res.PersonID,
		Name:       res.Name,
		Confidence: res.Confidence,
		Dedup:      dedup,
	}
	w.stateMu.Unlock()
}

func (w *Worker) publishController() {
	w.stateMu.Lock()
	w.mode = w.ctrl.Mode()
	w.photoCount = w.ctrl.PhotoCount()
	w.photos = w.ctrl.Photos()
	w.stateMu.Unlock()
}
