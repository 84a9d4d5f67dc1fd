package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njraladdin/screen-demo/internal/delivery"
	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/ports"
)

var (
	ErrAlreadyRecording = errors.New("a recording session is already active")
	ErrNotRecording     = errors.New("no recording session is active")
	ErrNoDisplays       = errors.New("no displays found")
	ErrInvalidDisplay   = errors.New("invalid display selector")
	ErrEmptyArtifact    = errors.New("recording produced no artifact data")
)

// PrimaryDisplay selects whichever display the provider marks primary.
const PrimaryDisplay = -1

// Config controls session orchestration behavior.
type Config struct {
	FrameRate      int
	Quality        domain.Quality
	OutputDir      string
	SampleInterval time.Duration
	ShortDeadline  time.Duration
	LongDeadline   time.Duration
	SizeThreshold  int64
	StopWait       time.Duration
	Strategy       domain.DeliveryKind
}

// SessionController orchestrates the capture pipeline: it owns the single
// current session, spawns the capture worker and input sampler, supervises
// finalization at stop time, and hands finished artifacts to delivery.
type SessionController struct {
	encoder   ports.VideoEncoder
	engine    ports.CaptureEngine
	displays  ports.DisplayProvider
	cursor    ports.CursorProvider
	hook      ports.InputHook
	events    ports.EventSink
	delivery  *delivery.Manager
	finalizer artifactFinalizer
	cfg       Config

	mu          sync.Mutex
	current     *recordingSession
	lastSamples []domain.InputSample
}

func NewSessionController(
	encoder ports.VideoEncoder,
	engine ports.CaptureEngine,
	displays ports.DisplayProvider,
	cursor ports.CursorProvider,
	hook ports.InputHook,
	events ports.EventSink,
	deliveryManager *delivery.Manager,
	cfg Config,
) *SessionController {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 16 * time.Millisecond
	}
	if cfg.StopWait <= 0 {
		cfg.StopWait = 15 * time.Second
	}
	switch cfg.Strategy {
	case domain.DeliveryKindWhole, domain.DeliveryKindChunked, domain.DeliveryKindServer:
	default:
		cfg.Strategy = domain.DeliveryKindChunked
	}
	return &SessionController{
		encoder:   encoder,
		engine:    engine,
		displays:  displays,
		cursor:    cursor,
		hook:      hook,
		events:    events,
		delivery:  deliveryManager,
		finalizer: newArtifactFinalizer(cfg.ShortDeadline, cfg.LongDeadline, cfg.SizeThreshold, events),
		cfg:       cfg,
	}
}

// Start arms a new recording session on the selected display. It fails with
// ErrAlreadyRecording only while a previous session is still armed or
// stopping; any other leftover state is reclaimed first.
func (c *SessionController) Start(ctx context.Context, displayID int, quality domain.Quality) error {
	c.mu.Lock()
	if cur := c.current; cur != nil {
		switch cur.getState() {
		case domain.SessionStateArmed, domain.SessionStateStopping:
			c.mu.Unlock()
			return ErrAlreadyRecording
		}
	}
	c.mu.Unlock()

	c.Reclaim()

	display, err := c.resolveDisplay(ctx, displayID)
	if err != nil {
		return err
	}

	switch quality {
	case domain.QualityLow, domain.QualityStandard, domain.QualityHigh:
	default:
		quality = c.cfg.Quality
	}

	sessionID := uuid.NewString()
	artifactPath := filepath.Join(c.cfg.OutputDir,
		fmt.Sprintf("screen-demo-%d-%s.mp4", time.Now().UnixNano(), sessionID[:8]))

	sessionCtx, cancel := context.WithCancel(ctx)
	handle, err := c.encoder.Open(sessionCtx, ports.EncoderConfig{
		Path:      artifactPath,
		Width:     display.Width,
		Height:    display.Height,
		FrameRate: c.cfg.FrameRate,
		Bitrate:   quality.Bitrate(),
	})
	if err != nil {
		cancel()
		return fmt.Errorf("open encoder: %w", err)
	}

	session := &recordingSession{
		id:           sessionID,
		display:      display,
		artifactPath: artifactPath,
		startedAt:    time.Now(),
		cancel:       cancel,
		state:        domain.SessionStateArmed,
		samplerDone:  make(chan struct{}),
		captureDone:  make(chan struct{}),
	}
	session.encoder.put(handle)
	session.recording.Store(true)
	session.encoderActive.Store(true)

	c.mu.Lock()
	c.current = session
	c.lastSamples = nil
	c.mu.Unlock()

	// The global press/release subscription is best-effort: without it,
	// samples simply record is_pressed=false.
	unsubscribe, err := c.hook.Subscribe(sessionCtx, func() {
		session.markPressed()
	}, session.markReleased)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeInputHook, fmt.Sprintf("input hook unavailable: %v", err))
	} else {
		session.setUnsubscribe(unsubscribe)
	}

	worker := newCaptureWorker(session, c.finalizer, c.events, func() {
		c.reclaimSession(session)
	})

	go func() {
		defer close(session.captureDone)
		err := c.engine.Run(sessionCtx, display, c.cfg.FrameRate, worker)
		worker.OnClosed(err)
	}()
	go runSampler(sessionCtx, session, c.cursor, c.cfg.SampleInterval)

	c.events.SessionStateChanged(domain.SessionStateArmed, domain.SessionReasonRecordingStarted)
	return nil
}

// Stop signals the current session to stop, drains the input samples, waits
// a bounded time for finalization to conclude, and hands the artifact to
// delivery. A finalization timeout is not an error here; the only hard stop
// failure is an empty or missing artifact file.
func (c *SessionController) Stop(ctx context.Context) (domain.DeliveryReference, error) {
	c.mu.Lock()
	session := c.current
	c.mu.Unlock()

	if session == nil || !session.recording.Load() {
		c.Reclaim()
		return domain.DeliveryReference{}, ErrNotRecording
	}

	session.setState(domain.SessionStateStopping)
	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonStopRequested)
	session.shouldStop.Store(true)

	// The sampler notices the stop flag within one cadence tick; drain its
	// buffer exactly once, then post-process shape flicker.
	select {
	case <-session.samplerDone:
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
	}
	session.unhook()
	c.stashSamples(session.samples.drain())

	// The worker observes the stop flag at the next frame boundary and
	// finalizes; captureDone closes after its OnClosed safety net has run,
	// so encodingFinished is guaranteed once the channel is closed. On a
	// wait timeout the artifact's on-disk state is trusted as ground truth.
	select {
	case <-session.captureDone:
	case <-time.After(c.cfg.StopWait):
	}

	info, err := os.Stat(session.artifactPath)
	if err != nil || info.Size() == 0 {
		c.Reclaim()
		return domain.DeliveryReference{}, fmt.Errorf("%w: %s", ErrEmptyArtifact, session.artifactPath)
	}

	artifact := domain.ArtifactDescriptor{
		Path:         session.artifactPath,
		DeclaredSize: info.Size(),
		Ready:        true,
	}

	ref, err := c.delivery.Open(artifact, c.cfg.Strategy)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeDelivery, err.Error())
		c.Reclaim()
		return domain.DeliveryReference{}, fmt.Errorf("delivery: %w", err)
	}

	// The session's own resources are done; delivery outlives it until the
	// next arm or an explicit reclaim tears the mechanism down.
	c.releaseSession(session)
	session.setState(domain.SessionStateDelivering)
	c.events.SessionStateChanged(domain.SessionStateDelivering, domain.SessionReasonArtifactReady)
	return ref, nil
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return domain.Status{
		State:  c.current.getState(),
		Active: c.current.recording.Load(),
	}
}

// Displays enumerates attached displays.
func (c *SessionController) Displays(ctx context.Context) ([]domain.DisplayDescriptor, error) {
	return c.displays.ListDisplays(ctx)
}

// Samples returns the drained, debounced samples of the last stopped
// session, or a live peek while a session is recording.
func (c *SessionController) Samples() []domain.InputSample {
	c.mu.Lock()
	session := c.current
	last := c.lastSamples
	c.mu.Unlock()

	if session != nil && session.recording.Load() {
		return session.samples.peek()
	}
	out := make([]domain.InputSample, len(last))
	copy(out, last)
	return out
}

// Chunk reads one indexed window of the delivered artifact.
func (c *SessionController) Chunk(index int) ([]byte, error) {
	return c.delivery.Chunk(index)
}

// Reclaim resets all session-scoped resources to idle. It is idempotent,
// never fails, and every step is independently guarded; it never deletes
// the artifact file itself.
func (c *SessionController) Reclaim() {
	c.mu.Lock()
	session := c.current
	c.current = nil
	c.mu.Unlock()

	c.releaseSession(session)
	c.delivery.Teardown()
}

// reclaimSession is the capture worker's safety net: it releases the given
// session only if it is still current, so an abnormal loop exit from an old
// session cannot tear down a newer one.
func (c *SessionController) reclaimSession(session *recordingSession) {
	c.mu.Lock()
	if c.current != session {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	c.releaseSession(session)
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReclaimed)
}

func (c *SessionController) releaseSession(session *recordingSession) {
	if session == nil {
		return
	}
	session.cancel()
	session.shouldStop.Store(false)
	session.recording.Store(false)
	session.encoderActive.Store(false)
	session.unhook()
	// Clearing the buffer must not discard samples the stop handler has not
	// picked up yet; whichever side drains first gets them, the other sees
	// an empty buffer and leaves the stash alone.
	c.stashSamples(session.samples.drain())
	session.setState(domain.SessionStateIdle)
}

// stashSamples records the drained samples of a finished session, debounced,
// for GetMousePositions. Empty drains never overwrite an earlier stash.
func (c *SessionController) stashSamples(samples []domain.InputSample) {
	if len(samples) == 0 {
		return
	}
	samples = debounceCursorShapes(samples)
	c.mu.Lock()
	c.lastSamples = samples
	c.mu.Unlock()
}

func (c *SessionController) resolveDisplay(ctx context.Context, displayID int) (domain.DisplayDescriptor, error) {
	displays, err := c.displays.ListDisplays(ctx)
	if err != nil {
		return domain.DisplayDescriptor{}, fmt.Errorf("list displays: %w", err)
	}
	if len(displays) == 0 {
		return domain.DisplayDescriptor{}, ErrNoDisplays
	}

	// Display selection is 0-based in enumeration order, matching the IDs
	// handed out by ListDisplays.
	if displayID == PrimaryDisplay {
		for _, d := range displays {
			if d.IsPrimary {
				return d, nil
			}
		}
		return displays[0], nil
	}
	if displayID < 0 || displayID >= len(displays) {
		return domain.DisplayDescriptor{}, fmt.Errorf("%w: %d", ErrInvalidDisplay, displayID)
	}
	return displays[displayID], nil
}
