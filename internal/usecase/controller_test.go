package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/njraladdin/screen-demo/internal/delivery"
	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/ports"
)

func newTestController(t *testing.T, enc *fakeEncoder, engine *fakeEngine, events *fakeEventSink, cfg Config) *SessionController {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = time.Millisecond
	}
	if cfg.StopWait == 0 {
		cfg.StopWait = 5 * time.Second
	}
	return NewSessionController(
		enc,
		engine,
		&fakeDisplays{displays: []domain.DisplayDescriptor{
			{ID: 0, Name: "primary", Width: 64, Height: 48, IsPrimary: true},
			{ID: 1, Name: "side", OriginX: 64, Width: 32, Height: 32},
		}},
		&fakeCursor{x: 100, y: 80},
		&fakeHook{},
		events,
		delivery.NewManager(delivery.Config{ChunkSize: 4096}),
		cfg,
	)
}

func TestSessionControllerStartStopSuccess(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{bytesPerFrame: 512}
	engine := &fakeEngine{interval: time.Millisecond}
	events := &fakeEventSink{}
	controller := newTestController(t, enc, engine, events, Config{})

	if err := controller.Start(context.Background(), PrimaryDisplay, domain.QualityStandard); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	status := controller.Status()
	if status.State != domain.SessionStateArmed || !status.Active {
		t.Fatalf("unexpected status after start: %+v", status)
	}

	time.Sleep(50 * time.Millisecond)

	ref, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if ref.Kind != domain.DeliveryKindChunked || ref.TotalChunks < 1 {
		t.Fatalf("unexpected delivery reference: %+v", ref)
	}

	session := enc.lastSession()
	if !session.finished() {
		t.Fatalf("expected encoder finalization")
	}
	if session.frames() == 0 {
		t.Fatalf("expected frames to reach the encoder")
	}

	states := events.snapshotStates()
	if len(states) == 0 || states[0].reason != domain.SessionReasonRecordingStarted {
		t.Fatalf("expected recording_started first, got %+v", states)
	}
	if !events.sawReason(domain.SessionReasonStopRequested) {
		t.Fatalf("expected stop_requested transition")
	}
	if !events.sawReason(domain.SessionReasonArtifactReady) {
		t.Fatalf("expected artifact_ready transition")
	}
}

func TestSessionControllerStopWithoutActiveSession(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(t, &fakeEncoder{}, &fakeEngine{}, events, Config{})

	_, err := controller.Stop(context.Background())
	if !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
	if status := controller.Status(); status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("expected idle status, got %+v", status)
	}
}

func TestSessionControllerStartWhileArmedFails(t *testing.T) {
	t.Parallel()

	controller := newTestController(t, &fakeEncoder{bytesPerFrame: 16}, &fakeEngine{interval: time.Millisecond}, &fakeEventSink{}, Config{})

	if err := controller.Start(context.Background(), PrimaryDisplay, ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := controller.Start(context.Background(), PrimaryDisplay, ""); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
}

func TestSessionControllerStartAfterStopSucceeds(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{bytesPerFrame: 512}
	controller := newTestController(t, enc, &fakeEngine{interval: time.Millisecond}, &fakeEventSink{}, Config{})

	if err := controller.Start(context.Background(), PrimaryDisplay, ""); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := controller.Start(context.Background(), PrimaryDisplay, ""); err != nil {
		t.Fatalf("start after stop failed: %v", err)
	}

	// The two sessions must not share an artifact path.
	sessions := enc.sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected two encoder sessions, got %d", len(sessions))
	}
	if sessions[0].path == sessions[1].path {
		t.Fatalf("artifact paths collide: %q", sessions[0].path)
	}
}

func TestSessionControllerInvalidDisplay(t *testing.T) {
	t.Parallel()

	controller := newTestController(t, &fakeEncoder{}, &fakeEngine{}, &fakeEventSink{}, Config{})
	if err := controller.Start(context.Background(), 7, ""); !errors.Is(err, ErrInvalidDisplay) {
		t.Fatalf("expected ErrInvalidDisplay, got %v", err)
	}
}

func TestSessionControllerEarlyEncodingFailureAborts(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{bytesPerFrame: 16, sendErrFrom: 1}
	events := &fakeEventSink{}
	controller := newTestController(t, enc, &fakeEngine{}, events, Config{})

	if err := controller.Start(context.Background(), PrimaryDisplay, ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, func() bool {
		return controller.Status().State == domain.SessionStateIdle
	})

	if !events.sawErrorCode(domain.ErrorCodeCapture) {
		t.Fatalf("expected capture error event, got %+v", events.snapshotErrors())
	}
	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording after abort, got %v", err)
	}
}

func TestSessionControllerLateEncodingFailureTolerated(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{bytesPerFrame: 512, sendErrFrom: earlyFrameThreshold + 5}
	events := &fakeEventSink{}
	controller := newTestController(t, enc, &fakeEngine{interval: 50 * time.Microsecond}, events, Config{})

	if err := controller.Start(context.Background(), PrimaryDisplay, ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, func() bool {
		return events.sawErrorCode(domain.ErrorCodeEncoder)
	})
	if status := controller.Status(); !status.Active {
		t.Fatalf("late encoding failure should not abort the session: %+v", status)
	}

	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestSessionControllerFinalizeTimeoutStillDelivers(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{bytesPerFrame: 512, prefill: 2 << 20, finishHangs: true}
	events := &fakeEventSink{}
	controller := newTestController(t, enc, &fakeEngine{interval: time.Millisecond}, events, Config{
		ShortDeadline: 100 * time.Millisecond,
		LongDeadline:  30 * time.Second,
		SizeThreshold: 1 << 20,
		StopWait:      5 * time.Second,
	})

	if err := controller.Start(context.Background(), PrimaryDisplay, ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	begun := time.Now()
	ref, err := controller.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed despite partial data on disk: %v", err)
	}
	if elapsed := time.Since(begun); elapsed > 3*time.Second {
		t.Fatalf("stop took %v, expected the short finalize deadline to apply", elapsed)
	}
	if ref.TotalChunks == 0 {
		t.Fatalf("expected chunked reference over the partial artifact")
	}
}

func TestSessionControllerStopEmptyArtifactFails(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{bytesPerFrame: 0}
	controller := newTestController(t, enc, &fakeEngine{interval: time.Millisecond}, &fakeEventSink{}, Config{})

	if err := controller.Start(context.Background(), PrimaryDisplay, ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := controller.Stop(context.Background()); !errors.Is(err, ErrEmptyArtifact) {
		t.Fatalf("expected ErrEmptyArtifact, got %v", err)
	}
	if status := controller.Status(); status.State != domain.SessionStateIdle {
		t.Fatalf("expected idle after failed stop, got %+v", status)
	}
}

func TestSessionControllerSamplesAreDisplayRelative(t *testing.T) {
	t.Parallel()

	enc := &fakeEncoder{bytesPerFrame: 512}
	controller := newTestController(t, enc, &fakeEngine{interval: time.Millisecond}, &fakeEventSink{}, Config{})

	// Display 1 has origin (64, 0); cursor polls report global (100, 80).
	if err := controller.Start(context.Background(), 1, ""); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if _, err := controller.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	samples := controller.Samples()
	if len(samples) == 0 {
		t.Fatalf("expected recorded samples")
	}
	last := 0.0
	for _, s := range samples {
		if s.X != 100-64 || s.Y != 80 {
			t.Fatalf("expected display-relative coordinates, got (%d, %d)", s.X, s.Y)
		}
		if s.Timestamp < last {
			t.Fatalf("timestamps must be non-decreasing: %v after %v", s.Timestamp, last)
		}
		last = s.Timestamp
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeEncoder struct {
	mu            sync.Mutex
	opened        []*fakeEncoderSession
	bytesPerFrame int
	prefill       int
	sendErrFrom   int
	finishHangs   bool
	openErr       error
}

func (f *fakeEncoder) Open(_ context.Context, cfg ports.EncoderConfig) (ports.EncoderSession, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(cfg.Path)
	if err != nil {
		return nil, err
	}
	if f.prefill > 0 {
		if err := file.Truncate(int64(f.prefill)); err != nil {
			return nil, err
		}
	}

	session := &fakeEncoderSession{
		path:          cfg.Path,
		file:          file,
		bytesPerFrame: f.bytesPerFrame,
		sendErrFrom:   f.sendErrFrom,
		finishHangs:   f.finishHangs,
	}
	f.mu.Lock()
	f.opened = append(f.opened, session)
	f.mu.Unlock()
	return session, nil
}

func (f *fakeEncoder) sessions() []*fakeEncoderSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeEncoderSession, len(f.opened))
	copy(out, f.opened)
	return out
}

func (f *fakeEncoder) lastSession() *fakeEncoderSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}

type fakeEncoderSession struct {
	path          string
	file          *os.File
	bytesPerFrame int
	sendErrFrom   int
	finishHangs   bool

	mu         sync.Mutex
	frameCount int
	isFinished bool
}

func (s *fakeEncoderSession) SendFrame(_ []byte) error {
	s.mu.Lock()
	s.frameCount++
	count := s.frameCount
	s.mu.Unlock()

	if s.sendErrFrom > 0 && count >= s.sendErrFrom {
		return fmt.Errorf("send failed on frame %d", count)
	}
	if s.bytesPerFrame > 0 {
		if _, err := s.file.Write(make([]byte, s.bytesPerFrame)); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeEncoderSession) Finish() error {
	if s.finishHangs {
		select {} // stuck inside the external encoder; abandoned by deadline
	}
	s.mu.Lock()
	s.isFinished = true
	s.mu.Unlock()
	return s.file.Close()
}

func (s *fakeEncoderSession) frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

func (s *fakeEncoderSession) finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFinished
}

// fakeEngine invokes the handler in a tight loop until it stops the capture
// or returns a fatal error, mirroring an external capture callback loop.
type fakeEngine struct {
	interval time.Duration
}

func (e *fakeEngine) Run(ctx context.Context, display domain.DisplayDescriptor, _ int, handler ports.FrameHandler) error {
	frame := make([]byte, display.Width*display.Height*4)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := handler.OnFrame(frame); err != nil {
			if errors.Is(err, ports.ErrStopCapture) {
				return nil
			}
			return err
		}
		if e.interval > 0 {
			time.Sleep(e.interval)
		}
	}
}

type fakeDisplays struct {
	displays []domain.DisplayDescriptor
	err      error
}

func (f *fakeDisplays) ListDisplays(_ context.Context) ([]domain.DisplayDescriptor, error) {
	return f.displays, f.err
}

type fakeCursor struct {
	x, y  int
	shape string
}

func (f *fakeCursor) State(_ context.Context) (ports.CursorState, error) {
	return ports.CursorState{X: f.x, Y: f.y, ShapeHandle: f.shape}, nil
}

type fakeHook struct {
	mu      sync.Mutex
	press   func()
	release func()
	unsubs  int
	err     error
}

func (f *fakeHook) Subscribe(_ context.Context, onPress func(), onRelease func()) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.press = onPress
	f.release = onRelease
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.unsubs++
		f.mu.Unlock()
	}, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states   []stateEvent
	errors   []errEvent
	progress int
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) RecordingProgress(_ int, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress++
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) sawReason(reason domain.SessionStateReason) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.states {
		if s.reason == reason {
			return true
		}
	}
	return false
}

func (f *fakeEventSink) sawErrorCode(code domain.ErrorCode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.errors {
		if e.code == code {
			return true
		}
	}
	return false
}
