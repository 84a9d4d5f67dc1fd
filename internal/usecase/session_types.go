package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/ports"
)

// encoderSlot holds the session's encoder handle. Frames are sent through
// the slot, and take removes the handle at most once; taking it is the
// synchronization point for ownership transfer to the finalizer.
type encoderSlot struct {
	mu     sync.Mutex
	handle ports.EncoderSession
}

func (s *encoderSlot) put(handle ports.EncoderSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
}

// send forwards a frame to the held handle. The second return reports
// whether a handle was still present.
func (s *encoderSlot) send(frame []byte) (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil, false
	}
	return s.handle.SendFrame(frame), true
}

func (s *encoderSlot) take() (ports.EncoderSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle := s.handle
	s.handle = nil
	return handle, handle != nil
}

// sampleBuffer is the input sampler's append-only store. The sampler is the
// single writer; the stop handler drains it wholesale exactly once.
type sampleBuffer struct {
	mu      sync.Mutex
	samples []domain.InputSample
}

func (b *sampleBuffer) append(sample domain.InputSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, sample)
}

// peek returns a copy of the buffered samples without removing them.
func (b *sampleBuffer) peek() []domain.InputSample {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.InputSample, len(b.samples))
	copy(out, b.samples)
	return out
}

// drain moves the buffered samples out and leaves the buffer empty.
func (b *sampleBuffer) drain() []domain.InputSample {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.samples
	b.samples = nil
	return out
}

// recordingSession is the sole mutable state of one start-to-stop lifecycle.
type recordingSession struct {
	id           string
	display      domain.DisplayDescriptor
	artifactPath string
	startedAt    time.Time
	cancel       context.CancelFunc

	recording        atomic.Bool
	shouldStop       atomic.Bool
	encoderActive    atomic.Bool
	encodingFinished atomic.Bool
	pressed          atomic.Bool

	encoder encoderSlot
	samples sampleBuffer

	stateMu sync.Mutex
	state   domain.SessionState

	samplerDone chan struct{}
	captureDone chan struct{}

	unsubMu     sync.Mutex
	unsubscribe func()
}

func (s *recordingSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *recordingSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// markPressed is edge-triggered: it reports true only for the transition
// from released to pressed, so repeated press notifications for the same
// logical press cause no side effects.
func (s *recordingSession) markPressed() bool {
	return !s.pressed.Swap(true)
}

func (s *recordingSession) markReleased() {
	s.pressed.Store(false)
}

func (s *recordingSession) setUnsubscribe(fn func()) {
	s.unsubMu.Lock()
	defer s.unsubMu.Unlock()
	s.unsubscribe = fn
}

// unhook runs the input-hook unsubscribe at most once.
func (s *recordingSession) unhook() {
	s.unsubMu.Lock()
	fn := s.unsubscribe
	s.unsubscribe = nil
	s.unsubMu.Unlock()
	if fn != nil {
		fn()
	}
}
