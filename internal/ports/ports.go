package ports

import (
	"context"
	"errors"

	"github.com/njraladdin/screen-demo/internal/domain"
)

// ErrStopCapture is returned by a FrameHandler to end the frame loop cleanly.
var ErrStopCapture = errors.New("stop capture")

// EncoderConfig describes how a session's output should be encoded.
type EncoderConfig struct {
	Path      string
	Width     int
	Height    int
	FrameRate int
	Bitrate   int
}

// EncoderSession is a live encoder handle. It is owned by exactly one
// goroutine at a time; ownership moves to the finalizer at most once.
type EncoderSession interface {
	SendFrame(frame []byte) error
	Finish() error
}

// VideoEncoder opens encoder sessions writing to an artifact path.
type VideoEncoder interface {
	Open(ctx context.Context, cfg EncoderConfig) (EncoderSession, error)
}

// FrameHandler receives the capture engine's callbacks. OnFrame returning
// ErrStopCapture stops the loop cleanly; any other error aborts it. OnClosed
// is invoked exactly once after the loop has exited, with its terminal error
// (nil on a clean stop).
type FrameHandler interface {
	OnFrame(frame []byte) error
	OnClosed(err error)
}

// CaptureEngine drives a display's frame loop, invoking the handler for
// every captured frame until the handler stops it or capture fails.
type CaptureEngine interface {
	Run(ctx context.Context, display domain.DisplayDescriptor, frameRate int, handler FrameHandler) error
}

// DisplayProvider enumerates attached displays. Descriptors are produced
// fresh on every call and never mutated.
type DisplayProvider interface {
	ListDisplays(ctx context.Context) ([]domain.DisplayDescriptor, error)
}

// CursorState is one raw poll of the global pointer.
type CursorState struct {
	X           int
	Y           int
	ShapeHandle string
}

// CursorProvider polls the global cursor position and shape handle.
type CursorProvider interface {
	State(ctx context.Context) (CursorState, error)
}

// InputHook subscribes to global press/release notifications. The returned
// unsubscribe function is idempotent.
type InputHook interface {
	Subscribe(ctx context.Context, onPress func(), onRelease func()) (func(), error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	RecordingProgress(frames int, seconds float64)
	SessionError(code domain.ErrorCode, detail string)
}
