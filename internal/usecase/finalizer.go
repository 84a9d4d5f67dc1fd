package usecase

import (
	"fmt"
	"os"
	"time"

	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/ports"
)

// FinalizeOutcome is the result of one finalization attempt.
type FinalizeOutcome int

const (
	FinalizeCompleted FinalizeOutcome = iota
	FinalizePartialTimeout
	FinalizeError
)

// artifactFinalizer owns the encoder handle for the duration of one
// finalization attempt and enforces a deadline around the encoder's
// blocking finish call.
type artifactFinalizer struct {
	shortDeadline time.Duration
	longDeadline  time.Duration
	sizeThreshold int64
	events        ports.EventSink
}

func newArtifactFinalizer(short, long time.Duration, sizeThreshold int64, events ports.EventSink) artifactFinalizer {
	if short <= 0 {
		short = 3 * time.Second
	}
	if long <= 0 {
		long = 10 * time.Second
	}
	if long < short {
		long = short
	}
	if sizeThreshold <= 0 {
		sizeThreshold = 1 << 20
	}
	return artifactFinalizer{
		shortDeadline: short,
		longDeadline:  long,
		sizeThreshold: sizeThreshold,
		events:        events,
	}
}

// Finalize runs the encoder's finish call on its own goroutine and waits for
// it under a deadline. An artifact that already holds substantial flushed
// content gets the short deadline: its on-disk bytes are likely usable even
// if the finish call hangs. On expiry the finish goroutine is abandoned, not
// cancelled; the encoder offers no cancellable finalize primitive, and the
// abandoned goroutine may keep running harmlessly. Nothing downstream depends
// on its eventual completion.
func (f artifactFinalizer) Finalize(handle ports.EncoderSession, artifactPath string) FinalizeOutcome {
	deadline := f.longDeadline
	if info, err := os.Stat(artifactPath); err == nil && info.Size() >= f.sizeThreshold {
		deadline = f.shortDeadline
	}

	done := make(chan error, 1)
	go func() {
		done <- handle.Finish()
	}()

	select {
	case err := <-done:
		if err != nil {
			f.events.SessionError(domain.ErrorCodeFinalize, fmt.Sprintf("encoder finish failed: %v", err))
			return FinalizeError
		}
		return FinalizeCompleted
	case <-time.After(deadline):
		return FinalizePartialTimeout
	}
}
