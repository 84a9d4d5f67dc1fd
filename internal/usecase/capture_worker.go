package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/ports"
)

// earlyFrameThreshold separates fatal from tolerated encoding failures. An
// error within the first frames indicates misconfiguration and aborts the
// session; a late, isolated error is reported and capture continues, rather
// than discarding a recording that already has substantial content.
const earlyFrameThreshold = 100

// frameMeter tracks frame counts and reports progress roughly once per
// second of recording.
type frameMeter struct {
	started      time.Time
	lastReport   time.Time
	windowFrames int
	total        int
}

func newFrameMeter(now time.Time) frameMeter {
	return frameMeter{started: now, lastReport: now}
}

// tick records one frame and reports (frames per second, total, true) when a
// reporting window has elapsed.
func (m *frameMeter) tick(now time.Time) (float64, int, bool) {
	m.total++
	m.windowFrames++
	elapsed := now.Sub(m.lastReport)
	if elapsed < time.Second {
		return 0, m.total, false
	}
	fps := float64(m.windowFrames) / elapsed.Seconds()
	m.windowFrames = 0
	m.lastReport = now
	return fps, m.total, true
}

// captureWorker drives one session's frame loop: it forwards frames to the
// encoder through the session slot, observes the stop flag once per frame,
// and hands the encoder handle to the finalizer exactly once.
type captureWorker struct {
	session   *recordingSession
	finalizer artifactFinalizer
	events    ports.EventSink
	reclaim   func()

	meter frameMeter
}

func newCaptureWorker(session *recordingSession, finalizer artifactFinalizer, events ports.EventSink, reclaim func()) *captureWorker {
	return &captureWorker{
		session:   session,
		finalizer: finalizer,
		events:    events,
		reclaim:   reclaim,
		meter:     newFrameMeter(session.startedAt),
	}
}

func (w *captureWorker) OnFrame(frame []byte) error {
	if w.session.shouldStop.Load() {
		if handle, ok := w.session.encoder.take(); ok {
			w.session.setState(domain.SessionStateFinalizing)
			w.events.SessionStateChanged(domain.SessionStateFinalizing, domain.SessionReasonFinalizing)
			if w.finalizer.Finalize(handle, w.session.artifactPath) == FinalizePartialTimeout {
				w.events.SessionStateChanged(domain.SessionStateFinalizing, domain.SessionReasonArtifactPartial)
			}
		}
		// Handle already taken means a defensive double stop; just finish.
		w.session.encodingFinished.Store(true)
		return ports.ErrStopCapture
	}

	err, active := w.session.encoder.send(frame)
	if !active {
		return ports.ErrStopCapture
	}

	fps, total, report := w.meter.tick(time.Now())
	if err != nil {
		if total <= earlyFrameThreshold {
			return fmt.Errorf("encoding failed on frame %d: %w", total, err)
		}
		w.events.SessionError(domain.ErrorCodeEncoder, fmt.Sprintf("dropped frame %d: %v", total, err))
		return nil
	}
	if report {
		w.events.RecordingProgress(total, fps)
	}
	return nil
}

// OnClosed is the safety net for every way the frame loop can exit,
// including external termination such as a disconnected display. It runs
// after OnFrame has returned for the last time, so the flag writes here
// cannot race a finalization in progress.
func (w *captureWorker) OnClosed(err error) {
	w.session.encoderActive.Store(false)
	w.session.encodingFinished.Store(true)
	w.session.recording.Store(false)

	if err != nil && !errors.Is(err, ports.ErrStopCapture) {
		w.events.SessionError(domain.ErrorCodeCapture, fmt.Sprintf("capture loop ended: %v", err))
		reason := domain.SessionReasonCaptureEnded
		if w.meter.total <= earlyFrameThreshold {
			reason = domain.SessionReasonCaptureFailedEarly
		}
		w.events.SessionStateChanged(w.session.getState(), reason)
	}

	// A requested stop owns the rest of the lifecycle; everything else
	// (capture failure, source disappearing) reclaims here.
	if !w.session.shouldStop.Load() {
		w.reclaim()
	}
}
