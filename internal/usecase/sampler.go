package usecase

import (
	"context"
	"time"

	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/ports"
)

// shapeDebounceWindow is the minimum duration a cursor-shape run must span
// to survive post-processing; shorter runs are treated as flicker.
const shapeDebounceWindow = 100 * time.Millisecond

// runSampler polls the global cursor at a fixed cadence for the lifetime of
// the session, storing display-relative samples into the session buffer.
// The pressed flag is maintained asynchronously by the input hook callbacks;
// the sampler only reads it.
func runSampler(ctx context.Context, session *recordingSession, cursor ports.CursorProvider, interval time.Duration) {
	defer close(session.samplerDone)

	if interval <= 0 {
		interval = 16 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTimestamp := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if session.shouldStop.Load() || !session.recording.Load() {
			return
		}

		state, err := cursor.State(ctx)
		if err != nil {
			continue
		}

		timestamp := time.Since(session.startedAt).Seconds()
		if timestamp < lastTimestamp {
			timestamp = lastTimestamp
		}
		lastTimestamp = timestamp

		session.samples.append(domain.InputSample{
			X:         state.X - session.display.OriginX,
			Y:         state.Y - session.display.OriginY,
			Timestamp: timestamp,
			IsPressed: session.pressed.Load(),
			Shape:     classifyCursorShape(state.ShapeHandle),
		})
	}
}

// classifyCursorShape maps a raw shape handle onto the closed shape set.
// Handles outside the known system shapes map to other.
func classifyCursorShape(handle string) domain.CursorShape {
	switch handle {
	case "", "left_ptr", "arrow", "default":
		return domain.CursorShapeDefault
	case "xterm", "ibeam", "text":
		return domain.CursorShapeText
	case "hand", "hand1", "hand2", "pointer", "pointing_hand":
		return domain.CursorShapePointer
	default:
		return domain.CursorShapeOther
	}
}

// debounceCursorShapes removes one-frame shape flicker from a drained sample
// sequence: any contiguous run of a shape spanning under the debounce window
// is reclassified to the shape of the immediately preceding run, unless it is
// the very first run. Click and position data are untouched. Single linear
// scan; reclassification never reaches further back than the predecessor run.
func debounceCursorShapes(samples []domain.InputSample) []domain.InputSample {
	if len(samples) == 0 {
		return samples
	}

	runStart := 0
	previousShape := samples[0].Shape
	firstRun := true
	for i := 1; i <= len(samples); i++ {
		if i < len(samples) && samples[i].Shape == samples[runStart].Shape {
			continue
		}

		span := samples[i-1].Timestamp - samples[runStart].Timestamp
		if !firstRun && span < shapeDebounceWindow.Seconds() {
			for j := runStart; j < i; j++ {
				samples[j].Shape = previousShape
			}
		} else {
			previousShape = samples[runStart].Shape
		}

		firstRun = false
		runStart = i
	}

	return samples
}
