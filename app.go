package main

import (
	"context"
	"fmt"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/njraladdin/screen-demo/internal/bootstrap"
	"github.com/njraladdin/screen-demo/internal/config"
	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/usecase"
)

const (
	eventSession  = "screendemo:session"
	eventProgress = "screendemo:progress"
	eventError    = "screendemo:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonBackendReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		a.controller.Reclaim()
	}
}

// StartRecording arms a new capture session. A displayID of -1 records the
// primary display; quality may be empty for the configured default.
func (a *App) StartRecording(displayID int, quality string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx, displayID, domain.Quality(quality)); err != nil {
		a.SessionError(domain.ErrorCodeCapture, err.Error())
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopRecording stops the active session and returns the delivery reference
// for the finalized artifact.
func (a *App) StopRecording() (domain.DeliveryReference, error) {
	if err := a.requireReady(); err != nil {
		return domain.DeliveryReference{}, err
	}
	ref, err := a.controller.Stop(a.ctx)
	if err != nil {
		a.SessionError(domain.ErrorCodeDelivery, err.Error())
		return domain.DeliveryReference{}, err
	}
	return ref, nil
}

// GetVideoChunk pulls one indexed window of the delivered artifact.
func (a *App) GetVideoChunk(index int) ([]byte, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.controller.Chunk(index)
}

// GetMousePositions returns the recorded input samples of the last session.
func (a *App) GetMousePositions() []domain.InputSample {
	if a.controller == nil {
		return nil
	}
	return a.controller.Samples()
}

// GetDisplays enumerates attached displays.
func (a *App) GetDisplays() ([]domain.DisplayDescriptor, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.controller.Displays(a.ctx)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	return map[string]string{
		"encoder":   a.cfg.Video.FFmpegCommand,
		"frameRate": fmt.Sprintf("%d", a.cfg.Video.FrameRate),
		"quality":   string(a.cfg.Video.Quality),
		"delivery":  string(a.cfg.Delivery.Strategy),
		"outputDir": a.cfg.Video.OutputDir,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// RecordingProgress emits frame progress roughly once per recorded second.
func (a *App) RecordingProgress(frames int, fps float64) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventProgress, map[string]any{
		"frames": frames,
		"fps":    fps,
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonBackendReady:
		return "Ready to record"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonStopRequested:
		return "Stopping recording..."
	case domain.SessionReasonFinalizing:
		return "Finalizing video..."
	case domain.SessionReasonArtifactReady:
		return "Recording ready"
	case domain.SessionReasonArtifactPartial:
		return "Recording ready (partially finalized)"
	case domain.SessionReasonCaptureEnded:
		return "Capture ended unexpectedly"
	case domain.SessionReasonReclaimed:
		return "Session resources released"
	case domain.SessionReasonCaptureFailedEarly:
		return "Recording failed to start"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeDisplay:
		return "Display enumeration failed"
	case domain.ErrorCodeEncoder:
		return "Encoding issue"
	case domain.ErrorCodeCapture:
		return "Capture issue"
	case domain.ErrorCodeFinalize:
		return "Finalization issue"
	case domain.ErrorCodeDelivery:
		return "Video delivery failed"
	case domain.ErrorCodeInputHook:
		return "Input tracking unavailable"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
