package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/njraladdin/screen-demo/internal/domain"
	"github.com/njraladdin/screen-demo/internal/ports"
)

// bytesPerPixel is fixed by the BGRA frame format shared with the encoder.
const bytesPerPixel = 4

// FFmpegEngine captures a display as a raw BGRA frame stream using the
// platform grab device and drives the handler callback once per frame.
type FFmpegEngine struct {
	command string
}

func NewFFmpegEngine(command string) *FFmpegEngine {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegEngine{command: command}
}

// Run blocks until the handler stops the loop, capture fails, or the context
// is cancelled. The handler's OnClosed is the caller's responsibility.
func (e *FFmpegEngine) Run(ctx context.Context, display domain.DisplayDescriptor, frameRate int, handler ports.FrameHandler) error {
	if frameRate <= 0 {
		frameRate = 30
	}
	if display.Width <= 0 || display.Height <= 0 {
		return fmt.Errorf("invalid display geometry %dx%d", display.Width, display.Height)
	}

	args := append(grabArgs(display, frameRate),
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"-",
	)

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	frame := make([]byte, display.Width*display.Height*bytesPerPixel)
	var loopErr error
	var sourceClosed bool
	for {
		if _, err := io.ReadFull(stdout, frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				sourceClosed = true
			} else {
				loopErr = fmt.Errorf("read frame: %w", err)
			}
			break
		}
		if err := handler.OnFrame(frame); err != nil {
			if !errors.Is(err, ports.ErrStopCapture) {
				loopErr = err
			}
			break
		}
	}

	waitErr := stopProcess(cmd)
	if loopErr == nil && sourceClosed && waitErr != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			loopErr = fmt.Errorf("capture ended: %s", msg)
		} else {
			loopErr = fmt.Errorf("capture ended: %w", waitErr)
		}
	}
	return loopErr
}

// grabArgs builds the platform-specific ffmpeg input arguments for a
// display region grab.
func grabArgs(display domain.DisplayDescriptor, frameRate int) []string {
	size := fmt.Sprintf("%dx%d", display.Width, display.Height)
	rate := strconv.Itoa(frameRate)

	base := []string{"-hide_banner", "-loglevel", "warning"}
	switch runtime.GOOS {
	case "windows":
		return append(base,
			"-f", "gdigrab",
			"-framerate", rate,
			"-offset_x", strconv.Itoa(display.OriginX),
			"-offset_y", strconv.Itoa(display.OriginY),
			"-video_size", size,
			"-i", "desktop",
		)
	case "darwin":
		return append(base,
			"-f", "avfoundation",
			"-framerate", rate,
			"-capture_cursor", "1",
			"-i", fmt.Sprintf("%d:none", display.ID),
			"-video_size", size,
		)
	default:
		displayEnv := os.Getenv("DISPLAY")
		if displayEnv == "" {
			displayEnv = ":0"
		}
		return append(base,
			"-f", "x11grab",
			"-framerate", rate,
			"-video_size", size,
			"-i", fmt.Sprintf("%s+%d,%d", displayEnv, display.OriginX, display.OriginY),
		)
	}
}

// stopProcess interrupts the grab process and reaps it, escalating to a
// kill if it ignores the signal. Waiting also settles the stderr buffer.
func stopProcess(cmd *exec.Cmd) error {
	if cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
		killer := time.AfterFunc(1200*time.Millisecond, func() {
			_ = cmd.Process.Kill()
		})
		defer killer.Stop()
	}
	return cmd.Wait()
}
