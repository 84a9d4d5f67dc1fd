package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/njraladdin/screen-demo/internal/ports"
)

// FFmpegEncoder encodes raw BGRA frames into an MP4 artifact using ffmpeg.
type FFmpegEncoder struct {
	command string
}

func NewFFmpegEncoder(command string) *FFmpegEncoder {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegEncoder{command: command}
}

func (e *FFmpegEncoder) Open(ctx context.Context, cfg ports.EncoderConfig) (ports.EncoderSession, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30
	}
	if cfg.Bitrate <= 0 {
		cfg.Bitrate = 5_000_000
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-r", strconv.Itoa(cfg.FrameRate),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-b:v", strconv.Itoa(cfg.Bitrate),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		cfg.Path,
	}

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = stdin.Close()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before encoding started: %w: %s", err, trimmed(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before encoding started")
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdin:   stdin,
		stderr:  &stderr,
		waitErr: waitErr,
	}, nil
}

type ffmpegSession struct {
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	waitErr <-chan error

	finishOnce sync.Once
	finishErr  error
}

func (s *ffmpegSession) SendFrame(frame []byte) error {
	if _, err := s.stdin.Write(frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Finish closes the frame stream and blocks until ffmpeg has flushed the
// container. The caller enforces any deadline; this call itself has none.
func (s *ffmpegSession) Finish() error {
	s.finishOnce.Do(func() {
		if err := s.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.finishErr = err
		}

		if err, ok := <-s.waitErr; ok && err != nil {
			s.finishErr = fmt.Errorf("ffmpeg finish: %w", err)
		}

		if s.finishErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.finishErr = fmt.Errorf("%w: %s", s.finishErr, trimmed(s.stderr.String()))
		}
	})
	return s.finishErr
}

func trimmed(input string) string {
	return string(bytes.TrimSpace([]byte(input)))
}
