package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// XinputHook subscribes to global pointer button events by streaming
// "xinput test-xi2 --root" output. Press and release callbacks run on the
// hook's dispatch goroutine.
type XinputHook struct {
	command string
}

func NewXinputHook(command string) *XinputHook {
	if command == "" {
		command = "xinput"
	}
	return &XinputHook{command: command}
}

func (h *XinputHook) Subscribe(ctx context.Context, onPress func(), onRelease func()) (func(), error) {
	cmd := exec.CommandContext(ctx, h.command, "test-xi2", "--root")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create input hook pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start input hook: %w", err)
	}

	go dispatchButtonEvents(stdout, onPress, onRelease)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			if cmd.Process != nil {
				_ = cmd.Process.Signal(os.Interrupt)
				go func() {
					time.Sleep(time.Second)
					_ = cmd.Process.Kill()
				}()
			}
			_ = cmd.Wait()
		})
	}
	return unsubscribe, nil
}

// dispatchButtonEvents scans xinput's event stream for raw button
// transitions. Anything else (motion, key events) is ignored.
func dispatchButtonEvents(r io.Reader, onPress func(), onRelease func()) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "(RawButtonPress)"):
			onPress()
		case strings.Contains(line, "(RawButtonRelease)"):
			onRelease()
		}
	}
}
