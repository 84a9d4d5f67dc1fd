package input

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/njraladdin/screen-demo/internal/ports"
)

// XdotoolCursor polls the global pointer position with xdotool. The shape
// handle is not exposed by xdotool, so samples classify as the default
// shape on this adapter.
type XdotoolCursor struct {
	command string
}

func NewXdotoolCursor(command string) *XdotoolCursor {
	if command == "" {
		command = "xdotool"
	}
	return &XdotoolCursor{command: command}
}

func (c *XdotoolCursor) State(ctx context.Context) (ports.CursorState, error) {
	out, err := exec.CommandContext(ctx, c.command, "getmouselocation", "--shell").Output()
	if err != nil {
		return ports.CursorState{}, fmt.Errorf("query cursor: %w", err)
	}
	return parseMouseLocation(string(out))
}

// parseMouseLocation reads xdotool's --shell output (X=..\nY=..\n...).
func parseMouseLocation(out string) (ports.CursorState, error) {
	var state ports.CursorState
	var haveX, haveY bool
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "X":
			if n, err := strconv.Atoi(value); err == nil {
				state.X = n
				haveX = true
			}
		case "Y":
			if n, err := strconv.Atoi(value); err == nil {
				state.Y = n
				haveY = true
			}
		}
	}
	if !haveX || !haveY {
		return ports.CursorState{}, fmt.Errorf("unexpected cursor output: %q", out)
	}
	return state, nil
}
