package input

import (
	"strings"
	"testing"
)

func TestParseMouseLocation(t *testing.T) {
	t.Parallel()

	state, err := parseMouseLocation("X=1543\nY=302\nSCREEN=0\nWINDOW=77594631\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if state.X != 1543 || state.Y != 302 {
		t.Fatalf("unexpected position: (%d, %d)", state.X, state.Y)
	}
}

func TestParseMouseLocationRejectsPartialOutput(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"X=10\n",
		"Y=10\n",
		"X=abc\nY=10\n",
		"SCREEN=0\nWINDOW=1\n",
	}
	for _, out := range cases {
		if _, err := parseMouseLocation(out); err == nil {
			t.Fatalf("expected error for %q", out)
		}
	}
}

func TestDispatchButtonEvents(t *testing.T) {
	t.Parallel()

	stream := strings.Join([]string{
		"EVENT type 15 (RawButtonPress)",
		"    device: 2 (2)",
		"    detail: 1",
		"EVENT type 17 (RawMotion)",
		"EVENT type 16 (RawButtonRelease)",
		"    detail: 1",
		"EVENT type 15 (RawButtonPress)",
	}, "\n")

	var presses, releases int
	dispatchButtonEvents(strings.NewReader(stream),
		func() { presses++ },
		func() { releases++ },
	)

	if presses != 2 {
		t.Fatalf("expected 2 presses, got %d", presses)
	}
	if releases != 1 {
		t.Fatalf("expected 1 release, got %d", releases)
	}
}
