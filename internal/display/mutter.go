package display

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/njraladdin/screen-demo/internal/domain"
)

const (
	mutterDest   = "org.gnome.Mutter.DisplayConfig"
	mutterPath   = "/org/gnome/Mutter/DisplayConfig"
	mutterMethod = "org.gnome.Mutter.DisplayConfig.GetCurrentState"
)

type monitorSpec struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
}

type monitorMode struct {
	ID              string
	Width           int32
	Height          int32
	RefreshRate     float64
	PreferredScale  float64
	SupportedScales []float64
	Properties      map[string]dbus.Variant
}

type monitor struct {
	Spec       monitorSpec
	Modes      []monitorMode
	Properties map[string]dbus.Variant
}

type logicalMonitor struct {
	X          int32
	Y          int32
	Scale      float64
	Transform  uint32
	Primary    bool
	Monitors   []monitorSpec
	Properties map[string]dbus.Variant
}

// listMutterDisplays reads the current display layout from Mutter's
// DisplayConfig interface on the session bus. IDs are assigned 0-based in
// enumeration order; selection elsewhere uses the same convention.
func listMutterDisplays(ctx context.Context) ([]domain.DisplayDescriptor, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}

	var (
		serial     uint32
		monitors   []monitor
		logical    []logicalMonitor
		properties map[string]dbus.Variant
	)
	call := conn.Object(mutterDest, mutterPath).CallWithContext(ctx, mutterMethod, 0)
	if call.Err != nil {
		return nil, fmt.Errorf("get current state: %w", call.Err)
	}
	if err := call.Store(&serial, &monitors, &logical, &properties); err != nil {
		return nil, fmt.Errorf("decode current state: %w", err)
	}

	displays := make([]domain.DisplayDescriptor, 0, len(logical))
	for i, lm := range logical {
		width, height := fallbackWidth, fallbackHeight
		name := fmt.Sprintf("display-%d", i)
		if len(lm.Monitors) > 0 {
			name = lm.Monitors[0].Connector
			if w, h, ok := currentModeSize(monitors, lm.Monitors[0]); ok {
				width, height = w, h
			}
		}
		displays = append(displays, domain.DisplayDescriptor{
			ID:        i,
			Name:      name,
			OriginX:   int(lm.X),
			OriginY:   int(lm.Y),
			Width:     width,
			Height:    height,
			IsPrimary: lm.Primary,
		})
	}
	return displays, nil
}

func currentModeSize(monitors []monitor, spec monitorSpec) (int, int, bool) {
	for _, m := range monitors {
		if m.Spec.Connector != spec.Connector {
			continue
		}
		for _, mode := range m.Modes {
			v, ok := mode.Properties["is-current"]
			if !ok {
				continue
			}
			if current, ok := v.Value().(bool); ok && current {
				return int(mode.Width), int(mode.Height), true
			}
		}
		if len(m.Modes) > 0 {
			return int(m.Modes[0].Width), int(m.Modes[0].Height), true
		}
	}
	return 0, 0, false
}
