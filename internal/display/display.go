package display

import (
	"context"
	"runtime"

	"github.com/njraladdin/screen-demo/internal/domain"
)

// Provider enumerates attached displays. On Linux it queries the Mutter
// display configuration over the session bus; elsewhere, or when the bus is
// unavailable, it falls back to a single primary display with the default
// geometry so recording still works headless.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

const (
	fallbackWidth  = 1920
	fallbackHeight = 1080
)

func (p *Provider) ListDisplays(ctx context.Context) ([]domain.DisplayDescriptor, error) {
	if runtime.GOOS == "linux" {
		if displays, err := listMutterDisplays(ctx); err == nil && len(displays) > 0 {
			return displays, nil
		}
	}
	return []domain.DisplayDescriptor{{
		ID:        0,
		Name:      "primary",
		Width:     fallbackWidth,
		Height:    fallbackHeight,
		IsPrimary: true,
	}}, nil
}
