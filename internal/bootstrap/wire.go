package bootstrap

import (
	"github.com/njraladdin/screen-demo/internal/capture"
	"github.com/njraladdin/screen-demo/internal/config"
	"github.com/njraladdin/screen-demo/internal/delivery"
	"github.com/njraladdin/screen-demo/internal/display"
	"github.com/njraladdin/screen-demo/internal/encoder"
	"github.com/njraladdin/screen-demo/internal/input"
	"github.com/njraladdin/screen-demo/internal/ports"
	"github.com/njraladdin/screen-demo/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	deliveryManager := delivery.NewManager(delivery.Config{
		ChunkSize:      cfg.Delivery.ChunkSize,
		BasePort:       cfg.Delivery.BasePort,
		PortSpan:       cfg.Delivery.PortSpan,
		AllowedOrigin:  cfg.Delivery.AllowedOrigin,
		OpenRetries:    cfg.Delivery.OpenRetries,
		OpenRetryDelay: cfg.Delivery.OpenRetryDelay,
	})

	controller := usecase.NewSessionController(
		encoder.NewFFmpegEncoder(cfg.Video.FFmpegCommand),
		capture.NewFFmpegEngine(cfg.Video.FFmpegCommand),
		display.NewProvider(),
		input.NewXdotoolCursor(cfg.Input.CursorCommand),
		input.NewXinputHook(cfg.Input.HookCommand),
		eventSink,
		deliveryManager,
		usecase.Config{
			FrameRate:      cfg.Video.FrameRate,
			Quality:        cfg.Video.Quality,
			OutputDir:      cfg.Video.OutputDir,
			SampleInterval: cfg.Sampler.Interval,
			ShortDeadline:  cfg.Finalize.ShortDeadline,
			LongDeadline:   cfg.Finalize.LongDeadline,
			SizeThreshold:  cfg.Finalize.SizeThreshold,
			StopWait:       cfg.Finalize.StopWait,
			Strategy:       cfg.Delivery.Strategy,
		},
	)

	return Services{Controller: controller, Config: cfg}, nil
}
