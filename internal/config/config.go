package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/njraladdin/screen-demo/internal/domain"
)

// Config stores runtime configuration for the recorder backend.
type Config struct {
	Video    VideoConfig
	Sampler  SamplerConfig
	Finalize FinalizeConfig
	Delivery DeliveryConfig
	Input    InputConfig
}

type VideoConfig struct {
	FFmpegCommand string
	FrameRate     int
	Quality       domain.Quality
	OutputDir     string
}

type SamplerConfig struct {
	Interval time.Duration
}

type FinalizeConfig struct {
	ShortDeadline time.Duration
	LongDeadline  time.Duration
	SizeThreshold int64
	StopWait      time.Duration
}

type DeliveryConfig struct {
	Strategy       domain.DeliveryKind
	ChunkSize      int64
	BasePort       int
	PortSpan       int
	AllowedOrigin  string
	OpenRetries    int
	OpenRetryDelay time.Duration
}

type InputConfig struct {
	CursorCommand string
	HookCommand   string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Video: VideoConfig{
			FFmpegCommand: envOrDefault("SCREEN_DEMO_FFMPEG_COMMAND", "ffmpeg"),
			FrameRate:     envOrDefaultInt("SCREEN_DEMO_FRAME_RATE", 30),
			Quality:       domain.Quality(envOrDefault("SCREEN_DEMO_QUALITY", string(domain.QualityStandard))),
			OutputDir:     envOrDefault("SCREEN_DEMO_OUTPUT_DIR", os.TempDir()),
		},
		Sampler: SamplerConfig{
			Interval: time.Duration(envOrDefaultInt("SCREEN_DEMO_SAMPLE_INTERVAL_MS", 16)) * time.Millisecond,
		},
		Finalize: FinalizeConfig{
			ShortDeadline: time.Duration(envOrDefaultInt("SCREEN_DEMO_FINALIZE_SHORT_MS", 3000)) * time.Millisecond,
			LongDeadline:  time.Duration(envOrDefaultInt("SCREEN_DEMO_FINALIZE_LONG_MS", 10000)) * time.Millisecond,
			SizeThreshold: int64(envOrDefaultInt("SCREEN_DEMO_FINALIZE_SIZE_THRESHOLD", 1<<20)),
			StopWait:      time.Duration(envOrDefaultInt("SCREEN_DEMO_STOP_WAIT_MS", 15000)) * time.Millisecond,
		},
		Delivery: DeliveryConfig{
			Strategy:       domain.DeliveryKind(envOrDefault("SCREEN_DEMO_DELIVERY", string(domain.DeliveryKindChunked))),
			ChunkSize:      int64(envOrDefaultInt("SCREEN_DEMO_CHUNK_SIZE", 1<<20)),
			BasePort:       envOrDefaultInt("SCREEN_DEMO_SERVE_BASE_PORT", 18693),
			PortSpan:       envOrDefaultInt("SCREEN_DEMO_SERVE_PORT_SPAN", 10),
			AllowedOrigin:  envOrDefault("SCREEN_DEMO_ALLOWED_ORIGIN", "http://localhost:34115"),
			OpenRetries:    envOrDefaultInt("SCREEN_DEMO_ARTIFACT_OPEN_RETRIES", 5),
			OpenRetryDelay: time.Duration(envOrDefaultInt("SCREEN_DEMO_ARTIFACT_OPEN_RETRY_MS", 100)) * time.Millisecond,
		},
		Input: InputConfig{
			CursorCommand: envOrDefault("SCREEN_DEMO_CURSOR_COMMAND", "xdotool"),
			HookCommand:   envOrDefault("SCREEN_DEMO_INPUT_HOOK_COMMAND", "xinput"),
		},
	}

	if cfg.Video.FrameRate <= 0 {
		cfg.Video.FrameRate = 30
	}
	switch cfg.Video.Quality {
	case domain.QualityLow, domain.QualityStandard, domain.QualityHigh:
	default:
		cfg.Video.Quality = domain.QualityStandard
	}
	if cfg.Sampler.Interval <= 0 {
		cfg.Sampler.Interval = 16 * time.Millisecond
	}
	if cfg.Finalize.ShortDeadline <= 0 {
		cfg.Finalize.ShortDeadline = 3 * time.Second
	}
	if cfg.Finalize.LongDeadline < cfg.Finalize.ShortDeadline {
		cfg.Finalize.LongDeadline = cfg.Finalize.ShortDeadline
	}
	if cfg.Finalize.SizeThreshold <= 0 {
		cfg.Finalize.SizeThreshold = 1 << 20
	}
	if cfg.Finalize.StopWait <= 0 {
		cfg.Finalize.StopWait = 15 * time.Second
	}
	switch cfg.Delivery.Strategy {
	case domain.DeliveryKindWhole, domain.DeliveryKindChunked, domain.DeliveryKindServer:
	default:
		cfg.Delivery.Strategy = domain.DeliveryKindChunked
	}
	if cfg.Delivery.ChunkSize < 4096 {
		cfg.Delivery.ChunkSize = 1 << 20
	}
	if cfg.Delivery.BasePort <= 0 || cfg.Delivery.BasePort > 65535 {
		cfg.Delivery.BasePort = 18693
	}
	if cfg.Delivery.PortSpan <= 0 {
		cfg.Delivery.PortSpan = 10
	}
	if cfg.Delivery.OpenRetries <= 0 {
		cfg.Delivery.OpenRetries = 5
	}
	if cfg.Delivery.OpenRetryDelay <= 0 {
		cfg.Delivery.OpenRetryDelay = 100 * time.Millisecond
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
