package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds every tuning knob of the client. Values come from the
// environment (optionally seeded from a .env file); zero configuration
// yields a playable default
type Config struct {
	// Endpoints
	ServerURL  string `env:"VIGIL_SERVER_URL" envDefault:"ws://localhost:8080/ws"`
	SessionURL string `env:"VIGIL_SESSION_URL" envDefault:"http://localhost:8080"`

	// Connection manager
	RetryMax     int           `env:"VIGIL_RETRY_MAX" envDefault:"5"`
	RetryDelay   time.Duration `env:"VIGIL_RETRY_DELAY" envDefault:"2s"`
	Heartbeat    time.Duration `env:"VIGIL_HEARTBEAT" envDefault:"15s"`
	DialTimeout  time.Duration `env:"VIGIL_DIAL_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"VIGIL_WRITE_TIMEOUT" envDefault:"5s"`

	// Audio
	Volume   float64       `env:"VIGIL_VOLUME" envDefault:"0.8"`
	FadeIn   time.Duration `env:"VIGIL_FADE_IN" envDefault:"300ms"`
	FadeOut  time.Duration `env:"VIGIL_FADE_OUT" envDefault:"250ms"`
	QueueMax int           `env:"VIGIL_QUEUE_MAX" envDefault:"8"`
	Muted    bool          `env:"VIGIL_MUTE" envDefault:"false"`

	// Presentation
	VeilDuration    time.Duration `env:"VIGIL_VEIL_DURATION" envDefault:"1200ms"`
	VisitLinger     time.Duration `env:"VIGIL_VISIT_LINGER" envDefault:"8s"`
	NoticeDuration  time.Duration `env:"VIGIL_NOTICE_DURATION" envDefault:"6s"`
	FrameInterval   time.Duration `env:"VIGIL_FRAME_INTERVAL" envDefault:"33ms"`
	MaxFrameDelta   time.Duration `env:"VIGIL_MAX_FRAME_DELTA" envDefault:"250ms"`
	CameraSmoothing float64       `env:"VIGIL_CAMERA_SMOOTHING" envDefault:"6.0"`

	// Diagnostics
	LogPath  string `env:"VIGIL_LOG_PATH" envDefault:"logs/vigil.log"`
	LogDebug bool   `env:"VIGIL_LOG_DEBUG" envDefault:"false"`
}

// Load reads .env (if present) and the process environment into a Config
func Load() (*Config, error) {
	// Missing .env is the common case, not an error
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	if c.RetryMax < 0 {
		return errors.New("retry max must be >= 0")
	}
	if c.RetryDelay <= 0 {
		return errors.New("retry delay must be positive")
	}
	if c.QueueMax < 1 {
		return errors.New("audio queue bound must be >= 1")
	}
	if c.Volume < 0 || c.Volume > 1 {
		return errors.New("volume must be within [0,1]")
	}
	if c.FrameInterval <= 0 || c.MaxFrameDelta < c.FrameInterval {
		return errors.New("frame timing misconfigured")
	}
	if c.CameraSmoothing <= 0 {
		return errors.New("camera smoothing must be positive")
	}
	return nil
}
