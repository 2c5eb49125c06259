package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"3000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Face engine
	FaceEngineURL     string        `envconfig:"FACE_ENGINE_URL" default:"http://localhost:5000"`
	FaceEngineTimeout time.Duration `envconfig:"FACE_ENGINE_TIMEOUT" default:"30s"`
	MaxFacesPerImage  int           `envconfig:"MAX_FACES_PER_IMAGE" default:"10"`

	// Matching
	FaceTolerance  float64 `envconfig:"FACE_TOLERANCE" default:"0.6"`
	IndexedMatcher bool    `envconfig:"INDEXED_MATCHER" default:"false"`

	// Liveness
	EnableLiveness    bool    `envconfig:"ENABLE_LIVENESS" default:"true"`
	LivenessThreshold float64 `envconfig:"LIVENESS_THRESHOLD" default:"0.75"`

	// Monitoring
	PollInterval        time.Duration `envconfig:"POLL_INTERVAL" default:"3s"`
	RecognitionCooldown time.Duration `envconfig:"RECOGNITION_COOLDOWN" default:"30s"`
	SnapshotTimeout     time.Duration `envconfig:"SNAPSHOT_TIMEOUT" default:"10s"`

	// Attendance status classification (wall-clock, HH:MM)
	WorkStart     string        `envconfig:"WORK_START" default:"09:00"`
	GracePeriod   time.Duration `envconfig:"GRACE_PERIOD" default:"15m"`
	HalfDayCutoff string        `envconfig:"HALF_DAY_CUTOFF" default:"13:00"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := ParseClock(cfg.WorkStart); err != nil {
		return nil, fmt.Errorf("load config: WORK_START: %w", err)
	}
	if _, err := ParseClock(cfg.HalfDayCutoff); err != nil {
		return nil, fmt.Errorf("load config: HALF_DAY_CUTOFF: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseClock converts an "HH:MM" wall-clock string into its offset from
// midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
