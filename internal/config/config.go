package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/nfrund/actwatch/internal/domain"
)

// Prefix is prepended to every environment variable read by Parse.
const Prefix = "ACTWATCH_"

const (
	SourceFile    = "file"
	SourceOverlay = "overlay"

	DetectionAuto = "auto"
	DetectionIdle = "idle"
	DetectionFeed = "feed"
)

// Config holds all configuration for the daemon.
type Config struct {
	Source string `env:"SOURCE" envDefault:"file" validate:"oneof=file overlay"`

	LogDir          string        `env:"LOG_DIR" envDefault:"~/AppData/Roaming/Advanced Combat Tracker/FFXIVLogs" validate:"notblank"`
	StartAtEnd      bool          `env:"START_AT_END" envDefault:"true"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"60s" validate:"gt=0"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"100ms" validate:"gt=0"`

	OverlayURL string `env:"OVERLAY_URL" envDefault:"ws://127.0.0.1:10501/ws" validate:"url"`

	ProfilePath     string        `env:"PROFILE" envDefault:"profiles/default.yaml" validate:"notblank"`
	PrimaryPlayer   string        `env:"PRIMARY_PLAYER"`
	Detection       string        `env:"DETECTION" envDefault:"auto" validate:"oneof=auto idle feed"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"20s" validate:"gt=0"`
	IdlePoll        time.Duration `env:"IDLE_POLL" envDefault:"200ms" validate:"gt=0"`
	BufferLeniency  time.Duration `env:"BUFFER_LENIENCY" envDefault:"0s" validate:"gte=0"`
	CombatAbilities []string      `env:"COMBAT_ABILITIES" envDefault:"attack" envSeparator:","`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8787" validate:"hostname_port"`
}

// Load reads a .env file when present and parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
		slog.Debug("No .env file found, relying on environment variables")
	}
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment when
// environ is nil, then validates it.
func Parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: Prefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("%w: parse env: %v", domain.ErrInvalidConfig, err)
	}

	dir, err := expandHome(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	cfg.LogDir = dir

	abilities := cfg.CombatAbilities[:0]
	for _, a := range cfg.CombatAbilities {
		if a = strings.TrimSpace(a); a != "" {
			abilities = append(abilities, a)
		}
	}
	cfg.CombatAbilities = abilities

	if err := domain.Validate(domain.ErrInvalidConfig, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FeedDetection reports whether combat state should follow the status feed
// only. In auto mode that is the case when the overlay is the source.
func (c *Config) FeedDetection() bool {
	switch c.Detection {
	case DetectionFeed:
		return true
	case DetectionIdle:
		return false
	}
	return c.Source == SourceOverlay
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
