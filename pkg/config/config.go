// Package config loads application settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/gommon/log"
	"gopkg.in/yaml.v3"

	"github.com/nzoschke/energybpm/pkg/detector"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "ENERGYBPM_CONFIG"

// Config holds every setting of the CLI and the server.
type Config struct {
	// Detector holds the beat detector parameters.
	Detector detector.Config `yaml:"detector"`

	// MusicDir is the library directory served by the web server.
	// Default: music
	MusicDir string `yaml:"music_dir"`

	// Addr is the listen address of the web server.
	// Default: :8080
	Addr string `yaml:"addr"`

	// LogLevel is one of debug, info, warn, error or off.
	// Default: info
	LogLevel string `yaml:"log_level"`

	// PixelsPerSec is the waveform resolution written to sidecars.
	// Default: 100
	PixelsPerSec int `yaml:"pixels_per_sec"`

	// UseFileRate makes the detector window match the decoded file's sample
	// rate instead of Detector.SampleRate.
	// Default: false
	UseFileRate bool `yaml:"use_file_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Detector:     detector.DefaultConfig(),
		MusicDir:     "music",
		Addr:         ":8080",
		LogLevel:     "info",
		PixelsPerSec: 100,
	}
}

// Load reads path on top of the defaults. An empty path falls back to
// $ENERGYBPM_CONFIG, and with neither set the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if c.PixelsPerSec <= 0 {
		return errors.New("pixels_per_sec must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level, INFO if it cannot be parsed.
func (c Config) Level() log.Lvl {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return log.INFO
	}
	return lvl
}

// ParseLevel converts a level name into a gommon log level.
func ParseLevel(name string) (log.Lvl, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DEBUG, nil
	case "", "info":
		return log.INFO, nil
	case "warn", "warning":
		return log.WARN, nil
	case "error":
		return log.ERROR, nil
	case "off", "none":
		return log.OFF, nil
	default:
		return log.INFO, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger returns the application logger at the configured level.
func (c Config) NewLogger() *log.Logger {
	logger := log.New("energybpm")
	logger.SetHeader("${time_rfc3339} ${level} ${prefix}")
	logger.SetLevel(c.Level())
	return logger
}
