// Package config provides configuration loading for frameview. It reads YAML
// files and fills anything missing or out of range with defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/frameview/internal/annotation"
	"github.com/ironsheep/frameview/internal/pixeldata"
	"github.com/ironsheep/frameview/internal/viewport"
)

// LogLevelEnv overrides log.level when set.
const LogLevelEnv = "FRAMEVIEW_LOG_LEVEL"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Fetch controls the frame byte source
	Fetch struct {
		// URLTemplate is a printf template with one %s for the instance id
		URLTemplate string `yaml:"urlTemplate"`

		// TimeoutSeconds bounds a single frame request
		TimeoutSeconds int `yaml:"timeoutSeconds"`

		// Concurrency is the most fetches allowed in flight
		Concurrency int `yaml:"concurrency"`
	} `yaml:"fetch"`

	// Decode tunes the frame source adapter
	Decode struct {
		// ScanWindow bounds the codestream marker search in bytes
		ScanWindow int `yaml:"scanWindow"`

		// SwapThreshold is the sampled maximum below which wavelet output is
		// checked for swapped byte order
		SwapThreshold int `yaml:"swapThreshold"`
	} `yaml:"decode"`

	// Annotation controls the measurement engine
	Annotation struct {
		HandleRadius  float64 `yaml:"handleRadius"`
		MarkerRadius  float64 `yaml:"markerRadius"`
		Color         string  `yaml:"color"`
		SelectedColor string  `yaml:"selectedColor"`
		DefaultText   string  `yaml:"defaultText"`
	} `yaml:"annotation"`

	// View bounds the zoom range
	View struct {
		MinScale float64 `yaml:"minScale"`
		MaxScale float64 `yaml:"maxScale"`
	} `yaml:"view"`

	Log struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Fetch.TimeoutSeconds = 30
	cfg.Fetch.Concurrency = 5

	cfg.Decode.ScanWindow = pixeldata.DefaultScanWindow
	cfg.Decode.SwapThreshold = pixeldata.DefaultSwapThreshold

	cfg.Annotation.HandleRadius = annotation.DefaultHandleRadius
	cfg.Annotation.MarkerRadius = annotation.DefaultMarkerRadius
	cfg.Annotation.Color = annotation.DefaultColor
	cfg.Annotation.SelectedColor = annotation.DefaultSelectedColor
	cfg.Annotation.DefaultText = annotation.DefaultText

	cfg.View.MinScale = viewport.DefaultMinScale
	cfg.View.MaxScale = 40

	cfg.Log.Level = "info"
	return cfg
}

// Validate clamps values back to their defaults when out of range. It
// reports the one problem it cannot repair: an unusable color.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = d.Fetch.TimeoutSeconds
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = d.Fetch.Concurrency
	}
	if c.Decode.ScanWindow <= 0 {
		c.Decode.ScanWindow = d.Decode.ScanWindow
	}
	if c.Decode.SwapThreshold <= 0 || c.Decode.SwapThreshold > 0xFFFF {
		c.Decode.SwapThreshold = d.Decode.SwapThreshold
	}
	if c.Annotation.HandleRadius <= 0 {
		c.Annotation.HandleRadius = d.Annotation.HandleRadius
	}
	if c.Annotation.MarkerRadius < c.Annotation.HandleRadius {
		c.Annotation.MarkerRadius = max(d.Annotation.MarkerRadius, c.Annotation.HandleRadius)
	}
	if c.Annotation.Color == "" {
		c.Annotation.Color = d.Annotation.Color
	}
	if c.Annotation.SelectedColor == "" {
		c.Annotation.SelectedColor = d.Annotation.SelectedColor
	}
	if c.Annotation.DefaultText == "" {
		c.Annotation.DefaultText = d.Annotation.DefaultText
	}
	if c.View.MinScale < viewport.DefaultMinScale {
		c.View.MinScale = viewport.DefaultMinScale
	}
	if c.View.MaxScale <= c.View.MinScale {
		c.View.MaxScale = d.View.MaxScale
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		c.Log.Level = d.Log.Level
	}
	if _, err := annotation.NewPalette(c.Annotation.Color, c.Annotation.SelectedColor); err != nil {
		return err
	}
	return nil
}

// Timeout returns the fetch timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Palette builds the annotation palette from the configured colors.
func (c *Config) Palette() (*annotation.Palette, error) {
	return annotation.NewPalette(c.Annotation.Color, c.Annotation.SelectedColor)
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// LogLevel returns the effective log level, honoring LogLevelEnv.
func (c *Config) LogLevel() slog.Level {
	if env := os.Getenv(LogLevelEnv); env != "" {
		if l, err := parseLevel(env); err == nil {
			return l
		}
	}
	l, _ := parseLevel(c.Log.Level)
	return l
}

// Load loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
