// Package config loads and persists notchd settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that can be unmarshaled from human-readable
// strings like "500ms", "5s", "1m", or from integer milliseconds.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '500ms', '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the configuration for notchd.
// Loaded from ~/.config/notchd/notchd.toml
type Config struct {
	Hover    HoverConfig    `toml:"hover"`
	Calendar CalendarConfig `toml:"calendar"`
	Window   WindowConfig   `toml:"window"`
	Audio    AudioConfig    `toml:"audio"`
}

// HoverConfig controls the debounced hover filter.
type HoverConfig struct {
	Delay Duration `toml:"delay"` // Debounce delay for raw hover samples
}

// CalendarConfig controls the calendar live activity.
type CalendarConfig struct {
	Enabled       bool     `toml:"enabled"`        // Master switch for calendar integration
	AlertsEnabled bool     `toml:"alerts_enabled"` // Master switch for alert phases
	Thresholds    []int    `toml:"thresholds"`     // Enabled alert thresholds in minutes: 1, 5, 15
	PollInterval  Duration `toml:"poll_interval"`  // Alert scheduler evaluation interval
	AgendaPath    string   `toml:"agenda_path"`    // Agenda file; empty means the default data path
}

// ThresholdEnabled reports whether the given threshold (in minutes) is on.
func (c CalendarConfig) ThresholdEnabled(minutes int) bool {
	for _, m := range c.Thresholds {
		if m == minutes {
			return true
		}
	}
	return false
}

// WindowConfig controls overlay window placement and recovery timing.
type WindowConfig struct {
	PreferredScreen string   `toml:"preferred_screen"` // Screen name; empty means automatic
	ChangeDebounce  Duration `toml:"change_debounce"`  // Debounce for screen-parameter-change events
	SettleDelay     Duration `toml:"settle_delay"`     // Pause before rebuilding on a new screen
}

// AudioConfig controls alert chimes.
type AudioConfig struct {
	Enabled bool        `toml:"enabled"`
	Volume  int         `toml:"volume"` // 0-100
	Sounds  SoundConfig `toml:"sounds"`
}

// SoundConfig contains per-phase chime file paths.
type SoundConfig struct {
	Countdown     string `toml:"countdown"`
	FiveMinute    string `toml:"five_minute"`
	FifteenMinute string `toml:"fifteen_minute"`
}

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Hover: HoverConfig{
			Delay: Duration(150 * time.Millisecond),
		},
		Calendar: CalendarConfig{
			Enabled:       true,
			AlertsEnabled: true,
			Thresholds:    []int{1, 5, 15},
			PollInterval:  Duration(time.Second),
		},
		Window: WindowConfig{
			ChangeDebounce: Duration(500 * time.Millisecond),
			SettleDelay:    Duration(300 * time.Millisecond),
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  80,
		},
	}
}

// Path returns the path to the config file.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "notchd", "notchd.toml"), nil
}

// Load loads the configuration from path. An empty path uses the default
// location; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay with file contents.
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to path atomically. An empty path uses the
// default location.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Hover.Delay.Duration() < 0 {
		return fmt.Errorf("hover delay must not be negative, got %s", c.Hover.Delay.Duration())
	}
	if c.Calendar.PollInterval.Duration() < 100*time.Millisecond {
		return fmt.Errorf("poll_interval must be at least 100ms, got %s", c.Calendar.PollInterval.Duration())
	}
	for _, m := range c.Calendar.Thresholds {
		if m != 1 && m != 5 && m != 15 {
			return fmt.Errorf("invalid alert threshold %d, must be one of: 1, 5, 15", m)
		}
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	if c.Window.ChangeDebounce.Duration() < 0 || c.Window.SettleDelay.Duration() < 0 {
		return fmt.Errorf("window delays must not be negative")
	}
	return nil
}

// AgendaPath resolves the agenda file path, expanding ~ and falling back to
// the default data location when unset.
func (c *Config) AgendaPath() (string, error) {
	if c.Calendar.AgendaPath != "" {
		return expandPath(c.Calendar.AgendaPath), nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agenda.yaml"), nil
}

// DataDir returns the notchd data directory.
// Uses XDG_DATA_HOME or defaults to ~/.local/share/notchd.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "notchd"), nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
