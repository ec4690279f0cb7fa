package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/notchd/notchd/internal/config"
)

var setOpts struct {
	configPath string
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and write it back to the config file.
The running daemon picks the change up via hot reload.

Supported keys:
  hover.delay              duration, e.g. 150ms
  calendar.enabled         true|false
  calendar.alerts_enabled  true|false
  calendar.poll_interval   duration, e.g. 1s
  window.preferred_screen  screen name, empty for automatic
  audio.enabled            true|false
  audio.volume             0-100`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
	// The set command edits the config file directly and does not need
	// a daemon connection.
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { setupLogger(); return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

func init() {
	rootCmd.AddCommand(setCmd)

	setCmd.Flags().StringVar(&setOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/notchd/notchd.toml)")
}

func runSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	path := setOpts.configPath
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyKey(cfg, key, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("rejected: %w", err)
	}
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("%s = %s\n", key, value)
	return nil
}

func applyKey(cfg *config.Config, key, value string) error {
	switch key {
	case "hover.delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		cfg.Hover.Delay = config.Duration(d)
	case "calendar.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", value, err)
		}
		cfg.Calendar.Enabled = b
	case "calendar.alerts_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", value, err)
		}
		cfg.Calendar.AlertsEnabled = b
	case "calendar.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		cfg.Calendar.PollInterval = config.Duration(d)
	case "window.preferred_screen":
		cfg.Window.PreferredScreen = value
	case "audio.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", value, err)
		}
		cfg.Audio.Enabled = b
	case "audio.volume":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid volume %q: %w", value, err)
		}
		cfg.Audio.Volume = n
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}
