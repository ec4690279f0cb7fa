// Package main is the entry point for the notchd presence daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/notchd/notchd/internal/config"
	"github.com/notchd/notchd/internal/daemon"
	"github.com/notchd/notchd/internal/window"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/notchd/notchd.toml)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("notchd version", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	path := *configPath
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			logger.Error("failed to resolve config path", "error", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("failed to load config", "path", path, "error", err)
		os.Exit(1)
	}

	backend, err := window.NewBridgeBackend(logger)
	if err != nil {
		logger.Error("failed to connect to renderer", "error", err)
		os.Exit(1)
	}

	runtime, err := daemon.New(cfg, daemon.Options{
		Backend:    backend,
		ConfigPath: path,
		Version:    version,
	}, logger)
	if err != nil {
		logger.Error("failed to assemble daemon", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runtime.Start(ctx); err != nil {
		logger.Error("failed to start daemon", "error", err)
		os.Exit(1)
	}

	logger.Info("notchd running", "version", version, "config", path)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	runtime.Stop()
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
