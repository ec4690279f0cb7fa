package audio

import (
	"log/slog"
	"maps"
	"os"
	"sync"

	"github.com/notchd/notchd/internal/alert"
	"github.com/notchd/notchd/internal/config"
)

// Manager plays the chime configured for each alert phase.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	player *Player
	cfg    config.AudioConfig

	// Phase to sound path mapping
	sounds map[alert.Phase]string
}

// NewManager creates a chime manager from the audio configuration.
func NewManager(cfg config.AudioConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		logger: logger,
		player: NewPlayer(logger),
		cfg:    cfg,
		sounds: make(map[alert.Phase]string),
	}
	m.loadSoundConfig()
	return m
}

// loadSoundConfig maps phases to configured sound files, skipping any
// that do not exist on disk.
func (m *Manager) loadSoundConfig() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.Volume > 0 {
		m.player.SetVolume(float64(m.cfg.Volume) / 100.0)
	}

	m.sounds = make(map[alert.Phase]string)
	sounds := map[alert.Phase]string{
		alert.PhaseCountdown:     m.cfg.Sounds.Countdown,
		alert.PhaseFiveMinute:    m.cfg.Sounds.FiveMinute,
		alert.PhaseFifteenMinute: m.cfg.Sounds.FifteenMinute,
	}

	for phase, path := range sounds {
		if path == "" {
			continue
		}
		expanded := expandPath(path)
		if _, err := os.Stat(expanded); err != nil {
			m.logger.Warn("sound file not found", "phase", phase.String(), "path", expanded)
			continue
		}
		m.sounds[phase] = expanded
		m.logger.Debug("loaded sound", "phase", phase.String(), "path", expanded)
	}
}

// Start preloads the configured chimes.
func (m *Manager) Start() error {
	m.mu.RLock()
	sounds := make(map[alert.Phase]string, len(m.sounds))
	maps.Copy(sounds, m.sounds)
	m.mu.RUnlock()

	for _, path := range sounds {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound", "path", path, "error", err)
		}
	}

	m.logger.Info("audio manager started", "sounds", len(sounds))
	return nil
}

// Stop shuts down the audio manager.
func (m *Manager) Stop() {
	m.player.Close()
	m.logger.Debug("audio manager stopped")
}

// PlayForPhase plays the chime configured for the given alert phase.
func (m *Manager) PlayForPhase(phase alert.Phase) error {
	m.mu.RLock()
	enabled := m.cfg.Enabled
	path, ok := m.sounds[phase]
	m.mu.RUnlock()

	if !enabled {
		return nil
	}
	if !ok {
		m.logger.Debug("no sound configured for phase", "phase", phase.String())
		return nil
	}
	return m.player.Play(path)
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(volume float64) {
	m.player.SetVolume(volume)
}

// GetVolume returns the current volume.
func (m *Manager) GetVolume() float64 {
	return m.player.GetVolume()
}

// UpdateConfig applies a hot-reloaded audio configuration.
func (m *Manager) UpdateConfig(cfg config.AudioConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	m.player.ClearCache()
	m.loadSoundConfig()

	m.mu.RLock()
	sounds := make(map[alert.Phase]string, len(m.sounds))
	maps.Copy(sounds, m.sounds)
	m.mu.RUnlock()

	for _, path := range sounds {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound on reload", "path", path, "error", err)
		}
	}
	m.logger.Debug("audio manager config updated")
}
