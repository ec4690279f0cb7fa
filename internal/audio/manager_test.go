package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notchd/notchd/internal/alert"
	"github.com/notchd/notchd/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadSoundConfigSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "chime.wav")
	require.NoError(t, os.WriteFile(existing, []byte("not real audio"), 0o644))

	m := NewManager(config.AudioConfig{
		Enabled: true,
		Volume:  80,
		Sounds: config.SoundConfig{
			Countdown:  existing,
			FiveMinute: filepath.Join(dir, "missing.wav"),
		},
	}, testLogger())

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Equal(t, existing, m.sounds[alert.PhaseCountdown])
	assert.NotContains(t, m.sounds, alert.PhaseFiveMinute)
	assert.NotContains(t, m.sounds, alert.PhaseFifteenMinute)
}

func TestPlayForPhaseDisabled(t *testing.T) {
	m := NewManager(config.AudioConfig{Enabled: false, Volume: 80}, testLogger())
	assert.NoError(t, m.PlayForPhase(alert.PhaseCountdown))
}

func TestPlayForPhaseUnconfigured(t *testing.T) {
	m := NewManager(config.AudioConfig{Enabled: true, Volume: 80}, testLogger())
	assert.NoError(t, m.PlayForPhase(alert.PhaseFifteenMinute))
}

func TestVolumeMapping(t *testing.T) {
	m := NewManager(config.AudioConfig{Enabled: true, Volume: 50}, testLogger())
	assert.InDelta(t, 0.5, m.GetVolume(), 0.001)

	m.SetVolume(2.0)
	assert.Equal(t, 1.0, m.GetVolume())

	m.SetVolume(-1.0)
	assert.Equal(t, 0.0, m.GetVolume())
}

func TestVolumeToDecibels(t *testing.T) {
	assert.Equal(t, float64(-100), volumeToDecibels(0))
	assert.InDelta(t, -6.02, volumeToDecibels(0.5), 0.01)
	assert.InDelta(t, 0, volumeToDecibels(1.0), 0.001)
}
