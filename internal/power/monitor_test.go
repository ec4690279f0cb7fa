package power

import (
	"log/slog"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func newTestMonitor() *Monitor {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewMonitor(logger)
}

func TestHandleSignalDispatch(t *testing.T) {
	tests := []struct {
		name        string
		signal      *dbus.Signal
		wantSleep   int
		wantWake    int
		wantDisplay int
	}{
		{
			name:      "prepare for sleep true",
			signal:    &dbus.Signal{Name: prepareForSleep, Body: []any{true}},
			wantSleep: 1,
		},
		{
			name:     "prepare for sleep false",
			signal:   &dbus.Signal{Name: prepareForSleep, Body: []any{false}},
			wantWake: 1,
		},
		{
			name:        "monitors changed",
			signal:      &dbus.Signal{Name: monitorsChanged},
			wantDisplay: 1,
		},
		{
			name:   "malformed sleep signal ignored",
			signal: &dbus.Signal{Name: prepareForSleep},
		},
		{
			name:   "wrong argument type ignored",
			signal: &dbus.Signal{Name: prepareForSleep, Body: []any{"yes"}},
		},
		{
			name:   "unrelated signal ignored",
			signal: &dbus.Signal{Name: "org.freedesktop.DBus.NameOwnerChanged"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMonitor()
			var sleeps, wakes, displays int
			m.SetSleepHandler(func() { sleeps++ })
			m.SetWakeHandler(func() { wakes++ })
			m.SetDisplayChangeHandler(func() { displays++ })

			m.handleSignal(tt.signal)

			assert.Equal(t, tt.wantSleep, sleeps)
			assert.Equal(t, tt.wantWake, wakes)
			assert.Equal(t, tt.wantDisplay, displays)
		})
	}
}

func TestHandleSignalNilCallbacks(t *testing.T) {
	m := newTestMonitor()
	assert.NotPanics(t, func() {
		m.handleSignal(&dbus.Signal{Name: prepareForSleep, Body: []any{true}})
		m.handleSignal(&dbus.Signal{Name: monitorsChanged})
	})
}
