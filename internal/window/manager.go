package window

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/notchd/notchd/internal/event"
	"github.com/notchd/notchd/internal/runloop"
	"github.com/notchd/notchd/internal/state"
)

// Manager owns at most one live window handle bound to one screen.
// All methods must be called on the run loop.
type Manager struct {
	loop    *runloop.Loop
	backend Backend
	bus     *event.Bus
	logger  *slog.Logger

	// configFn yields the geometry for the current presence state.
	configFn func() state.Configuration
	// sleepWakeActive reports whether a sleep/wake transition is in
	// progress; screen-change rebuilds are skipped while it is.
	sleepWakeActive func() bool

	preferred      string
	changeDebounce time.Duration
	settleDelay    time.Duration

	handle  Handle
	screen  *Screen
	visible bool

	debounceTimer *runloop.Timer
	settleTimer   *runloop.Timer
}

// NewManager creates a window manager. preferred names the screen to
// favor during resolution; empty means no preference.
func NewManager(loop *runloop.Loop, backend Backend, bus *event.Bus, preferred string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loop:            loop,
		backend:         backend,
		bus:             bus,
		logger:          logger,
		configFn:        func() state.Configuration { return state.ConfigurationFor(state.Collapsed, false, false) },
		sleepWakeActive: func() bool { return false },
		preferred:       preferred,
		changeDebounce:  500 * time.Millisecond,
		settleDelay:     300 * time.Millisecond,
	}
}

// SetConfigurationFunc wires the geometry source, normally the state
// coordinator's current configuration.
func (m *Manager) SetConfigurationFunc(fn func() state.Configuration) {
	if fn != nil {
		m.configFn = fn
	}
}

// SetSleepWakeActiveFunc wires the sleep/wake guard check.
func (m *Manager) SetSleepWakeActiveFunc(fn func() bool) {
	if fn != nil {
		m.sleepWakeActive = fn
	}
}

// SetPreferredScreen updates the favored output name.
func (m *Manager) SetPreferredScreen(name string) {
	m.preferred = name
}

// SetChangeDebounce adjusts the screen-change debounce window.
func (m *Manager) SetChangeDebounce(d time.Duration) {
	m.changeDebounce = d
}

// SetSettleDelay adjusts the pause between detecting a screen change and
// rebuilding the window.
func (m *Manager) SetSettleDelay(d time.Duration) {
	m.settleDelay = d
}

// Visible reports whether a live window is currently shown.
func (m *Manager) Visible() bool {
	return m.visible
}

// BoundScreen returns the screen the live window is bound to, or nil.
func (m *Manager) BoundScreen() *Screen {
	return m.screen
}

// Show resolves a target screen and binds a fresh window to it. An
// explicit name takes precedence; if no screen resolves at all, Show is
// a no-op.
func (m *Manager) Show(name string) error {
	target := m.resolve(name, false)
	if target == nil {
		m.logger.Debug("show skipped, no screen resolvable")
		return nil
	}
	return m.rebuild(*target)
}

// Hide destroys the window handle if present. Idempotent.
func (m *Manager) Hide() {
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	m.screen = nil
	m.visible = false
}

// Refresh forces a destroy+recreate cycle on the best available screen,
// independent of any in-flight recovery.
func (m *Manager) Refresh() error {
	return m.RecreateBest(false)
}

// RecreateBest destroys any existing window and recreates it on the best
// available screen. With conservative set, only the primary screen is
// considered. On success the window is raised, marked visible, and a
// refresh event is published.
func (m *Manager) RecreateBest(conservative bool) error {
	target := m.resolve(m.preferred, conservative)
	if target == nil {
		m.Hide()
		return ErrNoScreen
	}
	return m.rebuild(*target)
}

func (m *Manager) rebuild(target Screen) error {
	m.Hide()

	handle, err := m.backend.Create(target, m.configFn())
	if err != nil {
		return fmt.Errorf("failed to create window on %s: %w", target.Name, err)
	}
	if err := handle.Raise(); err != nil {
		m.logger.Warn("failed to raise window", "screen", target.Name, "error", err)
	}

	m.handle = handle
	m.screen = &target
	m.visible = true
	m.logger.Debug("window created", "screen", target.Name, "width", target.Width, "height", target.Height)

	m.bus.Publish(event.TopicWindowRefreshed, target.Name)
	return nil
}

// HandleScreensChanged reacts to an OS screen-parameter-change
// notification. Bursts are debounced; the rebuild itself happens after a
// further settle delay, and only when the resolved screen actually
// differs from the bound one and no sleep/wake handling is in progress.
func (m *Manager) HandleScreensChanged() {
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
	}
	m.debounceTimer = m.loop.After(m.changeDebounce, m.onScreensSettled)
}

func (m *Manager) onScreensSettled() {
	if m.sleepWakeActive() {
		m.logger.Debug("screen change ignored during sleep/wake handling")
		return
	}
	// Only an existing window moves between screens. A hidden widget
	// stays hidden across monitor changes.
	if m.handle == nil || !m.visible {
		return
	}

	target := m.resolve(m.preferred, false)
	if target == nil {
		return
	}
	if m.screen != nil && m.screen.Name == target.Name {
		return
	}

	if m.settleTimer != nil {
		m.settleTimer.Stop()
	}
	name := target.Name
	m.settleTimer = m.loop.After(m.settleDelay, func() {
		if m.sleepWakeActive() || m.handle == nil || !m.visible {
			return
		}
		if err := m.RecreateBest(false); err != nil {
			m.logger.Warn("screen-change rebuild failed", "screen", name, "error", err)
		}
	})
}

// Stop cancels pending screen-change timers and destroys the window.
func (m *Manager) Stop() {
	if m.debounceTimer != nil {
		m.debounceTimer.Stop()
		m.debounceTimer = nil
	}
	if m.settleTimer != nil {
		m.settleTimer.Stop()
		m.settleTimer = nil
	}
	m.Hide()
}

// resolve picks a target screen. Preference order: explicit name, screen
// under the pointer, largest screen, primary, first available. In
// conservative mode only the primary screen qualifies.
func (m *Manager) resolve(name string, conservative bool) *Screen {
	screens, err := m.backend.Screens()
	if err != nil {
		m.logger.Warn("screen enumeration failed", "error", err)
		return nil
	}
	if len(screens) == 0 {
		return nil
	}

	if conservative {
		for i := range screens {
			if screens[i].Primary {
				return &screens[i]
			}
		}
		return nil
	}

	if name != "" {
		for i := range screens {
			if screens[i].Name == name {
				return &screens[i]
			}
		}
	}

	if under, err := m.backend.ScreenUnderPointer(); err == nil && under != nil {
		for i := range screens {
			if screens[i].Name == under.Name {
				return &screens[i]
			}
		}
	}

	largest := 0
	var best *Screen
	for i := range screens {
		area := screens[i].Width * screens[i].Height
		if area > largest {
			largest = area
			best = &screens[i]
		}
	}
	if best != nil {
		return best
	}

	for i := range screens {
		if screens[i].Primary {
			return &screens[i]
		}
	}
	return &screens[0]
}
