// Package power observes system sleep/wake and display-change signals on
// D-Bus and forwards them as callbacks.
package power

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	login1Interface  = "org.freedesktop.login1.Manager"
	login1Path       = "/org/freedesktop/login1"
	prepareForSleep  = login1Interface + ".PrepareForSleep"
	displayInterface = "org.gnome.Mutter.DisplayConfig"
	displayPath      = "/org/gnome/Mutter/DisplayConfig"
	monitorsChanged  = displayInterface + ".MonitorsChanged"
)

// Monitor listens for logind PrepareForSleep on the system bus and for
// Mutter MonitorsChanged on the session bus. Callbacks run on the
// monitor's own goroutine; callers are expected to dispatch onto their
// run loop.
type Monitor struct {
	logger *slog.Logger

	systemConn  *dbus.Conn
	sessionConn *dbus.Conn
	signals     chan *dbus.Signal

	onSleep         func()
	onWake          func()
	onDisplayChange func()

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewMonitor creates an unstarted power monitor.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// SetSleepHandler sets the callback for the sleep transition.
func (m *Monitor) SetSleepHandler(fn func()) { m.onSleep = fn }

// SetWakeHandler sets the callback for the wake transition.
func (m *Monitor) SetWakeHandler(fn func()) { m.onWake = fn }

// SetDisplayChangeHandler sets the callback for screen-parameter changes.
func (m *Monitor) SetDisplayChangeHandler(fn func()) { m.onDisplayChange = fn }

// Start connects to both buses and begins delivering signals. Display
// change signals are optional: a missing Mutter interface downgrades to
// sleep/wake only.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	systemConn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	m.systemConn = systemConn

	if err := systemConn.AddMatchSignal(
		dbus.WithMatchInterface(login1Interface),
		dbus.WithMatchMember("PrepareForSleep"),
		dbus.WithMatchObjectPath(login1Path),
	); err != nil {
		return fmt.Errorf("failed to subscribe to PrepareForSleep: %w", err)
	}

	m.signals = make(chan *dbus.Signal, 16)
	systemConn.Signal(m.signals)

	if sessionConn, err := dbus.SessionBus(); err != nil {
		m.logger.Warn("session bus unavailable, display-change signals disabled", "error", err)
	} else if err := sessionConn.AddMatchSignal(
		dbus.WithMatchInterface(displayInterface),
		dbus.WithMatchMember("MonitorsChanged"),
	); err != nil {
		m.logger.Warn("display-change subscription failed", "error", err)
	} else {
		m.sessionConn = sessionConn
		sessionConn.Signal(m.signals)
	}

	go m.processSignals()
	m.logger.Info("power monitor started")
	return nil
}

func (m *Monitor) processSignals() {
	for {
		select {
		case sig, ok := <-m.signals:
			if !ok {
				return
			}
			m.handleSignal(sig)
		case <-m.done:
			return
		}
	}
}

func (m *Monitor) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case prepareForSleep:
		if len(sig.Body) < 1 {
			m.logger.Warn("malformed PrepareForSleep signal", "body_len", len(sig.Body))
			return
		}
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			m.logger.Warn("invalid PrepareForSleep argument type")
			return
		}
		if sleeping {
			m.logger.Debug("PrepareForSleep: entering sleep")
			if m.onSleep != nil {
				m.onSleep()
			}
		} else {
			m.logger.Debug("PrepareForSleep: waking")
			if m.onWake != nil {
				m.onWake()
			}
		}

	case monitorsChanged:
		m.logger.Debug("display configuration changed")
		if m.onDisplayChange != nil {
			m.onDisplayChange()
		}
	}
}

// Stop unsubscribes from both buses. The connections are shared with the
// rest of the process and stay open.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.done)

	if m.sessionConn != nil {
		m.sessionConn.RemoveSignal(m.signals)
		if err := m.sessionConn.RemoveMatchSignal(
			dbus.WithMatchInterface(displayInterface),
			dbus.WithMatchMember("MonitorsChanged"),
		); err != nil {
			m.logger.Warn("failed to drop display-change match", "error", err)
		}
	}
	if m.systemConn != nil {
		m.systemConn.RemoveSignal(m.signals)
		return m.systemConn.RemoveMatchSignal(
			dbus.WithMatchInterface(login1Interface),
			dbus.WithMatchMember("PrepareForSleep"),
			dbus.WithMatchObjectPath(login1Path),
		)
	}
	return nil
}
