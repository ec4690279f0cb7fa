// Package dbusctl exposes the daemon's control interface on the session
// bus and provides the matching client used by notchctl.
package dbusctl

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	// Interface is the control interface name.
	Interface = "io.github.notchd.Control"
	// Path is the control object path.
	Path = "/io/github/notchd/Control"
	// BusName is the bus name the daemon claims.
	BusName = "io.github.notchd"
)

// Controller is the daemon surface the control interface drives.
type Controller interface {
	Show(screen string) error
	Hide() error
	Enable() error
	Disable() error
	RefreshWindow() error
	HoverChanged(inside bool)
	Status() Status
}

// Status is a point-in-time snapshot of the daemon for GetStatus.
type Status struct {
	Enabled          bool
	Visible          bool
	Screen           string
	State            string
	Phase            string
	RemainingSeconds int64
	EventTitle       string
	MediaPlaying     bool
	NowPlaying       string
	StartedAt        time.Time
	Version          string
}

// Server exports the control interface.
type Server struct {
	conn       *dbus.Conn
	logger     *slog.Logger
	controller Controller

	mu      sync.Mutex
	running bool
}

// NewServer creates a control server for the given controller.
func NewServer(controller Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:     logger,
		controller: controller,
	}
}

// Start connects to the session bus, exports the control object, and
// claims the bus name.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	s.conn = conn

	if err := conn.Export(s, Path, Interface); err != nil {
		return fmt.Errorf("failed to export control object: %w", err)
	}

	node := &introspect.Node{
		Name: Path,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken, is another notchd running?", BusName)
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("control server started", "interface", Interface, "path", Path)
	return nil
}

// Stop releases the bus name.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.conn != nil {
		if _, err := s.conn.ReleaseName(BusName); err != nil {
			s.logger.Warn("failed to release bus name", "error", err)
		}
		// Don't close the connection as it's shared (SessionBus)
	}

	s.logger.Info("control server stopped")
	return nil
}

// Show shows the overlay, optionally on a named screen.
// D-Bus method: Show(s) -> nothing
func (s *Server) Show(screen string) *dbus.Error {
	s.logger.Debug("Show called", "screen", screen)
	if err := s.controller.Show(screen); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Hide hides the overlay.
// D-Bus method: Hide() -> nothing
func (s *Server) Hide() *dbus.Error {
	s.logger.Debug("Hide called")
	if err := s.controller.Hide(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Enable enables the widget and persists the choice.
// D-Bus method: Enable() -> nothing
func (s *Server) Enable() *dbus.Error {
	s.logger.Debug("Enable called")
	if err := s.controller.Enable(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Disable disables the widget and persists the choice.
// D-Bus method: Disable() -> nothing
func (s *Server) Disable() *dbus.Error {
	s.logger.Debug("Disable called")
	if err := s.controller.Disable(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Refresh forces a window destroy+recreate cycle.
// D-Bus method: Refresh() -> nothing
func (s *Server) Refresh() *dbus.Error {
	s.logger.Debug("Refresh called")
	if err := s.controller.RefreshWindow(); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// HoverChanged reports raw pointer hover from the renderer bridge.
// D-Bus method: HoverChanged(b) -> nothing
func (s *Server) HoverChanged(inside bool) *dbus.Error {
	s.controller.HoverChanged(inside)
	return nil
}

// GetStatus returns a snapshot of the daemon state.
// D-Bus method: GetStatus() -> a{sv}
func (s *Server) GetStatus() (map[string]dbus.Variant, *dbus.Error) {
	st := s.controller.Status()
	return map[string]dbus.Variant{
		"enabled":           dbus.MakeVariant(st.Enabled),
		"visible":           dbus.MakeVariant(st.Visible),
		"screen":            dbus.MakeVariant(st.Screen),
		"state":             dbus.MakeVariant(st.State),
		"phase":             dbus.MakeVariant(st.Phase),
		"remaining_seconds": dbus.MakeVariant(st.RemainingSeconds),
		"event_title":       dbus.MakeVariant(st.EventTitle),
		"media_playing":     dbus.MakeVariant(st.MediaPlaying),
		"now_playing":       dbus.MakeVariant(st.NowPlaying),
		"started_at":        dbus.MakeVariant(st.StartedAt.Unix()),
		"version":           dbus.MakeVariant(st.Version),
	}, nil
}

// EmitStateChanged emits the StateChanged signal.
func (s *Server) EmitStateChanged(state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.conn == nil {
		return nil
	}
	return s.conn.Emit(Path, Interface+".StateChanged", state)
}

// EmitPhaseChanged emits the PhaseChanged signal.
func (s *Server) EmitPhaseChanged(phase string, remainingSeconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.conn == nil {
		return nil
	}
	return s.conn.Emit(Path, Interface+".PhaseChanged", phase, remainingSeconds)
}

// controlMethods returns the D-Bus method introspection data.
func controlMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Show",
			Args: []introspect.Arg{
				{Name: "screen", Type: "s", Direction: "in"},
			},
		},
		{Name: "Hide"},
		{Name: "Enable"},
		{Name: "Disable"},
		{Name: "Refresh"},
		{
			Name: "HoverChanged",
			Args: []introspect.Arg{
				{Name: "inside", Type: "b", Direction: "in"},
			},
		},
		{
			Name: "GetStatus",
			Args: []introspect.Arg{
				{Name: "status", Type: "a{sv}", Direction: "out"},
			},
		},
	}
}

// controlSignals returns the D-Bus signal introspection data.
func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: "StateChanged",
			Args: []introspect.Arg{
				{Name: "state", Type: "s"},
			},
		},
		{
			Name: "PhaseChanged",
			Args: []introspect.Arg{
				{Name: "phase", Type: "s"},
				{Name: "remaining_seconds", Type: "x"},
			},
		},
	}
}
