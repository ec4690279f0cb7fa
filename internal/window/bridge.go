package window

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/notchd/notchd/internal/state"
)

const (
	rendererBusName   = "io.github.notchd.Renderer"
	rendererPath      = "/io/github/notchd/Renderer"
	rendererInterface = "io.github.notchd.Renderer"
)

// BridgeBackend implements Backend against the renderer process, which
// owns the actual compositor surfaces and exposes them over the session
// bus.
type BridgeBackend struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
}

// NewBridgeBackend connects to the renderer on the session bus.
func NewBridgeBackend(logger *slog.Logger) (*BridgeBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &BridgeBackend{
		conn:   conn,
		obj:    conn.Object(rendererBusName, rendererPath),
		logger: logger,
	}, nil
}

// bridgeScreen mirrors the renderer's (siiiib) screen tuple.
type bridgeScreen struct {
	Name    string
	X       int32
	Y       int32
	Width   int32
	Height  int32
	Primary bool
}

// Screens implements Backend.
func (b *BridgeBackend) Screens() ([]Screen, error) {
	var raw []bridgeScreen
	if err := b.obj.Call(rendererInterface+".ListScreens", 0).Store(&raw); err != nil {
		return nil, fmt.Errorf("ListScreens failed: %w", err)
	}

	screens := make([]Screen, 0, len(raw))
	for _, s := range raw {
		screens = append(screens, Screen{
			Name:    s.Name,
			X:       int(s.X),
			Y:       int(s.Y),
			Width:   int(s.Width),
			Height:  int(s.Height),
			Primary: s.Primary,
		})
	}
	return screens, nil
}

// ScreenUnderPointer implements Backend.
func (b *BridgeBackend) ScreenUnderPointer() (*Screen, error) {
	var name string
	if err := b.obj.Call(rendererInterface+".PointerScreen", 0).Store(&name); err != nil {
		return nil, fmt.Errorf("PointerScreen failed: %w", err)
	}
	if name == "" {
		return nil, fmt.Errorf("pointer screen unknown")
	}
	return &Screen{Name: name}, nil
}

// Create implements Backend. The renderer returns a surface ID used for
// raise and destroy.
func (b *BridgeBackend) Create(screen Screen, cfg state.Configuration) (Handle, error) {
	var surfaceID uint32
	call := b.obj.Call(rendererInterface+".CreateSurface", 0,
		screen.Name,
		int32(cfg.Width),
		int32(cfg.Height),
		cfg.TopCornerRadius,
		cfg.BottomCornerRadius,
		cfg.ShadowRadius,
	)
	if err := call.Store(&surfaceID); err != nil {
		return nil, fmt.Errorf("CreateSurface on %s failed: %w", screen.Name, err)
	}

	b.logger.Debug("surface created", "screen", screen.Name, "surface_id", surfaceID)
	return &bridgeHandle{backend: b, id: surfaceID}, nil
}

// bridgeHandle is a live renderer surface.
type bridgeHandle struct {
	backend *BridgeBackend
	id      uint32
}

func (h *bridgeHandle) Raise() error {
	if call := h.backend.obj.Call(rendererInterface+".RaiseSurface", 0, h.id); call.Err != nil {
		return fmt.Errorf("RaiseSurface failed: %w", call.Err)
	}
	return nil
}

func (h *bridgeHandle) Close() {
	if call := h.backend.obj.Call(rendererInterface+".DestroySurface", 0, h.id); call.Err != nil {
		h.backend.logger.Warn("DestroySurface failed", "surface_id", h.id, "error", call.Err)
	}
}
