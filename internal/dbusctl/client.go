package dbusctl

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// Client talks to a running daemon over the control interface.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewClient connects to the session bus and binds the control object.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(BusName, Path),
	}, nil
}

// Close releases the client's bus resources. The shared session bus
// connection itself stays open.
func (c *Client) Close() error {
	return nil
}

// Show asks the daemon to show the overlay, optionally on a named screen.
func (c *Client) Show(screen string) error {
	return c.call("Show", screen)
}

// Hide asks the daemon to hide the overlay.
func (c *Client) Hide() error {
	return c.call("Hide")
}

// Enable enables the widget.
func (c *Client) Enable() error {
	return c.call("Enable")
}

// Disable disables the widget.
func (c *Client) Disable() error {
	return c.call("Disable")
}

// Refresh forces a window rebuild.
func (c *Client) Refresh() error {
	return c.call("Refresh")
}

// HoverChanged reports a raw hover transition.
func (c *Client) HoverChanged(inside bool) error {
	return c.call("HoverChanged", inside)
}

// GetStatus fetches the daemon status snapshot.
func (c *Client) GetStatus() (Status, error) {
	var raw map[string]dbus.Variant
	if err := c.obj.Call(Interface+".GetStatus", 0).Store(&raw); err != nil {
		return Status{}, fmt.Errorf("GetStatus failed: %w", err)
	}
	return statusFromMap(raw), nil
}

func (c *Client) call(method string, args ...any) error {
	if call := c.obj.Call(Interface+"."+method, 0, args...); call.Err != nil {
		return fmt.Errorf("%s failed: %w", method, call.Err)
	}
	return nil
}

// statusFromMap decodes the a{sv} status payload, tolerating missing keys.
func statusFromMap(raw map[string]dbus.Variant) Status {
	var st Status
	if v, ok := raw["enabled"].Value().(bool); ok {
		st.Enabled = v
	}
	if v, ok := raw["visible"].Value().(bool); ok {
		st.Visible = v
	}
	if v, ok := raw["screen"].Value().(string); ok {
		st.Screen = v
	}
	if v, ok := raw["state"].Value().(string); ok {
		st.State = v
	}
	if v, ok := raw["phase"].Value().(string); ok {
		st.Phase = v
	}
	if v, ok := raw["remaining_seconds"].Value().(int64); ok {
		st.RemainingSeconds = v
	}
	if v, ok := raw["event_title"].Value().(string); ok {
		st.EventTitle = v
	}
	if v, ok := raw["media_playing"].Value().(bool); ok {
		st.MediaPlaying = v
	}
	if v, ok := raw["now_playing"].Value().(string); ok {
		st.NowPlaying = v
	}
	if v, ok := raw["started_at"].Value().(int64); ok && v > 0 {
		st.StartedAt = time.Unix(v, 0)
	}
	if v, ok := raw["version"].Value().(string); ok {
		st.Version = v
	}
	return st
}
