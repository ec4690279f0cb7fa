// Package window owns the single overlay window handle: which screen it
// is bound to, whether it is visible, and how it gets rebuilt after
// screen topology changes.
package window

import (
	"errors"

	"github.com/notchd/notchd/internal/state"
)

// Screen describes one output known to the backend.
type Screen struct {
	Name    string
	X       int
	Y       int
	Width   int
	Height  int
	Primary bool
}

// Handle is a live overlay window created by a Backend.
type Handle interface {
	// Raise forces the window to the foreground.
	Raise() error
	// Close destroys the window. Safe to call once.
	Close()
}

// Backend abstracts the compositor-facing window and screen operations.
type Backend interface {
	// Screens enumerates the currently connected outputs.
	Screens() ([]Screen, error)
	// ScreenUnderPointer returns the screen the pointer is on, or nil if
	// the backend cannot tell.
	ScreenUnderPointer() (*Screen, error)
	// Create materializes an overlay window on the given screen with the
	// given geometry.
	Create(screen Screen, cfg state.Configuration) (Handle, error)
}

// ErrNoScreen is returned when no output can be resolved at all.
var ErrNoScreen = errors.New("no screen available")
