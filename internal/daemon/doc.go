// Package daemon provides the main orchestration for notchd.
// It wires the run loop, state coordinator, alert scheduler, window
// lifecycle manager, D-Bus monitors, and configuration hot-reload into
// one runtime.
package daemon
