// Package hover converts raw, noisy hover transitions into a single
// debounced boolean signal.
package hover

import (
	"log/slog"
	"time"

	"github.com/notchd/notchd/internal/runloop"
)

// Filter debounces raw hover samples. Each sample restarts the delay timer;
// only the last sample in a burst survives, and it is emitted downstream
// only if it actually changes the debounced value. Superseded samples
// produce no side effects.
//
// All methods must be called on the run loop.
type Filter struct {
	loop   *runloop.Loop
	logger *slog.Logger

	delay   time.Duration
	pending *runloop.Timer

	current bool
	sink    func(hovering bool)
}

// NewFilter creates a filter with the given debounce delay. sink receives
// each debounced value change.
func NewFilter(loop *runloop.Loop, delay time.Duration, sink func(bool), logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		loop:   loop,
		logger: logger,
		delay:  delay,
		sink:   sink,
	}
}

// Sample feeds one raw hover reading into the filter.
func (f *Filter) Sample(raw bool) {
	f.pending.Stop()
	f.pending = f.loop.After(f.delay, func() {
		f.pending = nil
		if raw == f.current {
			return
		}
		f.current = raw
		f.logger.Debug("hover debounced", "hovering", raw)
		if f.sink != nil {
			f.sink(raw)
		}
	})
}

// Current returns the debounced value.
func (f *Filter) Current() bool { return f.current }

// SetDelay updates the debounce delay; a pending sample keeps the delay it
// was scheduled with.
func (f *Filter) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	f.delay = d
}

// Stop cancels any pending sample.
func (f *Filter) Stop() {
	f.pending.Stop()
	f.pending = nil
}
