// Package lifecycle coordinates sleep and wake transitions: hiding the
// window and pausing alerts on sleep, and running the bounded-retry
// window restoration sequence on wake.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/notchd/notchd/internal/runloop"
	"github.com/notchd/notchd/internal/task"
)

// WindowController is the subset of the window manager the orchestrator
// drives during transitions.
type WindowController interface {
	Hide()
	RecreateBest(conservative bool) error
}

// AlertController pauses and resumes the alert scheduler across sleep.
type AlertController interface {
	Pause()
	Resume()
}

// Orchestrator handles sleep/wake notifications. HandleSleep, HandleWake
// and Handling must be called on the run loop; the restoration sequence
// itself runs as a cancellable background task that funnels every
// mutation back onto the loop.
type Orchestrator struct {
	loop      *runloop.Loop
	windows   WindowController
	alerts    AlertController
	recompute func()
	logger    *slog.Logger

	handling   bool
	guardTimer *runloop.Timer
	restore    *task.Task

	sleepSettle    time.Duration
	wakeSettle     time.Duration
	stabilizeDelay time.Duration
	attemptPause   time.Duration
	retryDelays    []time.Duration
	emergencyDelay time.Duration
}

// New creates an orchestrator. recompute re-derives the presence state
// after a successful window restore; it may be nil.
func New(loop *runloop.Loop, windows WindowController, alerts AlertController, recompute func(), logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if recompute == nil {
		recompute = func() {}
	}
	return &Orchestrator{
		loop:      loop,
		windows:   windows,
		alerts:    alerts,
		recompute: recompute,
		logger:    logger,

		sleepSettle:    time.Second,
		wakeSettle:     500 * time.Millisecond,
		stabilizeDelay: 1500 * time.Millisecond,
		attemptPause:   200 * time.Millisecond,
		retryDelays:    []time.Duration{time.Second, 2 * time.Second},
		emergencyDelay: 3 * time.Second,
	}
}

// Handling reports whether a sleep/wake transition is in progress. The
// window manager consults this to skip screen-change rebuilds.
func (o *Orchestrator) Handling() bool {
	return o.handling
}

// HandleSleep reacts to a system sleep notification. A second sleep
// event while one is being handled is ignored.
func (o *Orchestrator) HandleSleep() {
	if o.handling {
		o.logger.Debug("sleep notification ignored, already handling")
		return
	}
	o.handling = true
	o.logger.Info("system going to sleep")

	o.cancelRestore()
	o.windows.Hide()
	o.alerts.Pause()

	o.armGuardTimer(o.sleepSettle, func() {
		o.handling = false
	})
}

// HandleWake reacts to a system wake notification: after a short settle
// delay it resumes the alert scheduler and launches the restoration
// sequence.
func (o *Orchestrator) HandleWake() {
	o.handling = true
	o.logger.Info("system waking up")

	o.armGuardTimer(o.wakeSettle, func() {
		o.alerts.Resume()
		o.startRestore()
		o.handling = false
	})
}

// Stop cancels any pending guard timer and in-flight restoration. Must
// be called on the run loop.
func (o *Orchestrator) Stop() {
	if o.guardTimer != nil {
		o.guardTimer.Stop()
		o.guardTimer = nil
	}
	o.cancelRestore()
	o.handling = false
}

func (o *Orchestrator) armGuardTimer(d time.Duration, fn func()) {
	if o.guardTimer != nil {
		o.guardTimer.Stop()
	}
	o.guardTimer = o.loop.After(d, fn)
}

// startRestore launches the restoration task, cancelling any previous
// one first so at most one is ever in flight.
func (o *Orchestrator) startRestore() {
	o.cancelRestore()
	o.restore = task.Start(o.runRestore)
}

func (o *Orchestrator) cancelRestore() {
	if o.restore != nil {
		o.restore.Cancel()
		o.restore = nil
	}
}

// runRestore waits for the displays to stabilize, then tries to rebuild
// the window up to three times with growing pauses. If every attempt
// fails it falls back to an emergency rebuild on the primary screen.
func (o *Orchestrator) runRestore(ctx context.Context) {
	if task.Sleep(ctx, o.stabilizeDelay) != nil {
		return
	}

	attempts := 1 + len(o.retryDelays)
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if task.Sleep(ctx, o.retryDelays[i-1]) != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if o.attempt(ctx, i+1) {
			return
		}
	}

	if task.Sleep(ctx, o.emergencyDelay) != nil {
		return
	}
	o.emergencyRestore(ctx)
}

// attempt runs one restore cycle: destroy, brief pause, recreate on the
// best screen, then recompute the presence state.
func (o *Orchestrator) attempt(ctx context.Context, n int) bool {
	o.loop.Call(func() {
		if ctx.Err() != nil {
			return
		}
		o.windows.Hide()
	})

	if task.Sleep(ctx, o.attemptPause) != nil {
		return false
	}

	var err error
	o.loop.Call(func() {
		if ctx.Err() != nil {
			err = ctx.Err()
			return
		}
		err = o.windows.RecreateBest(false)
		if err == nil {
			o.recompute()
		}
	})

	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warn("window restore attempt failed", "attempt", n, "error", err)
		}
		return false
	}
	o.logger.Info("window restored", "attempt", n)
	return true
}

// emergencyRestore force-rebuilds on the primary screen only. It runs at
// most once per restoration sequence.
func (o *Orchestrator) emergencyRestore(ctx context.Context) {
	var err error
	o.loop.Call(func() {
		if ctx.Err() != nil {
			err = ctx.Err()
			return
		}
		o.windows.Hide()
		err = o.windows.RecreateBest(true)
		if err == nil {
			o.recompute()
		}
	})

	if err != nil {
		if ctx.Err() == nil {
			o.logger.Error("emergency window restore failed", "error", err)
		}
		return
	}
	o.logger.Warn("emergency window restore succeeded")
}
