package lifecycle

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notchd/notchd/internal/runloop"
)

// fakeWindows is only mutated on the run loop, so plain fields suffice;
// tests read them via loop.Call.
type fakeWindows struct {
	hides       int
	recreates   int
	failFirst   int  // fail this many non-conservative recreates
	failRegular bool // fail every non-conservative recreate
	calls       []bool
}

func (w *fakeWindows) Hide() { w.hides++ }

func (w *fakeWindows) RecreateBest(conservative bool) error {
	w.recreates++
	w.calls = append(w.calls, conservative)
	if !conservative {
		if w.failRegular {
			return errors.New("compositor not ready")
		}
		if w.failFirst > 0 {
			w.failFirst--
			return errors.New("compositor not ready")
		}
	}
	return nil
}

type fakeAlerts struct {
	paused  int
	resumed int
}

func (a *fakeAlerts) Pause()  { a.paused++ }
func (a *fakeAlerts) Resume() { a.resumed++ }

func newTestOrchestrator(t *testing.T, windows *fakeWindows, alerts *fakeAlerts, recompute func()) (*Orchestrator, *runloop.Loop) {
	t.Helper()
	loop := runloop.New(nil)
	loop.Start()
	t.Cleanup(loop.Stop)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	o := New(loop, windows, alerts, recompute, logger)

	// Shrink every delay so the ladder runs in milliseconds.
	o.sleepSettle = 10 * time.Millisecond
	o.wakeSettle = 2 * time.Millisecond
	o.stabilizeDelay = 5 * time.Millisecond
	o.attemptPause = time.Millisecond
	o.retryDelays = []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}
	o.emergencyDelay = 5 * time.Millisecond
	return o, loop
}

func TestSleepHidesPausesAndClearsGuard(t *testing.T) {
	windows := &fakeWindows{}
	alerts := &fakeAlerts{}
	o, loop := newTestOrchestrator(t, windows, alerts, nil)

	loop.Call(func() {
		o.HandleSleep()
		assert.True(t, o.Handling())
		assert.Equal(t, 1, windows.hides)
		assert.Equal(t, 1, alerts.paused)
	})

	require.Eventually(t, func() bool {
		var handling bool
		loop.Call(func() { handling = o.Handling() })
		return !handling
	}, time.Second, time.Millisecond)
}

func TestSecondSleepIgnoredWhileHandling(t *testing.T) {
	windows := &fakeWindows{}
	alerts := &fakeAlerts{}
	o, loop := newTestOrchestrator(t, windows, alerts, nil)

	loop.Call(func() {
		o.HandleSleep()
		o.HandleSleep()
		assert.Equal(t, 1, windows.hides)
		assert.Equal(t, 1, alerts.paused)
	})
}

func TestWakeRestoresFirstAttempt(t *testing.T) {
	windows := &fakeWindows{}
	alerts := &fakeAlerts{}
	recomputes := 0
	o, loop := newTestOrchestrator(t, windows, alerts, func() { recomputes++ })

	loop.Call(o.HandleWake)

	require.Eventually(t, func() bool {
		var done bool
		loop.Call(func() { done = windows.recreates == 1 })
		return done
	}, time.Second, time.Millisecond)

	loop.Call(func() {
		assert.Equal(t, 1, alerts.resumed)
		assert.Equal(t, []bool{false}, windows.calls)
		assert.Equal(t, 1, recomputes)
		assert.False(t, o.Handling())
	})
}

func TestRestoreSucceedsOnThirdAttempt(t *testing.T) {
	windows := &fakeWindows{failFirst: 2}
	alerts := &fakeAlerts{}
	o, loop := newTestOrchestrator(t, windows, alerts, nil)

	loop.Call(o.HandleWake)

	require.Eventually(t, func() bool {
		var done bool
		loop.Call(func() { done = windows.recreates == 3 })
		return done
	}, time.Second, time.Millisecond)

	// Give a would-be emergency pass time to run, then confirm it never did.
	time.Sleep(30 * time.Millisecond)
	loop.Call(func() {
		assert.Equal(t, []bool{false, false, false}, windows.calls)
	})
}

func TestEmergencyRunsOnceAfterThreeFailures(t *testing.T) {
	windows := &fakeWindows{failRegular: true}
	alerts := &fakeAlerts{}
	o, loop := newTestOrchestrator(t, windows, alerts, nil)

	loop.Call(o.HandleWake)

	require.Eventually(t, func() bool {
		var done bool
		loop.Call(func() { done = windows.recreates == 4 })
		return done
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	loop.Call(func() {
		assert.Equal(t, []bool{false, false, false, true}, windows.calls)
	})
}

func TestSleepCancelsInFlightRestore(t *testing.T) {
	windows := &fakeWindows{}
	alerts := &fakeAlerts{}
	o, loop := newTestOrchestrator(t, windows, alerts, nil)
	o.stabilizeDelay = 100 * time.Millisecond

	loop.Call(o.HandleWake)

	// Let the restore task start sleeping, then a new sleep event arrives.
	time.Sleep(20 * time.Millisecond)
	loop.Call(o.HandleSleep)

	time.Sleep(200 * time.Millisecond)
	loop.Call(func() {
		assert.Equal(t, 0, windows.recreates)
	})
}

func TestNewRestoreCancelsPrevious(t *testing.T) {
	windows := &fakeWindows{}
	alerts := &fakeAlerts{}
	o, loop := newTestOrchestrator(t, windows, alerts, nil)

	o.stabilizeDelay = 50 * time.Millisecond

	loop.Call(o.HandleWake)

	// First restore is still waiting out the stabilize delay when the
	// second wake supersedes it.
	time.Sleep(20 * time.Millisecond)
	loop.Call(o.HandleWake)

	require.Eventually(t, func() bool {
		var done bool
		loop.Call(func() { done = windows.recreates >= 1 })
		return done
	}, time.Second, time.Millisecond)

	// Only the second sequence's attempt lands.
	time.Sleep(100 * time.Millisecond)
	loop.Call(func() {
		assert.Equal(t, 1, windows.recreates)
		assert.Equal(t, 2, alerts.resumed)
	})
}
