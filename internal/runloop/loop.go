package runloop

import (
	"log/slog"
	"sync"
	"time"
)

// Loop is a serial executor. Closures submitted via Dispatch or Call run
// one at a time, in submission order, on a single goroutine.
type Loop struct {
	logger *slog.Logger

	ops    chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
}

// New creates a new Loop. Call Start before submitting work.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger,
		ops:    make(chan func(), 256),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	go l.run()
}

// Stop shuts the loop down and waits for the loop goroutine to exit.
// Closures still queued when Stop is called are drained and executed.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	<-l.doneCh
}

// Dispatch submits fn for asynchronous execution on the loop.
// After Stop the closure is silently discarded.
func (l *Loop) Dispatch(fn func()) {
	select {
	case l.ops <- fn:
	case <-l.stopCh:
	}
}

// Call runs fn on the loop and waits for it to complete. It must not be
// called from the loop goroutine itself.
func (l *Loop) Call(fn func()) {
	done := make(chan struct{})
	l.Dispatch(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-l.stopCh:
	}
}

func (l *Loop) run() {
	defer close(l.doneCh)

	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.stopCh:
			// Drain anything already queued so Stop has deterministic effect.
			for {
				select {
				case fn := <-l.ops:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Timer is a one-shot timer whose callback runs on the loop.
// Stop must be called from the loop goroutine; a stopped timer never fires.
type Timer struct {
	loop    *Loop
	t       *time.Timer
	fn      func()
	stopped bool
}

// After schedules fn to run on the loop after d. The returned Timer can be
// stopped (from the loop) before it fires.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	tm := &Timer{loop: l, fn: fn}
	tm.t = time.AfterFunc(d, func() {
		l.Dispatch(func() {
			if tm.stopped {
				return
			}
			tm.stopped = true
			tm.fn()
		})
	})
	return tm
}

// Stop cancels the timer. Safe to call after the timer has fired.
func (tm *Timer) Stop() {
	if tm == nil || tm.stopped {
		return
	}
	tm.stopped = true
	tm.t.Stop()
}

// Stopped reports whether the timer has fired or been stopped.
func (tm *Timer) Stopped() bool {
	return tm == nil || tm.stopped
}

// Ticker delivers recurring callbacks on the loop until stopped.
type Ticker struct {
	loop    *Loop
	t       *time.Ticker
	stopCh  chan struct{}
	stopped bool
}

// Every schedules fn to run on the loop every d until the ticker is stopped.
func (l *Loop) Every(d time.Duration, fn func()) *Ticker {
	tk := &Ticker{
		loop:   l,
		t:      time.NewTicker(d),
		stopCh: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-tk.t.C:
				l.Dispatch(func() {
					if tk.stopped {
						return
					}
					fn()
				})
			case <-tk.stopCh:
				return
			case <-l.stopCh:
				return
			}
		}
	}()
	return tk
}

// Stop cancels the ticker. Must be called from the loop goroutine.
func (tk *Ticker) Stop() {
	if tk == nil || tk.stopped {
		return
	}
	tk.stopped = true
	tk.t.Stop()
	close(tk.stopCh)
}
