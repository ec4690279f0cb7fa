// Package task provides cancellable cooperative tasks.
//
// A Task wraps a goroutine with a context; the task body must observe the
// context before every blocking wait (Sleep does this) so that a cancelled
// task exits without side effects. Holders replace tasks with a
// cancel-then-start discipline: at most one task per logical purpose is
// ever in flight.
package task

import (
	"context"
	"time"
)

// Task is a handle to a running cooperative task.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches fn on its own goroutine with a freshly derived context.
func Start(fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		fn(ctx)
	}()
	return t
}

// Cancel requests cancellation. It does not wait for the task to exit;
// use Wait when completion must be observed.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
}

// Wait blocks until the task body has returned.
func (t *Task) Wait() {
	if t == nil {
		return
	}
	<-t.done
}

// Done returns a channel closed when the task body has returned.
func (t *Task) Done() <-chan struct{} {
	if t == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.done
}

// Sleep pauses for d or until ctx is cancelled, whichever comes first.
// Returns ctx.Err() when cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
