package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRunsToCompletion(t *testing.T) {
	ran := make(chan struct{})
	tk := Start(func(ctx context.Context) { close(ran) })
	tk.Wait()

	select {
	case <-ran:
	default:
		t.Fatal("task body never ran")
	}
}

func TestCancelInterruptsSleep(t *testing.T) {
	var err error
	started := make(chan struct{})
	tk := Start(func(ctx context.Context) {
		close(started)
		err = Sleep(ctx, 10*time.Second)
	})

	<-started
	tk.Cancel()

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("cancelled task did not exit")
	}
	require.ErrorIs(t, err, context.Canceled)
}

func TestSleepObservesPriorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSleepCompletes(t *testing.T) {
	err := Sleep(context.Background(), 5*time.Millisecond)
	assert.NoError(t, err)
}

func TestNilTaskIsSafe(t *testing.T) {
	var tk *Task
	tk.Cancel()
	tk.Wait()
	select {
	case <-tk.Done():
	default:
		t.Fatal("nil task Done channel should be closed")
	}
}
