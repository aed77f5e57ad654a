package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunnerRetriesAfterFailures(t *testing.T) {
	machine := NewMachine(Config{
		BaseInterval: 5 * time.Millisecond,
		MaxInterval:  20 * time.Millisecond,
		Rand:         func() float64 { return 0.5 },
	})

	var calls atomic.Int64
	fetch := func(ctx context.Context) error {
		if calls.Add(1) <= 2 {
			return errors.New("backend unavailable")
		}
		return nil
	}

	runner := NewRunner(machine, fetch, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	runner.Run(ctx)

	assert.GreaterOrEqual(t, calls.Load(), int64(3), "runner must keep polling after failures")
}

func TestRunnerSuspendStopsFetches(t *testing.T) {
	machine := NewMachine(Config{
		BaseInterval: 5 * time.Millisecond,
		Rand:         func() float64 { return 0.5 },
	})

	firstDone := make(chan struct{})
	var calls atomic.Int64
	fetch := func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			close(firstDone)
		}
		return nil
	}

	runner := NewRunner(machine, fetch, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	<-firstDone
	runner.Suspend()
	time.Sleep(50 * time.Millisecond)
	seen := calls.Load()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, seen, calls.Load(), "no fetches while suspended")

	runner.Resume()
	time.Sleep(50 * time.Millisecond)
	assert.Greater(t, calls.Load(), seen, "resume restarts polling")

	cancel()
	<-done
}
