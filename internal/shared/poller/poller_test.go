package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoopKeepsRunningAfterErrors(t *testing.T) {
	var calls, errs int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := &Loop{
		Name:     "test",
		Log:      zap.NewNop(),
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Cycle: func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&calls, 1)
			if n >= 3 {
				cancel()
			}
			if n%2 == 1 {
				return 0, errors.New("db down")
			}
			return 1, nil
		},
		OnError: func() { atomic.AddInt32(&errs, 1) },
	}

	err := l.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Fatalf("cycle ran %d times, want at least 3", got)
	}
	if got := atomic.LoadInt32(&errs); got < 1 {
		t.Fatalf("OnError called %d times, want at least 1", got)
	}
}

func TestLoopAppliesCycleTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sawDeadline atomic.Bool
	l := &Loop{
		Name:     "timeout",
		Log:      zap.NewNop(),
		Interval: time.Hour,
		Timeout:  50 * time.Millisecond,
		Cycle: func(ctx context.Context) (int, error) {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			cancel()
			return 0, nil
		},
	}
	_ = l.Run(ctx)
	if !sawDeadline.Load() {
		t.Fatal("cycle context had no deadline")
	}
}
