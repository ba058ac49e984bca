package poller

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CycleFunc is one unit of polling work; it reports how many items it handled.
type CycleFunc func(ctx context.Context) (int, error)

// Loop runs a CycleFunc on a fixed interval until ctx is cancelled. Each cycle gets its own
// timeout so a hung database never stalls the loop, and errors are logged and retried on the
// next tick instead of stopping the task.
type Loop struct {
	Name     string
	Log      *zap.Logger
	Interval time.Duration
	Timeout  time.Duration
	Cycle    CycleFunc

	OnError func() // metrics
}

// Run executes the first cycle immediately, then one per interval
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	l.Log.Info("poll loop started", zap.String("loop", l.Name), zap.Duration("interval", l.Interval))
	for {
		l.once(ctx)

		select {
		case <-ctx.Done():
			l.Log.Info("poll loop stopped", zap.String("loop", l.Name))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Loop) once(ctx context.Context) {
	cctx := ctx
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := l.Cycle(cctx)
	if err != nil {
		if ctx.Err() != nil {
			return // shutting down
		}
		l.Log.Warn("poll cycle failed", zap.String("loop", l.Name), zap.Int("processed", n), zap.Error(err))
		if l.OnError != nil {
			l.OnError()
		}
		return
	}
	if n > 0 {
		l.Log.Info("poll cycle", zap.String("loop", l.Name), zap.Int("processed", n), zap.Duration("took", time.Since(start)))
	}
}
