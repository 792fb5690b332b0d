package sweep

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSweeper struct {
	calls int32
}

func (f *fakeSweeper) Sweep(ctx context.Context) (int64, error) {
	atomic.AddInt32(&f.calls, 1)
	return 0, nil
}

func TestSchedulerTicksUntilCancelled(t *testing.T) {
	sweeper := &fakeSweeper{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(sweeper, 5*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if atomic.LoadInt32(&sweeper.calls) == 0 {
		t.Fatal("expected at least one sweep tick")
	}
}
