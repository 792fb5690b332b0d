package queue

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/bridge/internal/dispatch"
)

func newTestConsumer(t *testing.T, table *dispatch.Table) (*Consumer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	popClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inspectClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = popClient.Close()
		_ = inspectClient.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(popClient, inspectClient, Config{
		QueueName:    "webhook:events",
		PollInterval: 5 * time.Millisecond,
		BlockTimeout: 50 * time.Millisecond,
	}, table, logger)
	return c, mr
}

func TestHappyPathDispatchesExactlyOnce(t *testing.T) {
	table := dispatch.NewTable()
	var calls int32
	table.Register(EventMessageCreated, func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	c, mr := newTestConsumer(t, table)
	mr.Lpush("webhook:events", `{"type":"conversation.message.created","data":{"conversationId":"T1","message":{"markdown":"hi"}}}`)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })

	waitFor(t, func() bool {
		n, err := c.Len(context.Background())
		return err == nil && n == 0
	})
}

func TestMalformedEventIsDroppedNotDispatched(t *testing.T) {
	table := dispatch.NewTable()
	var calls int32
	table.Register(EventMessageCreated, func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	c, mr := newTestConsumer(t, table)
	mr.Lpush("webhook:events", "not-json")

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop()

	waitFor(t, func() bool {
		n, err := c.Len(context.Background())
		return err == nil && n == 0
	})
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("expected no handler invocation for malformed event")
	}
}

func TestStopDrainsInFlightHandlers(t *testing.T) {
	table := dispatch.NewTable()
	var completed int32
	table.Register(EventMessageCreated, func(ctx context.Context, e Event) error {
		time.Sleep(100 * time.Millisecond)
		atomic.AddInt32(&completed, 1)
		return nil
	})

	c, mr := newTestConsumer(t, table)
	for i := 0; i < 3; i++ {
		mr.Lpush("webhook:events", `{"type":"conversation.message.created","data":{"conversationId":"T1","message":{"markdown":"hi"}}}`)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	stopStart := time.Now()
	c.Stop()
	stopElapsed := time.Since(stopStart)

	if stopElapsed > drainTimeout+time.Second {
		t.Fatalf("Stop took %v, want within drain timeout", stopElapsed)
	}
	if c.GetHealth().State != StateStopped {
		t.Fatalf("state after Stop = %v, want Stopped", c.GetHealth().State)
	}
}

func TestStartFailsWhenAlreadyRunning(t *testing.T) {
	table := dispatch.NewTable()
	c, _ := newTestConsumer(t, table)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer c.Stop()

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while already running")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
