package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wisbric/bridge/internal/bridgeerr"
	"github.com/wisbric/bridge/internal/dispatch"
	"github.com/wisbric/bridge/internal/telemetry"
)

// State is the consumer's lifecycle state machine (spec §4.7).
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateRunning    State = "running"
	StateDraining   State = "draining"
	StateStopped    State = "stopped"
)

const drainTimeout = 30 * time.Second

// Health is the degraded-health surface exposed on /readyz (supplemental
// feature, SPEC_FULL.md §C): a consumer stuck reconnecting still reports
// Running but with a growing ConsecutiveFailures count.
type Health struct {
	State               State
	LastPopAt           time.Time
	ConsecutiveFailures int
}

// Consumer is the single long-running queue-consumer task (C7). It holds
// two dedicated Redis connections: one for blocking pops, one for
// inspection (queue length), per spec §4.7.
type Consumer struct {
	popClient     *redis.Client
	inspectClient *redis.Client
	queueName     string
	pollInterval  time.Duration
	blockTimeout  time.Duration
	table         *dispatch.Table
	logger        *slog.Logger

	mu              sync.Mutex
	state           State
	consecutiveFail int
	lastPopAt       time.Time

	inFlight sync.WaitGroup
	stopCh   chan struct{}
	stopped  chan struct{}
}

// Config configures the consumer from spec §4.7/§6.
type Config struct {
	QueueName    string
	PollInterval time.Duration
	BlockTimeout time.Duration
}

// New builds a Consumer. popClient and inspectClient must be distinct
// connections to the same backend.
func New(popClient, inspectClient *redis.Client, cfg Config, table *dispatch.Table, logger *slog.Logger) *Consumer {
	return &Consumer{
		popClient:     popClient,
		inspectClient: inspectClient,
		queueName:     cfg.QueueName,
		pollInterval:  cfg.PollInterval,
		blockTimeout:  cfg.BlockTimeout,
		table:         table,
		logger:        logger,
		state:         StateIdle,
	}
}

// Start transitions Idle->Connecting->Running and launches the poll loop.
// It fails if the consumer is already running.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateRunning || c.state == StateConnecting {
		c.mu.Unlock()
		return errors.New("queue: consumer already running")
	}
	c.state = StateConnecting
	c.stopCh = make(chan struct{})
	c.stopped = make(chan struct{})
	c.mu.Unlock()

	if err := c.popClient.Ping(ctx).Err(); err != nil {
		c.setState(StateIdle)
		return err
	}

	c.setState(StateRunning)
	go c.loop(ctx)
	return nil
}

// Stop transitions Running->Draining->Stopped, waiting for in-flight
// handlers up to the drain timeout before returning.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateDraining
	close(c.stopCh)
	c.mu.Unlock()

	<-c.stopped

	done := make(chan struct{})
	go func() {
		c.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		c.logger.Warn("queue: drain timeout elapsed with handlers still in flight")
	}

	c.setState(StateStopped)
}

func (c *Consumer) loop(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		c.poll(ctx)

		select {
		case <-c.stopCh:
			return
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Consumer) poll(ctx context.Context) {
	popCtx, cancel := context.WithTimeout(ctx, c.blockTimeout)
	defer cancel()

	result, err := c.popClient.BLPop(popCtx, c.blockTimeout, c.queueName).Result()
	if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
		c.recordPop(true)
		return
	}
	if err != nil {
		c.recordPop(false)
		c.logger.Warn("queue: pop failed", "error", err)
		return
	}
	c.recordPop(true)

	// result is [key, value]; BLPop always returns exactly two elements on success.
	payload := result[1]

	c.inFlight.Add(1)
	go func() {
		defer c.inFlight.Done()
		c.handle(ctx, payload)
	}()
}

func (c *Consumer) handle(ctx context.Context, payload string) {
	event, err := Parse([]byte(payload))
	if err != nil {
		switch {
		case errors.Is(err, bridgeerr.ErrMalformedEvent):
			telemetry.QueueEventsConsumedTotal.WithLabelValues("malformed").Inc()
		case errors.Is(err, bridgeerr.ErrInvalidEvent):
			telemetry.QueueEventsConsumedTotal.WithLabelValues("invalid").Inc()
		case errors.Is(err, bridgeerr.ErrUnknownEventType):
			telemetry.QueueEventsConsumedTotal.WithLabelValues("unknown_type").Inc()
		}
		c.logger.Warn("queue: dropping event", "error", err)
		return
	}

	if err := c.table.Dispatch(ctx, event); err != nil {
		telemetry.QueueEventsConsumedTotal.WithLabelValues("handler_error").Inc()
		c.logger.Error("queue: handler failed", "conversation_id", event.ConversationID, "error", err)
		return
	}
	telemetry.QueueEventsConsumedTotal.WithLabelValues("dispatched").Inc()
}

func (c *Consumer) recordPop(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPopAt = time.Now()
	if ok {
		c.consecutiveFail = 0
	} else {
		c.consecutiveFail++
	}
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Len returns the current queue depth via the dedicated inspection connection.
func (c *Consumer) Len(ctx context.Context) (int64, error) {
	return c.inspectClient.LLen(ctx, c.queueName).Result()
}

// GetHealth reports the consumer's degraded-health surface for /readyz.
func (c *Consumer) GetHealth() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Health{State: c.state, LastPopAt: c.lastPopAt, ConsecutiveFailures: c.consecutiveFail}
}
