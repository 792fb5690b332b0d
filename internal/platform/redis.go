package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect timeout, keep-alive ping interval, and capped reconnect backoff
// from spec §4.2.
const (
	redisConnectTimeout  = 10 * time.Second
	redisMaxRetryBackoff = 3 * time.Second
)

// NewRedisClient creates a Redis client from the given URL, tuned to the
// connection-management contract in spec §4.2: capped exponential backoff
// on reconnect and a bounded connect timeout. go-redis reconnects and
// pings internally on every command; there is no separate keep-alive
// goroutine to start.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.DialTimeout = redisConnectTimeout
	opts.MaxRetryBackoff = redisMaxRetryBackoff

	client := redis.NewClient(opts)

	connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()
	if err := client.Ping(connectCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
