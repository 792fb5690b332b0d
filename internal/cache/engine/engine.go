// Package engine implements the unified storage engine (C4): the sole
// writer into the three storage tiers, composing the in-memory (C1),
// distributed (C2), and durable (C3) tiers behind one read-through,
// write-through API.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wisbric/bridge/internal/cache/distributed"
	"github.com/wisbric/bridge/internal/cache/durable"
	"github.com/wisbric/bridge/internal/cache/memory"
	"github.com/wisbric/bridge/internal/telemetry"
)

// Layer identifies which tier satisfied a read.
type Layer string

const (
	LayerMemory Layer = "memory"
	LayerRedis  Layer = "redis"
	LayerSource Layer = "postgres"
	LayerNone   Layer = ""
)

// ErrNegativeTTL is returned by Set when ttl is negative.
var ErrNegativeTTL = errors.New("engine: negative ttl is not allowed")

// Engine composes L1, L2, and L3. It is safe for concurrent use.
type Engine struct {
	l1         *memory.Cache
	l2         *distributed.Client
	l3         *durable.Store
	defaultTTL time.Duration
	logger     *slog.Logger
	group      singleflight.Group
	debugMode  bool
}

// New builds an Engine. defaultTTL is applied when warming higher tiers on
// a lower-tier hit (the original write's TTL is not retained past L3).
// debugMode gates the engine's Prometheus counters and the l1_memory_size
// gauge per spec §6 ("DEBUG_MODE enables metrics counting").
func New(l1 *memory.Cache, l2 *distributed.Client, l3 *durable.Store, defaultTTL time.Duration, logger *slog.Logger, debugMode bool) *Engine {
	return &Engine{l1: l1, l2: l2, l3: l3, defaultTTL: defaultTTL, logger: logger, debugMode: debugMode}
}

// Get implements the read algorithm from spec §4.4: L1, then L2 (warming
// L1), then L3 (warming both), else not-found. Concurrent reads for the
// same key are coalesced via singleflight so a thundering herd only
// consults L3 once.
func (e *Engine) Get(ctx context.Context, key string) (value []byte, layer Layer, cacheHit bool, err error) {
	type result struct {
		value    []byte
		layer    Layer
		cacheHit bool
	}

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		if b, ok := e.l1.Get(key); ok {
			e.recordHit(LayerMemory)
			return result{value: b, layer: LayerMemory, cacheHit: true}, nil
		}

		if b, ok, lerr := e.l2.Get(ctx, key); lerr == nil && ok {
			if serr := e.l1.Set(key, b, e.defaultTTL); serr != nil {
				e.logger.Warn("engine: warming L1 from L2 hit failed", "key", key, "error", serr)
			}
			e.refreshMemorySize()
			e.recordHit(LayerRedis)
			return result{value: b, layer: LayerRedis, cacheHit: true}, nil
		}

		b, ok, derr := e.l3.Get(ctx, key)
		if derr != nil {
			return nil, derr
		}
		if ok {
			e.warmParallel(ctx, key, b)
			e.recordHit(LayerSource)
			return result{value: b, layer: LayerSource, cacheHit: false}, nil
		}

		e.recordMiss()
		return result{layer: LayerNone}, nil
	})
	if err != nil {
		return nil, LayerNone, false, err
	}
	r := v.(result)
	return r.value, r.layer, r.cacheHit, nil
}

// warmParallel populates L1 and L2 concurrently after an L3 hit. Failures
// are logged, never surfaced — the read already succeeded.
func (e *Engine) warmParallel(ctx context.Context, key string, value []byte) {
	var g errgroup.Group
	g.Go(func() error {
		if err := e.l1.Set(key, value, e.defaultTTL); err != nil {
			e.logger.Warn("engine: warming L1 from L3 hit failed", "key", key, "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := e.l2.Set(ctx, key, value, e.defaultTTL); err != nil {
			e.logger.Warn("engine: warming L2 from L3 hit failed", "key", key, "error", err)
		}
		return nil
	})
	_ = g.Wait()
	e.refreshMemorySize()
}

// Set implements the write algorithm from spec §4.4: L3 first (source of
// truth, propagated on failure), then best-effort parallel L1/L2 warming.
func (e *Engine) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return ErrNegativeTTL
	}
	if err := e.l3.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		if err := e.l1.Set(key, value, ttl); err != nil {
			e.logger.Warn("engine: L1 write-through failed", "key", key, "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := e.l2.Set(ctx, key, value, ttl); err != nil {
			e.logger.Warn("engine: L2 write-through failed", "key", key, "error", err)
		}
		return nil
	})
	_ = g.Wait()
	e.refreshMemorySize()

	if e.debugMode {
		telemetry.CacheWrites.Inc()
	}
	return nil
}

// Delete removes key from all three tiers. Cache-tier failures are
// swallowed so the durable delete is never blocked; the durable delete
// error, if any, is returned.
func (e *Engine) Delete(ctx context.Context, key string) error {
	e.l1.Delete(key)
	e.l2.Delete(ctx, key)
	e.refreshMemorySize()

	err := e.l3.Delete(ctx, key)
	if e.debugMode {
		telemetry.CacheDeletes.Inc()
	}
	return err
}

// Health pings each tier independently and returns a per-tier boolean map.
func (e *Engine) Health(ctx context.Context) map[string]bool {
	return map[string]bool{
		string(LayerMemory): e.l1.Ping(),
		string(LayerRedis):  e.l2.Ping(ctx),
		string(LayerSource): e.l3.Ping(ctx) == nil,
	}
}

// refreshMemorySize updates the l1_memory_size gauge after any operation
// that changes L1's contents.
func (e *Engine) refreshMemorySize() {
	if !e.debugMode {
		return
	}
	telemetry.L1MemorySize.Set(float64(e.l1.Len()))
}

// recordHit counts a read satisfied by layer.
func (e *Engine) recordHit(layer Layer) {
	if !e.debugMode {
		return
	}
	telemetry.CacheLayerHits.WithLabelValues(string(layer)).Inc()
}

// recordMiss counts a read that found nothing in any tier.
func (e *Engine) recordMiss() {
	if !e.debugMode {
		return
	}
	telemetry.CacheMisses.Inc()
}
