package store

import (
	"context"
	"fmt"
	"time"

	"github.com/wisbric/bridge/internal/bridgeerr"
)

// SetBotConfig is a direct C4 pass-through under bot:config:<k> (spec §4.5).
func (s *Store) SetBotConfig(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.engine.Set(ctx, botConfigKey(key), value, ttl)
}

// GetBotConfig is a direct C4 pass-through under bot:config:<k>.
func (s *Store) GetBotConfig(ctx context.Context, key string) ([]byte, error) {
	value, _, hit, err := s.engine.Get(ctx, botConfigKey(key))
	if err != nil {
		return nil, err
	}
	if !hit {
		return nil, bridgeerr.ErrNotFound
	}
	return value, nil
}

// DeleteBotConfig is a direct C4 pass-through under bot:config:<k>.
func (s *Store) DeleteBotConfig(ctx context.Context, key string) error {
	return s.engine.Delete(ctx, botConfigKey(key))
}

// ErrInvalidPattern is returned by ClearCache when pattern is not one of
// the recognized namespaces.
var ErrInvalidPattern = fmt.Errorf("store: invalid cache pattern")

// ClearCache validates pattern against the closed enum of key namespaces
// before deleting, preventing caller-supplied identifiers from reaching
// the key space unchecked (spec §4.5).
func (s *Store) ClearCache(ctx context.Context, pattern CachePattern, id string) error {
	if !pattern.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	return s.engine.Delete(ctx, pattern.key(id))
}
