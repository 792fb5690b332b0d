package store

import (
	"context"
	"encoding/json"

	"github.com/wisbric/bridge/internal/cache/durable"
	"github.com/wisbric/bridge/internal/domain"
)

// UpsertMappingParams mirrors durable.UpsertMappingParams.
type UpsertMappingParams = durable.UpsertMappingParams

// UpsertMapping performs a durable upsert keyed on chat_thread_id and
// writes both mapping:thread:<tid> and mapping:ticket:<uid> on success
// (spec §4.5). Invariant (I2) requires the durable write to complete
// before any message is sent into the newly mapped thread; callers must
// await this call before posting.
func (s *Store) UpsertMapping(ctx context.Context, p UpsertMappingParams) (domain.ThreadTicketMapping, error) {
	m, err := s.durable.UpsertMapping(ctx, p)
	if err != nil {
		return domain.ThreadTicketMapping{}, err
	}

	payload, err := json.Marshal(m)
	if err == nil {
		if serr := s.engine.Set(ctx, mappingThreadKey(m.ChatThreadID), payload, 0); serr != nil {
			s.logger.Warn("store: caching mapping by thread failed", "chat_thread_id", m.ChatThreadID, "error", serr)
		}
		if serr := s.engine.Set(ctx, mappingTicketKey(m.TicketID), payload, 0); serr != nil {
			s.logger.Warn("store: caching mapping by ticket failed", "ticket_id", m.TicketID, "error", serr)
		}
	}

	return m, nil
}

// GetMappingByThread reads through C4 under mapping:thread:<id>.
func (s *Store) GetMappingByThread(ctx context.Context, chatThreadID string) (domain.ThreadTicketMapping, bool, error) {
	return s.getMapping(ctx, mappingThreadKey(chatThreadID), func(ctx context.Context) (domain.ThreadTicketMapping, bool, error) {
		return s.durable.GetMappingByThread(ctx, chatThreadID)
	})
}

// GetMappingByTicket reads through C4 under mapping:ticket:<id>.
func (s *Store) GetMappingByTicket(ctx context.Context, ticketID string) (domain.ThreadTicketMapping, bool, error) {
	return s.getMapping(ctx, mappingTicketKey(ticketID), func(ctx context.Context) (domain.ThreadTicketMapping, bool, error) {
		return s.durable.GetMappingByTicket(ctx, ticketID)
	})
}

func (s *Store) getMapping(
	ctx context.Context,
	cacheKey string,
	durableLookup func(context.Context) (domain.ThreadTicketMapping, bool, error),
) (domain.ThreadTicketMapping, bool, error) {
	raw, _, hit, err := s.engine.Get(ctx, cacheKey)
	if err != nil {
		s.logger.Warn("store: cache lookup failed, falling back to durable table", "key", cacheKey, "error", err)
	} else if hit {
		var m domain.ThreadTicketMapping
		if err := json.Unmarshal(raw, &m); err == nil {
			return m, true, nil
		}
	}

	m, found, err := durableLookup(ctx)
	if err != nil {
		return domain.ThreadTicketMapping{}, false, err
	}
	if !found {
		return domain.ThreadTicketMapping{}, false, nil
	}

	payload, merr := json.Marshal(m)
	if merr == nil {
		if serr := s.engine.Set(ctx, mappingThreadKey(m.ChatThreadID), payload, 0); serr != nil {
			s.logger.Warn("store: warming mapping:thread after durable hit failed", "error", serr)
		}
		if serr := s.engine.Set(ctx, mappingTicketKey(m.TicketID), payload, 0); serr != nil {
			s.logger.Warn("store: warming mapping:ticket after durable hit failed", "error", serr)
		}
	}
	return m, true, nil
}
