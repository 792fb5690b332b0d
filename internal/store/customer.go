package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wisbric/bridge/internal/cache/durable"
	"github.com/wisbric/bridge/internal/cache/engine"
	"github.com/wisbric/bridge/internal/domain"
)

// Store layers typed operations on top of the unified storage engine (C4)
// and the durable tier's typed tables (C3).
type Store struct {
	engine  *engine.Engine
	durable *durable.Store
	logger  *slog.Logger
}

// New builds a Store.
func New(eng *engine.Engine, dur *durable.Store, logger *slog.Logger) *Store {
	return &Store{engine: eng, durable: dur, logger: logger}
}

// UpsertCustomerParams mirrors durable.UpsertCustomerParams; kept as a
// distinct type so the domain store's public API doesn't leak the durable
// package's shape.
type UpsertCustomerParams = durable.UpsertCustomerParams

// UpsertCustomer performs a durable upsert keyed on chat user id, then
// writes customer:chat:<id> into C4; if TicketCustomerID is present it also
// writes customer:ticket:<tid> with the same payload (spec §4.5).
func (s *Store) UpsertCustomer(ctx context.Context, p UpsertCustomerParams) (domain.Customer, error) {
	c, err := s.durable.UpsertCustomer(ctx, p)
	if err != nil {
		return domain.Customer{}, err
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("store: marshaling customer: %w", err)
	}

	if err := s.engine.Set(ctx, customerChatKey(c.ChatUserID), payload, 0); err != nil {
		s.logger.Warn("store: caching customer by chat id failed", "chat_user_id", c.ChatUserID, "error", err)
	}
	if c.TicketCustomerID != nil {
		if err := s.engine.Set(ctx, customerTicketKey(*c.TicketCustomerID), payload, 0); err != nil {
			s.logger.Warn("store: caching customer by ticket id failed", "ticket_customer_id", *c.TicketCustomerID, "error", err)
		}
	}

	return c, nil
}

// GetCustomerByChatID reads through C4 under customer:chat:<id>. On a
// durable hit from the alternate index there is nothing to warm here since
// this already is the primary index; see getByAlternateIndex for the
// symmetric case.
func (s *Store) GetCustomerByChatID(ctx context.Context, chatUserID string) (domain.Customer, bool, error) {
	return s.getCustomer(ctx, customerChatKey(chatUserID), func(ctx context.Context) (domain.Customer, bool, error) {
		return s.durable.GetCustomerByChatID(ctx, chatUserID)
	}, func(c domain.Customer) {
		payload, err := json.Marshal(c)
		if err != nil {
			return
		}
		if err := s.engine.Set(ctx, customerChatKey(c.ChatUserID), payload, 0); err != nil {
			s.logger.Warn("store: warming customer:chat after durable hit failed", "error", err)
		}
		if c.TicketCustomerID != nil {
			if err := s.engine.Set(ctx, customerTicketKey(*c.TicketCustomerID), payload, 0); err != nil {
				s.logger.Warn("store: warming customer:ticket after durable hit failed", "error", err)
			}
		}
	})
}

// GetCustomerByTicketID is the symmetric lookup via the alternate index.
func (s *Store) GetCustomerByTicketID(ctx context.Context, ticketCustomerID string) (domain.Customer, bool, error) {
	return s.getCustomer(ctx, customerTicketKey(ticketCustomerID), func(ctx context.Context) (domain.Customer, bool, error) {
		return s.durable.GetCustomerByTicketID(ctx, ticketCustomerID)
	}, func(c domain.Customer) {
		payload, err := json.Marshal(c)
		if err != nil {
			return
		}
		if err := s.engine.Set(ctx, customerTicketKey(ticketCustomerID), payload, 0); err != nil {
			s.logger.Warn("store: warming customer:ticket after durable hit failed", "error", err)
		}
		if err := s.engine.Set(ctx, customerChatKey(c.ChatUserID), payload, 0); err != nil {
			s.logger.Warn("store: warming customer:chat after durable hit failed", "error", err)
		}
	})
}

func (s *Store) getCustomer(
	ctx context.Context,
	cacheKey string,
	durableLookup func(context.Context) (domain.Customer, bool, error),
	warmBoth func(domain.Customer),
) (domain.Customer, bool, error) {
	raw, _, hit, err := s.engine.Get(ctx, cacheKey)
	if err != nil {
		s.logger.Warn("store: cache lookup failed, falling back to durable table", "key", cacheKey, "error", err)
	} else if hit {
		var c domain.Customer
		if err := json.Unmarshal(raw, &c); err == nil {
			return c, true, nil
		}
	}

	c, found, err := durableLookup(ctx)
	if err != nil {
		return domain.Customer{}, false, err
	}
	if !found {
		return domain.Customer{}, false, nil
	}
	warmBoth(c)
	return c, true, nil
}
