package durable

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wisbric/bridge/internal/domain"
)

// UpsertCustomerParams carries only the fields a caller wants to set;
// absent optional fields leave the existing stored value untouched
// (spec §4.5: "the SQL uses COALESCE so that absent fields do not
// overwrite present ones").
type UpsertCustomerParams struct {
	ChatUserID       string
	TicketCustomerID *string
	Username         string
	DisplayName      *string
	Email            *string
	AvatarURL        *string
}

// UpsertCustomer inserts or updates the customer row keyed on chat_user_id.
func (s *Store) UpsertCustomer(ctx context.Context, p UpsertCustomerParams) (domain.Customer, error) {
	var c domain.Customer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (chat_user_id, ticket_customer_id, username, display_name, email, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (chat_user_id) DO UPDATE SET
			ticket_customer_id = COALESCE(EXCLUDED.ticket_customer_id, customers.ticket_customer_id),
			username            = COALESCE(NULLIF(EXCLUDED.username, ''), customers.username),
			display_name        = COALESCE(EXCLUDED.display_name, customers.display_name),
			email               = COALESCE(EXCLUDED.email, customers.email),
			avatar_url          = COALESCE(EXCLUDED.avatar_url, customers.avatar_url),
			updated_at          = now()
		RETURNING chat_user_id, ticket_customer_id, username, display_name, email, avatar_url, created_at, updated_at`,
		p.ChatUserID, p.TicketCustomerID, p.Username, p.DisplayName, p.Email, p.AvatarURL,
	).Scan(&c.ChatUserID, &c.TicketCustomerID, &c.Username, &c.DisplayName, &c.Email, &c.AvatarURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("durable: upsert customer %q: %w", p.ChatUserID, err)
	}
	return c, nil
}

// GetCustomerByChatID looks up a customer by its primary (chat-side) key.
func (s *Store) GetCustomerByChatID(ctx context.Context, chatUserID string) (domain.Customer, bool, error) {
	return s.scanCustomer(ctx, `SELECT chat_user_id, ticket_customer_id, username, display_name, email, avatar_url, created_at, updated_at
		FROM customers WHERE chat_user_id = $1`, chatUserID)
}

// GetCustomerByTicketID looks up a customer by its alternate (ticket-side) key.
func (s *Store) GetCustomerByTicketID(ctx context.Context, ticketCustomerID string) (domain.Customer, bool, error) {
	return s.scanCustomer(ctx, `SELECT chat_user_id, ticket_customer_id, username, display_name, email, avatar_url, created_at, updated_at
		FROM customers WHERE ticket_customer_id = $1`, ticketCustomerID)
}

func (s *Store) scanCustomer(ctx context.Context, query, arg string) (domain.Customer, bool, error) {
	var c domain.Customer
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&c.ChatUserID, &c.TicketCustomerID, &c.Username, &c.DisplayName, &c.Email, &c.AvatarURL, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, false, nil
	}
	if err != nil {
		return domain.Customer{}, false, fmt.Errorf("durable: get customer: %w", err)
	}
	return c, true, nil
}

// UpsertMappingParams carries the fields needed to create or update a
// ThreadTicketMapping, keyed on chat_thread_id.
type UpsertMappingParams struct {
	ChatThreadID  string
	TicketID      string
	ChatChannelID *string
	CustomerID    *int64
	Status        domain.MappingStatus
}

// UpsertMapping inserts or updates the mapping row keyed on chat_thread_id.
// The unique constraint on ticket_id enforces the bijection invariant (I1);
// a violation surfaces to the caller as a durable-constraint error.
func (s *Store) UpsertMapping(ctx context.Context, p UpsertMappingParams) (domain.ThreadTicketMapping, error) {
	status := p.Status
	if status == "" {
		status = domain.MappingActive
	}
	var m domain.ThreadTicketMapping
	err := s.pool.QueryRow(ctx, `
		INSERT INTO thread_ticket_mappings (chat_thread_id, ticket_id, chat_channel_id, customer_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (chat_thread_id) DO UPDATE SET
			ticket_id      = COALESCE(NULLIF(EXCLUDED.ticket_id, ''), thread_ticket_mappings.ticket_id),
			chat_channel_id = COALESCE(EXCLUDED.chat_channel_id, thread_ticket_mappings.chat_channel_id),
			customer_id     = COALESCE(EXCLUDED.customer_id, thread_ticket_mappings.customer_id),
			status          = EXCLUDED.status,
			updated_at      = now()
		RETURNING chat_thread_id, ticket_id, chat_channel_id, customer_id, status, created_at, updated_at`,
		p.ChatThreadID, p.TicketID, p.ChatChannelID, p.CustomerID, status,
	).Scan(&m.ChatThreadID, &m.TicketID, &m.ChatChannelID, &m.CustomerID, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.ThreadTicketMapping{}, fmt.Errorf("durable: upsert mapping %q: %w", p.ChatThreadID, err)
	}
	return m, nil
}

// GetMappingByThread looks up a mapping by its primary (chat-side) key.
func (s *Store) GetMappingByThread(ctx context.Context, chatThreadID string) (domain.ThreadTicketMapping, bool, error) {
	return s.scanMapping(ctx, `SELECT chat_thread_id, ticket_id, chat_channel_id, customer_id, status, created_at, updated_at
		FROM thread_ticket_mappings WHERE chat_thread_id = $1`, chatThreadID)
}

// GetMappingByTicket looks up a mapping by its alternate (ticket-side) key.
func (s *Store) GetMappingByTicket(ctx context.Context, ticketID string) (domain.ThreadTicketMapping, bool, error) {
	return s.scanMapping(ctx, `SELECT chat_thread_id, ticket_id, chat_channel_id, customer_id, status, created_at, updated_at
		FROM thread_ticket_mappings WHERE ticket_id = $1`, ticketID)
}

func (s *Store) scanMapping(ctx context.Context, query, arg string) (domain.ThreadTicketMapping, bool, error) {
	var m domain.ThreadTicketMapping
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&m.ChatThreadID, &m.TicketID, &m.ChatChannelID, &m.CustomerID, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ThreadTicketMapping{}, false, nil
	}
	if err != nil {
		return domain.ThreadTicketMapping{}, false, fmt.Errorf("durable: get mapping: %w", err)
	}
	return m, true, nil
}
