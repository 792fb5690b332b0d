// Package domain holds the data model shared by the durable tier (C3) and
// the domain store (C5): customers and thread/ticket mappings.
package domain

import "time"

// Customer is the chat-side identity mirrored into the ticket platform,
// keyed primarily by chat_user_id (spec §3).
type Customer struct {
	ChatUserID       string
	TicketCustomerID *string
	Username         string
	DisplayName      *string
	Email            *string
	AvatarURL        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MappingStatus is the closed set of lifecycle states for a ThreadTicketMapping.
type MappingStatus string

const (
	MappingActive   MappingStatus = "active"
	MappingClosed   MappingStatus = "closed"
	MappingArchived MappingStatus = "archived"
)

// ThreadTicketMapping is the correctness-critical bijection between a
// chat-side thread and a ticket-side conversation (spec §3).
type ThreadTicketMapping struct {
	ChatThreadID  string
	TicketID      string
	ChatChannelID *string
	CustomerID    *int64
	Status        MappingStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
