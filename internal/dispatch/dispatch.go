// Package dispatch implements the event dispatch component (C9): a pure
// event_type -> handler routing table. Unknown types are logged at warn
// and dropped by the caller (C7); handler failures propagate back to C7
// unchanged so it can log with the conversation_id already extracted by
// the validator.
package dispatch

import (
	"context"
	"fmt"

	"github.com/wisbric/bridge/internal/bridgeerr"
	"github.com/wisbric/bridge/internal/queue"
)

// Handler processes a single validated event.
type Handler func(ctx context.Context, event queue.Event) error

// Table is the event_type -> handler routing table.
type Table struct {
	handlers map[queue.EventType]Handler
}

// NewTable builds an empty routing table.
func NewTable() *Table {
	return &Table{handlers: make(map[queue.EventType]Handler)}
}

// Register binds handler to eventType, replacing any existing binding.
func (t *Table) Register(eventType queue.EventType, handler Handler) {
	t.handlers[eventType] = handler
}

// Dispatch routes event to its registered handler. An event type with no
// registered handler yields ErrUnknownEventType so the caller can apply
// the uniform warn-and-drop policy.
func (t *Table) Dispatch(ctx context.Context, event queue.Event) error {
	handler, ok := t.handlers[event.Type]
	if !ok {
		return fmt.Errorf("%w: %q", bridgeerr.ErrUnknownEventType, event.Type)
	}
	return handler(ctx, event)
}
