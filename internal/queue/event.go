package queue

import (
	"encoding/json"
	"fmt"

	"github.com/wisbric/bridge/internal/bridgeerr"
)

// EventType is the closed set of recognized webhook event types (spec §6).
type EventType string

const (
	EventMessageCreated  EventType = "conversation.message.created"
	EventStatusUpdated   EventType = "conversation.status.updated"
	EventConversationNew EventType = "conversation.created"
)

// messageCreatedAlias is the alternate spelling accepted for EventMessageCreated.
const messageCreatedAlias = "message_created"

// rawEvent mirrors the wire shape loosely enough to extract the
// conversation id and message text from any of the documented field paths.
type rawEvent struct {
	Type string `json:"type"`
	Data struct {
		ConversationID string `json:"conversationId"`
		Conversation    struct {
			ID string `json:"id"`
		} `json:"conversation"`
		ID      string `json:"id"`
		Message struct {
			Markdown string `json:"markdown"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"data"`
}

// Event is the validated, normalized form handed to C9's dispatch table.
type Event struct {
	Type           EventType
	ConversationID string
	MessageText    string
	Raw            json.RawMessage
}

// Parse decodes and validates a raw queue payload per spec §6: JSON parse
// failure yields ErrMalformedEvent; a structurally incomplete but
// well-formed payload yields ErrInvalidEvent; an unrecognized type yields
// ErrUnknownEventType.
func Parse(payload []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", bridgeerr.ErrMalformedEvent, err)
	}

	eventType, ok := normalizeType(raw.Type)
	if !ok {
		return Event{}, fmt.Errorf("%w: %q", bridgeerr.ErrUnknownEventType, raw.Type)
	}

	conversationID := firstNonEmpty(raw.Data.ConversationID, raw.Data.Conversation.ID, raw.Data.ID)
	if conversationID == "" {
		return Event{}, fmt.Errorf("%w: missing conversation id", bridgeerr.ErrInvalidEvent)
	}

	messageText := firstNonEmpty(raw.Data.Message.Markdown, raw.Data.Text)
	if eventType == EventMessageCreated && messageText == "" {
		return Event{}, fmt.Errorf("%w: missing message content", bridgeerr.ErrInvalidEvent)
	}

	return Event{
		Type:           eventType,
		ConversationID: conversationID,
		MessageText:    messageText,
		Raw:            json.RawMessage(payload),
	}, nil
}

func normalizeType(t string) (EventType, bool) {
	switch t {
	case string(EventMessageCreated), messageCreatedAlias:
		return EventMessageCreated, true
	case string(EventStatusUpdated):
		return EventStatusUpdated, true
	case string(EventConversationNew):
		return EventConversationNew, true
	default:
		return "", false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
