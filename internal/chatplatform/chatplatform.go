// Package chatplatform defines the narrow capability interface C8 and C9
// use to reach the chat side of the bridge. Spec §9's REDESIGN FLAG calls
// for an injected handle in place of an ambient global client, consumed
// through fetch-thread-by-id, send-message, and add-member only.
package chatplatform

import (
	"context"
	"errors"
)

// ErrNotAThread is returned by FetchThread when the identifier resolves to
// a channel or conversation that is not a thread (spec §4.8: "verify the
// fetched channel is a thread").
var ErrNotAThread = errors.New("chatplatform: channel is not a thread")

// Thread is the minimal thread handle C8/C9 need once a ticket_id has been
// resolved to its chat-side counterpart.
type Thread struct {
	ID        string
	ChannelID string
	IsThread  bool
}

// Client is the capability surface the bridge depends on. Implementations
// must treat "not found" as a plain false return, not an error, so callers
// can distinguish "does not exist" from "platform unreachable".
type Client interface {
	// FetchThread resolves a chat-side thread by its identifier.
	FetchThread(ctx context.Context, threadID string) (Thread, bool, error)
	// SendMessage posts text into an existing thread.
	SendMessage(ctx context.Context, threadID, text string) error
	// AddMember invites userID into channelID (used when a ticket's customer
	// needs to be pulled into an existing chat channel).
	AddMember(ctx context.Context, channelID, userID string) error
}
