package chatplatform

import (
	"context"
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"
)

// SlackAdapter implements Client against the Slack Web API. Thread
// identifiers are the composite "<channelID>:<threadTS>" used throughout
// the bridge as chat_thread_id.
type SlackAdapter struct {
	client *goslack.Client
}

// NewSlackAdapter wraps a bot token. An empty token yields a disabled
// adapter whose methods all report "not found" / no-op rather than
// erroring, matching the teacher's IsEnabled() convention for optional
// integrations.
func NewSlackAdapter(botToken string) *SlackAdapter {
	if botToken == "" {
		return &SlackAdapter{}
	}
	return &SlackAdapter{client: goslack.New(botToken)}
}

func (a *SlackAdapter) enabled() bool { return a.client != nil }

func splitThreadID(threadID string) (channelID, threadTS string, ok bool) {
	channelID, threadTS, found := strings.Cut(threadID, ":")
	return channelID, threadTS, found && channelID != "" && threadTS != ""
}

// FetchThread resolves threadID by confirming the underlying channel
// exists and the identifier carries a thread timestamp.
func (a *SlackAdapter) FetchThread(ctx context.Context, threadID string) (Thread, bool, error) {
	if !a.enabled() {
		return Thread{}, false, nil
	}
	channelID, threadTS, ok := splitThreadID(threadID)
	if !ok {
		return Thread{}, false, ErrNotAThread
	}

	ch, err := a.client.GetConversationInfoContext(ctx, &goslack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		if isChannelNotFound(err) {
			return Thread{}, false, nil
		}
		return Thread{}, false, fmt.Errorf("chatplatform: fetching conversation %s: %w", channelID, err)
	}

	return Thread{ID: threadID, ChannelID: ch.ID, IsThread: true}, true, nil
}

// SendMessage posts text as a reply within the thread's parent timestamp.
func (a *SlackAdapter) SendMessage(ctx context.Context, threadID, text string) error {
	if !a.enabled() {
		return nil
	}
	channelID, threadTS, ok := splitThreadID(threadID)
	if !ok {
		return ErrNotAThread
	}
	_, _, err := a.client.PostMessageContext(ctx, channelID,
		goslack.MsgOptionText(text, false),
		goslack.MsgOptionTS(threadTS),
	)
	if err != nil {
		return fmt.Errorf("chatplatform: sending message to %s: %w", threadID, err)
	}
	return nil
}

// AddMember invites userID into channelID.
func (a *SlackAdapter) AddMember(ctx context.Context, channelID, userID string) error {
	if !a.enabled() {
		return nil
	}
	_, err := a.client.InviteUsersToConversationContext(ctx, channelID, userID)
	if err != nil {
		return fmt.Errorf("chatplatform: inviting %s to %s: %w", userID, channelID, err)
	}
	return nil
}

// isChannelNotFound matches Slack's plain-text API error for a missing
// channel. The Slack Web API reports errors as a bare "ok": false payload
// with an "error" string rather than a typed error hierarchy, so a
// substring match against the wrapped message is the reliable signal.
func isChannelNotFound(err error) bool {
	return strings.Contains(err.Error(), "channel_not_found")
}
