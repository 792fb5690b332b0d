package threadlookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wisbric/bridge/internal/bridgeerr"
	"github.com/wisbric/bridge/internal/chatplatform"
	"github.com/wisbric/bridge/internal/domain"
)

type fakeMappingStore struct {
	mu       sync.Mutex
	mappings map[string]domain.ThreadTicketMapping
}

func newFakeMappingStore() *fakeMappingStore {
	return &fakeMappingStore{mappings: map[string]domain.ThreadTicketMapping{}}
}

func (f *fakeMappingStore) put(ticketID, chatThreadID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings[ticketID] = domain.ThreadTicketMapping{TicketID: ticketID, ChatThreadID: chatThreadID}
}

func (f *fakeMappingStore) GetMappingByTicket(ctx context.Context, ticketID string) (domain.ThreadTicketMapping, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[ticketID]
	return m, ok, nil
}

type fakeChatClient struct {
	threads map[string]chatplatform.Thread
}

func (f *fakeChatClient) FetchThread(ctx context.Context, threadID string) (chatplatform.Thread, bool, error) {
	th, ok := f.threads[threadID]
	return th, ok, nil
}
func (f *fakeChatClient) SendMessage(ctx context.Context, threadID, text string) error { return nil }
func (f *fakeChatClient) AddMember(ctx context.Context, channelID, userID string) error { return nil }

func noSleep(time.Duration) {}

func TestFindByTicketSucceedsImmediately(t *testing.T) {
	mappings := newFakeMappingStore()
	mappings.put("T1", "Th1")
	chat := &fakeChatClient{threads: map[string]chatplatform.Thread{"Th1": {ID: "Th1", IsThread: true}}}

	l := New(mappings, chat, DefaultPolicy)
	l.sleep = noSleep

	th, err := l.FindByTicketWithRetry(context.Background(), "T1")
	if err != nil || th.ID != "Th1" {
		t.Fatalf("FindByTicketWithRetry = %+v, %v", th, err)
	}
}

func TestFindByTicketRetriesUntilMappingAppears(t *testing.T) {
	mappings := newFakeMappingStore()
	chat := &fakeChatClient{threads: map[string]chatplatform.Thread{"Th1": {ID: "Th1", IsThread: true}}}

	l := New(mappings, chat, Policy{MaxAttempts: 5, Window: 10 * time.Second, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	var sleeps int
	l.sleep = func(d time.Duration) {
		sleeps++
		if sleeps == 1 {
			mappings.put("T1", "Th1")
		}
	}

	th, err := l.FindByTicketWithRetry(context.Background(), "T1")
	if err != nil || th.ID != "Th1" {
		t.Fatalf("FindByTicketWithRetry = %+v, %v", th, err)
	}
	if sleeps < 1 {
		t.Fatal("expected at least one retry sleep")
	}
}

func TestFindByTicketExhaustsAttempts(t *testing.T) {
	mappings := newFakeMappingStore()
	chat := &fakeChatClient{threads: map[string]chatplatform.Thread{}}

	l := New(mappings, chat, Policy{MaxAttempts: 3, Window: 10 * time.Second, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	l.sleep = noSleep

	_, err := l.FindByTicketWithRetry(context.Background(), "T2")
	var lookupErr *bridgeerr.MappingLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected *MappingLookupError, got %v", err)
	}
	if lookupErr.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", lookupErr.Attempts)
	}
	if !errors.Is(err, bridgeerr.ErrMappingNotFound) {
		t.Fatal("expected errors.Is to match ErrMappingNotFound")
	}
}

func TestChatPlatformErrorIsNotRetried(t *testing.T) {
	mappings := newFakeMappingStore()
	mappings.put("T1", "Th1")

	boom := errors.New("boom")
	chat := &erroringChatClient{err: boom}

	l := New(mappings, chat, DefaultPolicy)
	var sleeps int
	l.sleep = func(time.Duration) { sleeps++ }

	_, err := l.FindByTicketWithRetry(context.Background(), "T1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected chat-platform error to propagate immediately, got %v", err)
	}
	if sleeps != 0 {
		t.Fatalf("expected no retries on chat-platform error, got %d sleeps", sleeps)
	}
}

type erroringChatClient struct{ err error }

func (e *erroringChatClient) FetchThread(ctx context.Context, threadID string) (chatplatform.Thread, bool, error) {
	return chatplatform.Thread{}, false, e.err
}
func (e *erroringChatClient) SendMessage(ctx context.Context, threadID, text string) error {
	return nil
}
func (e *erroringChatClient) AddMember(ctx context.Context, channelID, userID string) error {
	return nil
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	l := New(newFakeMappingStore(), &fakeChatClient{}, Policy{MaxAttempts: 10, Window: time.Second, BaseDelay: time.Second, MaxDelay: 5 * time.Second})
	for attempt := 1; attempt <= 8; attempt++ {
		d := l.backoff(attempt)
		if d > l.policy.MaxDelay {
			t.Fatalf("backoff(%d) = %v, exceeds cap %v", attempt, d, l.policy.MaxDelay)
		}
	}
}
