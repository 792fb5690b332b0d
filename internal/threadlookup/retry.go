// Package threadlookup implements bounded-retry thread lookup (C8): given
// a ticket_id, resolve the corresponding chat thread, absorbing the
// propagation lag between a webhook arriving and its mapping having
// finished replicating through the three storage tiers.
package threadlookup

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/wisbric/bridge/internal/bridgeerr"
	"github.com/wisbric/bridge/internal/chatplatform"
	"github.com/wisbric/bridge/internal/domain"
	"github.com/wisbric/bridge/internal/telemetry"
)

// MappingLookuper is the slice of the domain store (C5) this component
// depends on, kept narrow so tests can substitute a fake.
type MappingLookuper interface {
	GetMappingByTicket(ctx context.Context, ticketID string) (domain.ThreadTicketMapping, bool, error)
}

// Policy holds the retry parameters from spec §4.8.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the spec's literal defaults.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	Window:      10 * time.Second,
	BaseDelay:   1 * time.Second,
	MaxDelay:    5 * time.Second,
}

// Lookup resolves a ticket_id to its chat thread with bounded retry on the
// "mapping not found" failure mode only; chat-platform errors are raised
// immediately without retrying.
type Lookup struct {
	store  MappingLookuper
	chat   chatplatform.Client
	policy Policy
	sleep  func(time.Duration) // overridable in tests
}

// New builds a Lookup using policy. If policy is the zero value,
// DefaultPolicy is used.
func New(s MappingLookuper, chat chatplatform.Client, policy Policy) *Lookup {
	if policy == (Policy{}) {
		policy = DefaultPolicy
	}
	return &Lookup{store: s, chat: chat, policy: policy, sleep: time.Sleep}
}

// FindByTicketWithRetry is the base lookup from spec §4.8:
// C5.getMappingByTicket -> chat client fetch by thread id -> verify the
// fetched channel is a thread.
func (l *Lookup) FindByTicketWithRetry(ctx context.Context, ticketID string) (chatplatform.Thread, error) {
	start := time.Now()

	for attempt := 1; ; attempt++ {
		thread, err := l.attempt(ctx, ticketID)
		if err == nil {
			telemetry.ThreadLookupRetries.WithLabelValues("found").Inc()
			return thread, nil
		}
		if !errors.Is(err, bridgeerr.ErrMappingNotFound) {
			return chatplatform.Thread{}, err
		}
		if attempt >= l.policy.MaxAttempts {
			elapsed := time.Since(start)
			telemetry.ThreadLookupRetries.WithLabelValues("exhausted").Inc()
			return chatplatform.Thread{}, &bridgeerr.MappingLookupError{
				TicketID:            ticketID,
				Attempts:            attempt,
				Elapsed:             elapsed,
				LikelyRaceCondition: elapsed < l.policy.Window,
			}
		}

		delay := l.backoff(attempt)
		l.sleep(delay)
	}
}

func (l *Lookup) attempt(ctx context.Context, ticketID string) (chatplatform.Thread, error) {
	mapping, found, err := l.store.GetMappingByTicket(ctx, ticketID)
	if err != nil {
		return chatplatform.Thread{}, err
	}
	if !found {
		return chatplatform.Thread{}, bridgeerr.ErrMappingNotFound
	}

	thread, found, err := l.chat.FetchThread(ctx, mapping.ChatThreadID)
	if err != nil {
		return chatplatform.Thread{}, err
	}
	if !found {
		return chatplatform.Thread{}, bridgeerr.ErrMappingNotFound
	}
	if !thread.IsThread {
		return chatplatform.Thread{}, chatplatform.ErrNotAThread
	}
	return thread, nil
}

// backoff computes delay = min(baseDelay*2^(n-1) + jitter, maxDelay), with
// jitter uniform in [0, 0.1*baseDelay] (spec §4.8).
func (l *Lookup) backoff(attempt int) time.Duration {
	exp := l.policy.BaseDelay * time.Duration(1<<uint(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(l.policy.BaseDelay)/10 + 1))
	delay := exp + jitter
	if delay > l.policy.MaxDelay {
		delay = l.policy.MaxDelay
	}
	return delay
}
