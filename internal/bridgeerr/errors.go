// Package bridgeerr represents the error taxonomy from spec.md §7 as a
// small set of sentinel values and one carrier type, matching the
// REDESIGN FLAG in §9 ("typed errors via class hierarchy" -> tagged
// variant callers match on with errors.Is/errors.As).
package bridgeerr

import (
	"errors"
	"fmt"
	"time"
)

// ErrTierUnavailable marks a transient-backend failure (§7): the operation
// could not reach a tier, but the caller should treat it as absence rather
// than a hard failure where the tier is best-effort (L1, L2).
var ErrTierUnavailable = errors.New("storage tier unavailable")

// ErrNotFound marks a clean miss across every consulted tier.
var ErrNotFound = errors.New("not found")

// ErrMappingNotFound is the distinct error class from §4.8/§7 that drives
// the thread-lookup retry classifier. Wrap it with MappingNotFoundError to
// carry the retry context a caller needs to choose log severity.
var ErrMappingNotFound = errors.New("mapping not found")

// ErrMalformedEvent marks a webhook event that failed JSON parsing (§7).
// Never retried internally — the event is dropped.
var ErrMalformedEvent = errors.New("malformed event")

// ErrInvalidEvent marks a webhook event that parsed but failed structural
// validation (missing required fields per §6).
var ErrInvalidEvent = errors.New("invalid event")

// ErrUnknownEventType marks an event whose type is not in the routing
// table (§4.9). Dropped with a warn log, not an error condition per se.
var ErrUnknownEventType = errors.New("unknown event type")

// MappingLookupError carries the retry classification described in §4.8:
// the caller uses LikelyRaceCondition to decide whether to log at warn
// (probably still propagating) or error (probably a genuine orphan).
type MappingLookupError struct {
	TicketID            string
	Attempts            int
	Elapsed             time.Duration
	LikelyRaceCondition bool
}

func (e *MappingLookupError) Error() string {
	return fmt.Sprintf(
		"mapping not found for ticket %q after %d attempts (%s elapsed, likely_race_condition=%t)",
		e.TicketID, e.Attempts, e.Elapsed, e.LikelyRaceCondition,
	)
}

// Unwrap lets callers match MappingLookupError against ErrMappingNotFound
// with errors.Is.
func (e *MappingLookupError) Unwrap() error {
	return ErrMappingNotFound
}
