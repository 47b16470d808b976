package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"rentfleet/internal/domain/shared/daterange"
)

// Sentinel kinds. Every error leaving the engine wraps exactly one of them.
var (
	ErrInvalidDateRange  = errors.New("availability: invalid date range")
	ErrInvalidRecurrence = errors.New("availability: invalid recurrence")
	ErrInvalidScope      = errors.New("availability: invalid scope")
	ErrInvalidRequest    = errors.New("availability: invalid request")
	ErrBookingConflict   = errors.New("availability: booking conflict")
	ErrNotAvailable      = errors.New("availability: listing not available")
	ErrNotFound          = errors.New("availability: not found")
)

// Kind is the stable, wire-level name of an error kind.
type Kind string

const (
	KindInvalidDateRange  Kind = "INVALID_DATE_RANGE"
	KindInvalidRecurrence Kind = "INVALID_RECURRENCE"
	KindInvalidScope      Kind = "INVALID_SCOPE"
	KindInvalidRequest    Kind = "INVALID_REQUEST"
	KindBookingConflict   Kind = "BOOKING_CONFLICT"
	KindNotAvailable      Kind = "VEHICLE_NOT_AVAILABLE"
	KindNotFound          Kind = "NOT_FOUND"
	KindInternal          Kind = "INTERNAL"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidDateRange, KindInvalidDateRange},
	{ErrInvalidRecurrence, KindInvalidRecurrence},
	{ErrInvalidScope, KindInvalidScope},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrBookingConflict, KindBookingConflict},
	{ErrNotAvailable, KindNotAvailable},
	{ErrNotFound, KindNotFound},
}

// KindOf maps any error to its kind; unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	if errors.Is(err, daterange.ErrInvalidRange) || errors.Is(err, daterange.ErrMissingDate) {
		return KindInvalidDateRange
	}
	return KindInternal
}

// Error carries the structured payload of a failed engine call.
type Error struct {
	Kind      error
	Message   string
	Conflicts []Conflict
	Details   string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidDateRange reports start after end.
func InvalidDateRange(start, end time.Time) *Error {
	return newError(ErrInvalidDateRange, "start %s is after end %s", start.Format(daterange.Layout), end.Format(daterange.Layout))
}

// InvalidRequest reports malformed input that is not a date or recurrence problem.
func InvalidRequest(format string, args ...any) *Error {
	return newError(ErrInvalidRequest, format, args...)
}

// NotFound reports a missing block or pattern.
func NotFound(entity, id string) *Error {
	return newError(ErrNotFound, "%s %q", entity, id)
}

// BookingConflict is raised when a block would cover a committed booking.
func BookingConflict(conflicts []Conflict) *Error {
	return &Error{
		Kind:      ErrBookingConflict,
		Message:   "cannot block these dates",
		Conflicts: conflicts,
		Details:   RenderDetails(conflicts),
	}
}

// NotAvailable is raised when a booking request collides with a block or a committed booking.
func NotAvailable(conflicts []Conflict) *Error {
	return &Error{
		Kind:      ErrNotAvailable,
		Message:   "not available for these dates",
		Conflicts: conflicts,
		Details:   RenderDetails(conflicts),
	}
}

// ConflictsOf extracts the conflict list carried by err, if any.
func ConflictsOf(err error) []Conflict {
	var e *Error
	if errors.As(err, &e) {
		return e.Conflicts
	}
	return nil
}

type ConflictType string

const (
	ConflictBooking ConflictType = "booking"
	ConflictBlock   ConflictType = "block"
)

// Conflict is one existing commitment overlapping a proposed range.
type Conflict struct {
	Type             ConflictType        `json:"type"`
	ID               string              `json:"id"`
	BookingNumber    string              `json:"booking_number,omitempty"`
	Reason           string              `json:"reason,omitempty"`
	Range            daterange.DateRange `json:"range"`
	RecurringBlockID string              `json:"recurring_block_id,omitempty"`
}

// RenderDetails builds the human readable summary, e.g.
// "Blocked: maintenance (Jan 10-15); Booking BK-1029".
func RenderDetails(conflicts []Conflict) string {
	parts := make([]string, 0, len(conflicts))
	seen := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		var part string
		switch c.Type {
		case ConflictBooking:
			ref := c.BookingNumber
			if ref == "" {
				ref = c.ID
			}
			part = "Booking " + ref
		default:
			label := "Blocked"
			if reason := strings.TrimSpace(c.Reason); reason != "" {
				label += ": " + reason
			}
			part = label + " (" + formatSpan(c.Range) + ")"
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

func formatSpan(r daterange.DateRange) string {
	s, e := r.Start, r.End
	switch {
	case s.Equal(e):
		return s.Format("Jan 2")
	case s.Year() != e.Year():
		return s.Format("Jan 2, 2006") + "-" + e.Format("Jan 2, 2006")
	case s.Month() != e.Month():
		return s.Format("Jan 2") + "-" + e.Format("Jan 2")
	default:
		return s.Format("Jan 2") + "-" + e.Format("2")
	}
}
