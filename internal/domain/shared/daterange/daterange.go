package daterange

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must not precede start")
	ErrMissingDate  = errors.New("daterange: start and end are required")
)

// Layout is the wire format for calendar dates.
const Layout = "2006-01-02"

// DateRange represents an inclusive interval of calendar days [Start, End].
// Both ends are normalized to UTC midnight.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to midnight UTC of the calendar day it carries in its own location.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC midnight.
func ParseDay(value string) (time.Time, error) {
	t, err := time.Parse(Layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("daterange: parse %q: %w", value, err)
	}
	return t, nil
}

// New builds a normalized range and validates it.
func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: Day(start), End: Day(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// SingleDay returns the one-day range covering t.
func SingleDay(t time.Time) DateRange {
	d := Day(t)
	return DateRange{Start: d, End: d}
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrMissingDate
	}
	if dr.End.Before(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Overlaps is inclusive on both ends: ranges touching on a single day overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return !(dr.End.Before(other.Start) || dr.Start.After(other.End))
}

// Intersect returns the common part of two ranges, if any.
func (dr DateRange) Intersect(other DateRange) (DateRange, bool) {
	if !dr.Overlaps(other) {
		return DateRange{}, false
	}
	start := dr.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := dr.End
	if other.End.Before(end) {
		end = other.End
	}
	return DateRange{Start: start, End: end}, true
}

func (dr DateRange) String() string {
	return dr.Start.Format(Layout) + ".." + dr.End.Format(Layout)
}

// AddDays shifts a calendar day; the result stays at UTC midnight.
func AddDays(t time.Time, days int) time.Time {
	return Day(t).AddDate(0, 0, days)
}
