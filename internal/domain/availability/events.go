package availability

import (
	"time"

	"rentfleet/internal/domain/shared/daterange"
)

const (
	EventBlockCreated            = "availability.block_created"
	EventRecurringBlockCreated   = "availability.recurring_block_created"
	EventRecurringBlockUpdated   = "availability.recurring_block_updated"
	EventRecurringBlockSplit     = "availability.recurring_block_split"
	EventRecurringBlockTruncated = "availability.recurring_block_truncated"
	EventRecurringBlockDeleted   = "availability.recurring_block_deleted"
)

type BlockCreated struct {
	BlockID     BlockID             `json:"block_id"`
	ListingID   string              `json:"listing_id"`
	ListingType ListingType         `json:"listing_type"`
	Range       daterange.DateRange `json:"range"`
	Reason      string              `json:"reason,omitempty"`
	CreatedBy   string              `json:"created_by"`
	At          time.Time           `json:"at"`
}

func (e BlockCreated) EventName() string     { return EventBlockCreated }
func (e BlockCreated) AggregateID() string   { return e.ListingID }
func (e BlockCreated) OccurredAt() time.Time { return e.At }

// PatternSnapshot is the event-side view of a RecurringBlock.
type PatternSnapshot struct {
	ID          RecurringBlockID `json:"id"`
	ListingID   string           `json:"listing_id"`
	ListingType ListingType      `json:"listing_type"`
	DaysOfWeek  Weekdays         `json:"days_of_week"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     *time.Time       `json:"end_date,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	CreatedBy   string           `json:"created_by"`
	SplitFromID RecurringBlockID `json:"split_from_id,omitempty"`
	Closed      bool             `json:"closed,omitempty"`
}

type RecurringBlockCreated struct {
	Pattern PatternSnapshot `json:"pattern"`
	At      time.Time       `json:"at"`
}

func (e RecurringBlockCreated) EventName() string     { return EventRecurringBlockCreated }
func (e RecurringBlockCreated) AggregateID() string   { return e.Pattern.ListingID }
func (e RecurringBlockCreated) OccurredAt() time.Time { return e.At }

type RecurringBlockUpdated struct {
	Pattern PatternSnapshot `json:"pattern"`
	At      time.Time       `json:"at"`
}

func (e RecurringBlockUpdated) EventName() string     { return EventRecurringBlockUpdated }
func (e RecurringBlockUpdated) AggregateID() string   { return e.Pattern.ListingID }
func (e RecurringBlockUpdated) OccurredAt() time.Time { return e.At }

type RecurringBlockSplit struct {
	Closed    PatternSnapshot `json:"closed"`
	Successor PatternSnapshot `json:"successor"`
	At        time.Time       `json:"at"`
}

func (e RecurringBlockSplit) EventName() string     { return EventRecurringBlockSplit }
func (e RecurringBlockSplit) AggregateID() string   { return e.Closed.ListingID }
func (e RecurringBlockSplit) OccurredAt() time.Time { return e.At }

type RecurringBlockTruncated struct {
	Pattern PatternSnapshot `json:"pattern"`
	From    time.Time       `json:"from"`
	At      time.Time       `json:"at"`
}

func (e RecurringBlockTruncated) EventName() string     { return EventRecurringBlockTruncated }
func (e RecurringBlockTruncated) AggregateID() string   { return e.Pattern.ListingID }
func (e RecurringBlockTruncated) OccurredAt() time.Time { return e.At }

type RecurringBlockDeleted struct {
	PatternID RecurringBlockID `json:"pattern_id"`
	ListingID string           `json:"listing_id"`
	At        time.Time        `json:"at"`
}

func (e RecurringBlockDeleted) EventName() string     { return EventRecurringBlockDeleted }
func (e RecurringBlockDeleted) AggregateID() string   { return e.ListingID }
func (e RecurringBlockDeleted) OccurredAt() time.Time { return e.At }
