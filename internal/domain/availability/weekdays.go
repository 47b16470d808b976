package availability

import (
	"encoding/json"
	"time"
)

// Weekdays is a set of weekday indices, Sunday = 0 .. Saturday = 6.
type Weekdays uint8

const allWeekdays Weekdays = 1<<7 - 1

// NewWeekdays builds a set from indices and rejects anything outside 0..6.
func NewWeekdays(days ...int) (Weekdays, error) {
	var w Weekdays
	for _, d := range days {
		if d < 0 || d > 6 {
			return 0, newError(ErrInvalidRecurrence, "weekday %d outside 0..6", d)
		}
		w |= 1 << uint(d)
	}
	return w, nil
}

// WeekdaysOf builds a set from time.Weekday values.
func WeekdaysOf(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w & allWeekdays
}

func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

func (w Weekdays) Empty() bool {
	return w&allWeekdays == 0
}

// Indices lists members in ascending order.
func (w Weekdays) Indices() []int {
	out := make([]int, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			out = append(out, int(d))
		}
	}
	return out
}

// next returns how many days after d the next member falls, 1..7.
func (w Weekdays) next(d time.Weekday) int {
	for step := 1; step <= 7; step++ {
		if w.Has(time.Weekday((int(d) + step) % 7)) {
			return step
		}
	}
	return 0
}

func (w Weekdays) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Indices())
}

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var idx []int
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}
	parsed, err := NewWeekdays(idx...)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
