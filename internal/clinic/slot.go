package clinic

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	clockSecondsLayout = "15:04:05"
	displayDateLayout  = "02/01/2006"
)

// Slot is a durationless bookable instant: a calendar date plus a wall-clock time.
// Slots carry no time zone; two slots are equal only when date and time match exactly.
type Slot struct {
	at time.Time
}

func NewSlot(date time.Time, hour, minute int) Slot {
	y, m, d := date.Date()
	return Slot{at: time.Date(y, m, d, hour, minute, 0, 0, time.UTC)}
}

// ParseSlot parses a date (YYYY-MM-DD) and a clock (HH:MM or HH:MM:SS).
func ParseSlot(date, clock string) (Slot, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return Slot{}, &ValidationError{Fields: []string{"date and time are required"}}
	}

	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return Slot{}, &ValidationError{Fields: []string{fmt.Sprintf("date: %q is not YYYY-MM-DD", date)}}
	}

	layout := ClockLayout
	if strings.Count(clock, ":") == 2 {
		layout = clockSecondsLayout
	}
	c, err := time.Parse(layout, clock)
	if err != nil {
		return Slot{}, &ValidationError{Fields: []string{fmt.Sprintf("time: %q is not HH:MM", clock)}}
	}

	y, m, day := d.Date()
	return Slot{at: time.Date(y, m, day, c.Hour(), c.Minute(), c.Second(), 0, time.UTC)}, nil
}

func (s Slot) IsZero() bool { return s.at.IsZero() }

func (s Slot) Equal(o Slot) bool { return s.at.Equal(o.at) }

// Time returns the slot as a UTC timestamp.
func (s Slot) Time() time.Time { return s.at }

func (s Slot) Date() string { return s.at.Format(DateLayout) }

func (s Slot) Clock() string {
	if s.at.Second() != 0 {
		return s.at.Format(clockSecondsLayout)
	}
	return s.at.Format(ClockLayout)
}

// DisplayDate formats the date as dd/MM/yyyy.
func (s Slot) DisplayDate() string { return s.at.Format(displayDateLayout) }

// Key identifies the slot in lock names and logs.
func (s Slot) Key() string { return s.Date() + "T" + s.Clock() }

func (s Slot) String() string { return s.Date() + " " + s.Clock() }
