package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MinutesPerDay bounds a TimeOfDay value.
const MinutesPerDay = 1440

// TimeOfDay is a wall-clock time stored as minutes since midnight.
// The zero of the external boundary is the "HH:mm" string form; internally
// TimeUnset marks a field the user has not filled in yet.
type TimeOfDay int

// TimeUnset is the sentinel for an absent time value.
const TimeUnset TimeOfDay = -1

// ParseTimeOfDay parses an "HH:mm" string into minutes since midnight.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeUnset, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeUnset, fmt.Errorf("invalid time %q: out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// Valid reports whether t is within the same calendar day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

func (t TimeOfDay) String() string {
	if !t.Valid() {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON encodes a valid time as "HH:mm" and an unset time as null.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || string(data) == `""` {
		*t = TimeUnset
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DateOnly is a calendar date in "YYYY-MM-DD" form with no time component.
type DateOnly string

const dateLayout = "2006-01-02"

// ParseDateOnly validates a "YYYY-MM-DD" string.
func ParseDateOnly(s string) (DateOnly, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOnly(s), nil
}

// IsZero reports whether the date is absent.
func (d DateOnly) IsZero() bool {
	return d == ""
}

// Valid reports whether the date parses as "YYYY-MM-DD".
func (d DateOnly) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

// BeforeToday reports whether d falls strictly before the calendar day of now.
// This is a booking policy check, so it is re-evaluated at submit time.
func (d DateOnly) BeforeToday(now time.Time) bool {
	parsed, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return parsed.Before(today)
}

func (d DateOnly) String() string {
	return string(d)
}
