package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotStatus represents the completion state of a single time slot
type SlotStatus string

const (
	SlotStatusPending   SlotStatus = "pending"
	SlotStatusCompleted SlotStatus = "completed"
)

// Toggle flips pending <-> completed. Neither state is terminal.
func (s SlotStatus) Toggle() SlotStatus {
	if s == SlotStatusCompleted {
		return SlotStatusPending
	}
	return SlotStatusCompleted
}

// TimeOfDay is an hour and minute without a date. It is encoded as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24h).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// String returns the "HH:MM" form
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On combines the calendar date of day (in day's location) with this time of day.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// MarshalJSON implements json.Marshaler
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeSlot is one scheduled time of day within a multi-time reminder
type TimeSlot struct {
	ID          string     `json:"id"`
	Time        TimeOfDay  `json:"time"`
	Description *string    `json:"description,omitempty"`
	Status      SlotStatus `json:"status"`
}

// IsCompleted reports whether the slot has been marked done
func (s TimeSlot) IsCompleted() bool {
	return s.Status == SlotStatusCompleted
}

// DateTimeOn returns the slot's time of day on the calendar date of day.
func (s TimeSlot) DateTimeOn(day time.Time) time.Time {
	return s.Time.On(day)
}

// IsOverdue reports whether the slot is still pending and today's
// occurrence (relative to now) has already passed.
func (s TimeSlot) IsOverdue(now time.Time) bool {
	return s.Status == SlotStatusPending && s.DateTimeOn(now).Before(now)
}

// FormattedTime renders the time of day for display, e.g. "9:05AM".
func (s TimeSlot) FormattedTime() string {
	return s.Time.On(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)).Format(time.Kitchen)
}
