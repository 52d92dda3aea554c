package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderStatus represents the status of a single-time reminder
type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "pending"
	ReminderStatusCompleted ReminderStatus = "completed"
)

// Toggle flips pending <-> completed
func (s ReminderStatus) Toggle() ReminderStatus {
	if s == ReminderStatusCompleted {
		return ReminderStatusPending
	}
	return ReminderStatusCompleted
}

// Reminder represents a user-created reminder with one scheduled time or
// several time slots. When TimeSlots is non-empty the reminder is in
// multi-time mode and ScheduledTime/Status are not used for display.
type Reminder struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	ScheduledTime time.Time      `json:"scheduled_time"`
	TimeSlots     []TimeSlot     `json:"time_slots"`
	Status        ReminderStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// IsMultiTime reports whether the reminder carries time slots
func (r *Reminder) IsMultiTime() bool {
	return len(r.TimeSlots) > 0
}

// FindSlot returns the slot with the given id
func (r *Reminder) FindSlot(slotID string) (TimeSlot, bool) {
	for _, s := range r.TimeSlots {
		if s.ID == slotID {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// CompletedSlotCount returns how many slots are completed
func (r *Reminder) CompletedSlotCount() int {
	n := 0
	for _, s := range r.TimeSlots {
		if s.IsCompleted() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can hand out reminders without sharing slot storage.
func (r *Reminder) Clone() *Reminder {
	if r == nil {
		return nil
	}
	c := *r
	if r.TimeSlots != nil {
		c.TimeSlots = make([]TimeSlot, len(r.TimeSlots))
		for i, s := range r.TimeSlots {
			if s.Description != nil {
				d := *s.Description
				s.Description = &d
			}
			c.TimeSlots[i] = s
		}
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// SetStatus sets the single-time status and keeps CompletedAt in step
func (r *Reminder) SetStatus(status ReminderStatus, now time.Time) {
	r.Status = status
	if status == ReminderStatusCompleted {
		r.CompletedAt = &now
	} else {
		r.CompletedAt = nil
	}
}

// SetSlotStatus sets the status of the slot with the given id. It reports
// false when no such slot exists.
func (r *Reminder) SetSlotStatus(slotID string, status SlotStatus) bool {
	for i := range r.TimeSlots {
		if r.TimeSlots[i].ID == slotID {
			r.TimeSlots[i].Status = status
			return true
		}
	}
	return false
}

// RemoveSlot drops the slot with the given id. It reports false when no such
// slot exists.
func (r *Reminder) RemoveSlot(slotID string) bool {
	for i := range r.TimeSlots {
		if r.TimeSlots[i].ID == slotID {
			r.TimeSlots = append(r.TimeSlots[:i:i], r.TimeSlots[i+1:]...)
			if len(r.TimeSlots) == 0 {
				r.TimeSlots = nil
			}
			return true
		}
	}
	return false
}
