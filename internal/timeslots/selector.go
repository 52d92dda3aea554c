// Package timeslots derives the display state of a reminder card: which time
// slot is active, whether it is done or overdue, and how far the countdown to
// it has progressed. Everything here is computed from the reminder on each
// call; the only stored state is the explicit slot selection.
package timeslots

import (
	"fmt"
	"math"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
)

const (
	// StatusTextPending is shown for a single-time reminder that is not done
	StatusTextPending = "PENDING"
	// StatusTextDone is shown for a completed single-time reminder
	StatusTextDone = "DONE"
)

// NextPendingSlot returns the first pending slot in list order. List order is
// authoritative; slots are never re-sorted by time of day.
func NextPendingSlot(slots []models.TimeSlot) (models.TimeSlot, bool) {
	for _, s := range slots {
		if s.Status == models.SlotStatusPending {
			return s, true
		}
	}
	return models.TimeSlot{}, false
}

// SelectDefaultSlot returns the next pending slot, or the first slot when all
// are completed. ok is false only when the reminder has no slots.
func SelectDefaultSlot(r *models.Reminder) (models.TimeSlot, bool) {
	if r == nil || len(r.TimeSlots) == 0 {
		return models.TimeSlot{}, false
	}
	if s, ok := NextPendingSlot(r.TimeSlots); ok {
		return s, true
	}
	return r.TimeSlots[0], true
}

// ActiveSlot resolves selectedID against the reminder's current slots. An
// empty or stale id falls back to SelectDefaultSlot.
func ActiveSlot(r *models.Reminder, selectedID string) (models.TimeSlot, bool) {
	if r == nil {
		return models.TimeSlot{}, false
	}
	if selectedID != "" {
		if s, ok := r.FindSlot(selectedID); ok {
			return s, true
		}
	}
	return SelectDefaultSlot(r)
}

// Progress is the fraction of time elapsed between the reminder's creation
// and the slot's deadline, clamped to [0, 1]. The deadline is always today
// (the calendar date of now) at the slot's time of day. Completed slots
// report 1.
func Progress(r *models.Reminder, slot models.TimeSlot, now time.Time) float64 {
	if slot.IsCompleted() {
		return 1
	}
	return fraction(r.CreatedAt, slot.DateTimeOn(now), now)
}

// SingleProgress is Progress for a reminder without slots, counting down to
// its scheduled time.
func SingleProgress(r *models.Reminder, now time.Time) float64 {
	if r.Status == models.ReminderStatusCompleted {
		return 1
	}
	return fraction(r.CreatedAt, r.ScheduledTime, now)
}

func fraction(start, deadline, now time.Time) float64 {
	total := deadline.Sub(start)
	if total <= 0 {
		return 0
	}
	elapsed := now.Sub(start)
	p := float64(elapsed) / float64(total)
	return math.Max(0, math.Min(1, p))
}

// CompletionPercent is the rounded share of completed slots, 0 without slots.
func CompletionPercent(r *models.Reminder) int {
	if r == nil || len(r.TimeSlots) == 0 {
		return 0
	}
	return int(math.Round(float64(r.CompletedSlotCount()) * 100 / float64(len(r.TimeSlots))))
}

// DisplayStatusText returns "<N>% DONE" for multi-time reminders and a fixed
// label for single-time ones.
func DisplayStatusText(r *models.Reminder) string {
	if r == nil {
		return StatusTextPending
	}
	if r.IsMultiTime() {
		return fmt.Sprintf("%d%% DONE", CompletionPercent(r))
	}
	if r.Status == models.ReminderStatusCompleted {
		return StatusTextDone
	}
	return StatusTextPending
}

// Selector holds one card's explicit slot selection.
type Selector struct {
	selectedID string
}

// Select records an explicit selection. The id is not validated here;
// Active heals it if it does not match a slot.
func (s *Selector) Select(slotID string) {
	s.selectedID = slotID
}

// SelectedID returns the stored selection, possibly empty or stale.
func (s *Selector) SelectedID() string {
	return s.selectedID
}

// Active resolves the selection against r and stores the id that was actually
// used, so a stale selection is replaced by the default one.
func (s *Selector) Active(r *models.Reminder) (models.TimeSlot, bool) {
	slot, ok := ActiveSlot(r, s.selectedID)
	if ok {
		s.selectedID = slot.ID
	}
	return slot, ok
}
