package timeslots

import (
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

// SlotView is a time slot annotated for display
type SlotView struct {
	ID            string            `json:"id"`
	Time          models.TimeOfDay  `json:"time"`
	FormattedTime string            `json:"formatted_time"`
	Description   *string           `json:"description,omitempty"`
	Status        models.SlotStatus `json:"status"`
	Overdue       bool              `json:"overdue"`
	Active        bool              `json:"active"`
}

// CardView is a snapshot of everything a reminder card renders
type CardView struct {
	ReminderID        uuid.UUID  `json:"reminder_id"`
	Title             string     `json:"title"`
	MultiTime         bool       `json:"multi_time"`
	SelectedSlotID    string     `json:"selected_slot_id,omitempty"`
	ActiveSlot        *SlotView  `json:"active_slot,omitempty"`
	Slots             []SlotView `json:"slots"`
	Progress          float64    `json:"progress"`
	CompletionPercent int        `json:"completion_percent"`
	StatusText        string     `json:"status_text"`
	Overdue           bool       `json:"overdue"`
	At                time.Time  `json:"at"`
}

// BuildView computes the card for r as seen at now with the given selection.
// SelectedSlotID in the result is the resolved id, never a stale one.
func BuildView(r *models.Reminder, selectedID string, now time.Time) CardView {
	v := CardView{
		ReminderID: r.ID,
		Title:      r.Title,
		MultiTime:  r.IsMultiTime(),
		Slots:      make([]SlotView, 0, len(r.TimeSlots)),
		StatusText: DisplayStatusText(r),
		At:         now,
	}

	if !v.MultiTime {
		v.Progress = SingleProgress(r, now)
		v.Overdue = r.Status == models.ReminderStatusPending && r.ScheduledTime.Before(now)
		if r.Status == models.ReminderStatusCompleted {
			v.CompletionPercent = 100
		}
		return v
	}

	active, _ := ActiveSlot(r, selectedID)
	v.SelectedSlotID = active.ID
	v.CompletionPercent = CompletionPercent(r)
	v.Progress = Progress(r, active, now)

	for _, s := range r.TimeSlots {
		sv := SlotView{
			ID:            s.ID,
			Time:          s.Time,
			FormattedTime: s.FormattedTime(),
			Description:   s.Description,
			Status:        s.Status,
			Overdue:       s.IsOverdue(now),
			Active:        s.ID == active.ID,
		}
		v.Slots = append(v.Slots, sv)
		if sv.Active {
			activeCopy := sv
			v.ActiveSlot = &activeCopy
			v.Overdue = sv.Overdue
		}
	}
	return v
}
