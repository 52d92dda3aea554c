package timeslots

import (
	"math"
	"testing"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

var today = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return today.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func slot(id string, hour, minute int, status models.SlotStatus) models.TimeSlot {
	return models.TimeSlot{ID: id, Time: models.TimeOfDay{Hour: hour, Minute: minute}, Status: status}
}

// exampleReminder is the two-slot reminder created at 08:00 today
func exampleReminder() *models.Reminder {
	return &models.Reminder{
		ID:        uuid.New(),
		Title:     "Medication",
		CreatedAt: at(8, 0),
		TimeSlots: []models.TimeSlot{
			slot("a", 9, 0, models.SlotStatusPending),
			slot("b", 14, 0, models.SlotStatusCompleted),
		},
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNextPendingSlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		slots  []models.TimeSlot
		wantID string
		wantOK bool
	}{
		{
			name:   "empty list",
			slots:  nil,
			wantOK: false,
		},
		{
			name: "first pending wins over earlier completed",
			slots: []models.TimeSlot{
				slot("c1", 7, 0, models.SlotStatusCompleted),
				slot("p1", 12, 0, models.SlotStatusPending),
				slot("p2", 8, 0, models.SlotStatusPending),
			},
			wantID: "p1",
			wantOK: true,
		},
		{
			name: "list order beats time of day",
			slots: []models.TimeSlot{
				slot("late", 21, 0, models.SlotStatusPending),
				slot("early", 6, 0, models.SlotStatusPending),
			},
			wantID: "late",
			wantOK: true,
		},
		{
			name: "all completed",
			slots: []models.TimeSlot{
				slot("c1", 7, 0, models.SlotStatusCompleted),
				slot("c2", 9, 0, models.SlotStatusCompleted),
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NextPendingSlot(tt.slots)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got.ID != tt.wantID {
				t.Errorf("Expected slot %q, got %q", tt.wantID, got.ID)
			}
		})
	}
}

func TestSelectDefaultSlot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		slots  []models.TimeSlot
		wantID string
		wantOK bool
	}{
		{
			name:   "no slots",
			wantOK: false,
		},
		{
			name: "pending after completed",
			slots: []models.TimeSlot{
				slot("x", 8, 0, models.SlotStatusCompleted),
				slot("y", 10, 0, models.SlotStatusPending),
			},
			wantID: "y",
			wantOK: true,
		},
		{
			name: "all completed returns first",
			slots: []models.TimeSlot{
				slot("x", 18, 0, models.SlotStatusCompleted),
				slot("y", 10, 0, models.SlotStatusCompleted),
			},
			wantID: "x",
			wantOK: true,
		},
		{
			name:   "single slot",
			slots:  []models.TimeSlot{slot("only", 10, 0, models.SlotStatusPending)},
			wantID: "only",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &models.Reminder{TimeSlots: tt.slots}
			got, ok := SelectDefaultSlot(r)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if got.ID != tt.wantID {
				t.Errorf("Expected slot %q, got %q", tt.wantID, got.ID)
			}
			if _, member := r.FindSlot(got.ID); !member {
				t.Errorf("Default slot %q is not a member of the list", got.ID)
			}
		})
	}
}

func TestSelectDefaultSlot_MembershipForAllStatusCombinations(t *testing.T) {
	t.Parallel()

	// Every pending/completed assignment of four slots
	for mask := 0; mask < 16; mask++ {
		r := &models.Reminder{}
		firstPending := ""
		for i := 0; i < 4; i++ {
			status := models.SlotStatusPending
			if mask&(1<<i) != 0 {
				status = models.SlotStatusCompleted
			}
			id := string(rune('a' + i))
			if status == models.SlotStatusPending && firstPending == "" {
				firstPending = id
			}
			r.TimeSlots = append(r.TimeSlots, slot(id, 20-i, 0, status))
		}

		got, ok := SelectDefaultSlot(r)
		if !ok {
			t.Fatalf("mask %04b: expected a slot", mask)
		}
		want := firstPending
		if want == "" {
			want = "a"
		}
		if got.ID != want {
			t.Errorf("mask %04b: expected %q, got %q", mask, want, got.ID)
		}
	}
}

func TestActiveSlot(t *testing.T) {
	t.Parallel()

	r := exampleReminder()

	tests := []struct {
		name     string
		selected string
		wantID   string
	}{
		{name: "no selection uses default", selected: "", wantID: "a"},
		{name: "explicit selection", selected: "b", wantID: "b"},
		{name: "stale selection falls back", selected: "gone", wantID: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ActiveSlot(r, tt.selected)
			if !ok {
				t.Fatal("Expected an active slot")
			}
			if got.ID != tt.wantID {
				t.Errorf("Expected %q, got %q", tt.wantID, got.ID)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	t.Parallel()

	r := exampleReminder()
	a, _ := r.FindSlot("a")
	b, _ := r.FindSlot("b")

	tests := []struct {
		name string
		slot models.TimeSlot
		now  time.Time
		want float64
	}{
		{name: "halfway", slot: a, now: at(8, 30), want: 0.5},
		{name: "at creation", slot: a, now: at(8, 0), want: 0},
		{name: "at deadline", slot: a, now: at(9, 0), want: 1},
		{name: "past deadline clamps", slot: a, now: at(11, 0), want: 1},
		{name: "before creation clamps", slot: a, now: at(7, 0), want: 0},
		{name: "completed is always full", slot: b, now: at(8, 1), want: 1},
		{
			name: "deadline before creation",
			slot: slot("early", 7, 0, models.SlotStatusPending),
			now:  at(8, 30),
			want: 0,
		},
		{
			name: "deadline equal to creation",
			slot: slot("same", 8, 0, models.SlotStatusPending),
			now:  at(8, 30),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Progress(r, tt.slot, tt.now)
			if !approxEqual(got, tt.want) {
				t.Errorf("Expected progress %v, got %v", tt.want, got)
			}
		})
	}
}

func TestProgress_Monotonic(t *testing.T) {
	t.Parallel()

	r := exampleReminder()
	a, _ := r.FindSlot("a")

	prev := -1.0
	for now := at(7, 30); now.Before(at(10, 0)); now = now.Add(3 * time.Minute) {
		p := Progress(r, a, now)
		if p < prev {
			t.Fatalf("Progress decreased at %s: %v < %v", now.Format(time.Kitchen), p, prev)
		}
		if p < 0 || p > 1 {
			t.Fatalf("Progress out of range at %s: %v", now.Format(time.Kitchen), p)
		}
		prev = p
	}
	if prev != 1 {
		t.Errorf("Expected progress to saturate at 1, got %v", prev)
	}
}

func TestProgress_UsesDateOfNow(t *testing.T) {
	t.Parallel()

	// Created yesterday 08:00, slot 09:00. Today's deadline is 25h after creation.
	r := exampleReminder()
	r.CreatedAt = at(8, 0).Add(-24 * time.Hour)
	a, _ := r.FindSlot("a")

	got := Progress(r, a, at(8, 0))
	want := 24.0 / 25.0
	if !approxEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestProgress_ToggleOtherSlotIsNoOp(t *testing.T) {
	t.Parallel()

	r := exampleReminder()
	now := at(8, 30)
	a, _ := r.FindSlot("a")
	before := Progress(r, a, now)

	r.TimeSlots[1].Status = r.TimeSlots[1].Status.Toggle()
	a, _ = r.FindSlot("a")
	after := Progress(r, a, now)

	if !approxEqual(before, after) {
		t.Errorf("Toggling another slot changed progress: %v -> %v", before, after)
	}
}

func TestSingleProgress(t *testing.T) {
	t.Parallel()

	r := &models.Reminder{
		CreatedAt:     at(8, 0),
		ScheduledTime: at(12, 0),
		Status:        models.ReminderStatusPending,
	}
	if got := SingleProgress(r, at(9, 0)); !approxEqual(got, 0.25) {
		t.Errorf("Expected 0.25, got %v", got)
	}
	r.Status = models.ReminderStatusCompleted
	if got := SingleProgress(r, at(9, 0)); got != 1 {
		t.Errorf("Expected 1 for completed reminder, got %v", got)
	}
}

func TestDisplayStatusText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reminder *models.Reminder
		want     string
	}{
		{
			name:     "nil reminder",
			reminder: nil,
			want:     "PENDING",
		},
		{
			name:     "single pending",
			reminder: &models.Reminder{Status: models.ReminderStatusPending},
			want:     "PENDING",
		},
		{
			name:     "single completed",
			reminder: &models.Reminder{Status: models.ReminderStatusCompleted},
			want:     "DONE",
		},
		{
			name:     "half done",
			reminder: exampleReminder(),
			want:     "50% DONE",
		},
		{
			name: "one of three rounds down",
			reminder: &models.Reminder{TimeSlots: []models.TimeSlot{
				slot("a", 8, 0, models.SlotStatusCompleted),
				slot("b", 9, 0, models.SlotStatusPending),
				slot("c", 10, 0, models.SlotStatusPending),
			}},
			want: "33% DONE",
		},
		{
			name: "two of three rounds up",
			reminder: &models.Reminder{TimeSlots: []models.TimeSlot{
				slot("a", 8, 0, models.SlotStatusCompleted),
				slot("b", 9, 0, models.SlotStatusCompleted),
				slot("c", 10, 0, models.SlotStatusPending),
			}},
			want: "67% DONE",
		},
		{
			name: "multi-time ignores reminder status",
			reminder: &models.Reminder{
				Status:    models.ReminderStatusCompleted,
				TimeSlots: []models.TimeSlot{slot("a", 8, 0, models.SlotStatusPending)},
			},
			want: "0% DONE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DisplayStatusText(tt.reminder); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSelector_HealsStaleSelection(t *testing.T) {
	t.Parallel()

	r := exampleReminder()
	var s Selector
	s.Select("a")

	// Slot "a" is deleted while selected
	r.TimeSlots = r.TimeSlots[1:]

	got, ok := s.Active(r)
	if !ok {
		t.Fatal("Expected an active slot")
	}
	if got.ID != "b" {
		t.Errorf("Expected fallback to %q, got %q", "b", got.ID)
	}
	if s.SelectedID() != "b" {
		t.Errorf("Expected stored selection to heal to %q, got %q", "b", s.SelectedID())
	}
}

func TestSelector_UnknownIDDoesNotError(t *testing.T) {
	t.Parallel()

	r := exampleReminder()
	var s Selector
	s.Select("does-not-exist")

	for i := 0; i < 2; i++ {
		got, ok := s.Active(r)
		if !ok || got.ID != "a" {
			t.Fatalf("call %d: expected default slot %q, got %q (ok=%v)", i, "a", got.ID, ok)
		}
	}
}

func TestSelector_NoSlotsKeepsSelection(t *testing.T) {
	t.Parallel()

	var s Selector
	s.Select("a")
	if _, ok := s.Active(&models.Reminder{}); ok {
		t.Error("Expected no active slot for reminder without slots")
	}
	if s.SelectedID() != "a" {
		t.Errorf("Selection should be untouched, got %q", s.SelectedID())
	}
}
