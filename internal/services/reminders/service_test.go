package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-reminders/internal/database"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)

// recordingNotifier records notifier calls as "op:reminder[:slot]"
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (n *recordingNotifier) record(call string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, call)
	return n.err
}

func (n *recordingNotifier) CancelReminder(ctx context.Context, id uuid.UUID) error {
	return n.record("cancel")
}

func (n *recordingNotifier) ScheduleReminder(ctx context.Context, r *models.Reminder) error {
	return n.record("schedule")
}

func (n *recordingNotifier) CancelTimeSlotNotification(ctx context.Context, id uuid.UUID, slotID string) error {
	return n.record("cancel_slot:" + slotID)
}

func (n *recordingNotifier) ScheduleTimeSlotNotifications(ctx context.Context, r *models.Reminder, slots []models.TimeSlot) error {
	call := "schedule_slots"
	for _, s := range slots {
		call += ":" + s.ID
	}
	return n.record(call)
}

func (n *recordingNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// flakyStore fails status writes while failWrites is set
type flakyStore struct {
	*database.MemoryReminderRepository
	failWrites bool
}

func (s *flakyStore) UpdateReminderStatus(ctx context.Context, id uuid.UUID, status models.ReminderStatus) (bool, error) {
	if s.failWrites {
		return false, errors.New("connection reset")
	}
	return s.MemoryReminderRepository.UpdateReminderStatus(ctx, id, status)
}

func (s *flakyStore) UpdateTimeSlotStatus(ctx context.Context, id uuid.UUID, slotID string, status models.SlotStatus) (bool, error) {
	if s.failWrites {
		return false, errors.New("connection reset")
	}
	return s.MemoryReminderRepository.UpdateTimeSlotStatus(ctx, id, slotID, status)
}

type fixture struct {
	svc      *Service
	store    *flakyStore
	notifier *recordingNotifier
	userID   uuid.UUID
}

func newFixture() *fixture {
	store := &flakyStore{MemoryReminderRepository: database.NewMemoryReminderRepository()}
	notifier := &recordingNotifier{}
	svc := NewService(store, notifier, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return &fixture{svc: svc, store: store, notifier: notifier, userID: uuid.New()}
}

func (f *fixture) createMulti(t *testing.T) *models.Reminder {
	t.Helper()
	r, err := f.svc.Create(context.Background(), f.userID, CreateInput{
		Title: "Medication",
		TimeSlots: []SlotInput{
			{ID: "a", Time: "09:00"},
			{ID: "b", Time: "14:00"},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return r
}

func TestService_CreateMultiTime(t *testing.T) {
	t.Parallel()
	f := newFixture()

	r := f.createMulti(t)
	if !r.IsMultiTime() || len(r.TimeSlots) != 2 {
		t.Fatalf("Expected two slots, got %+v", r.TimeSlots)
	}
	if want := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC); !r.ScheduledTime.Equal(want) {
		t.Errorf("Expected scheduled time %v, got %v", want, r.ScheduledTime)
	}
	for _, s := range r.TimeSlots {
		if s.Status != models.SlotStatusPending {
			t.Errorf("Expected slot %s pending, got %s", s.ID, s.Status)
		}
	}
	if calls := f.notifier.Calls(); len(calls) != 1 || calls[0] != "schedule_slots:a:b" {
		t.Errorf("Unexpected notifier calls: %v", calls)
	}
}

func TestService_CreateAssignsSlotIDs(t *testing.T) {
	t.Parallel()
	f := newFixture()

	r, err := f.svc.Create(context.Background(), f.userID, CreateInput{
		Title:     "Water",
		TimeSlots: []SlotInput{{Time: "10:00"}, {Time: "16:00"}},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if r.TimeSlots[0].ID == "" || r.TimeSlots[0].ID == r.TimeSlots[1].ID {
		t.Errorf("Expected distinct generated ids, got %q and %q", r.TimeSlots[0].ID, r.TimeSlots[1].ID)
	}
}

func TestService_CreateValidation(t *testing.T) {
	t.Parallel()

	when := testNow.Add(time.Hour)
	tests := []struct {
		name  string
		input CreateInput
	}{
		{name: "missing title", input: CreateInput{Title: "  ", ScheduledTime: &when}},
		{name: "single time without schedule", input: CreateInput{Title: "x"}},
		{name: "bad slot time", input: CreateInput{Title: "x", TimeSlots: []SlotInput{{Time: "25:00"}}}},
		{name: "duplicate slot ids", input: CreateInput{Title: "x", TimeSlots: []SlotInput{{ID: "a", Time: "09:00"}, {ID: "a", Time: "10:00"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture()
			_, err := f.svc.Create(context.Background(), f.userID, tt.input)
			if !IsValidationError(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestService_CreateSurvivesNotifierFailure(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.notifier.err = errors.New("queue down")

	when := testNow.Add(time.Hour)
	r, err := f.svc.Create(context.Background(), f.userID, CreateInput{Title: "Call", ScheduledTime: &when})
	if err != nil {
		t.Fatalf("Expected create to succeed, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.userID, r.ID); err != nil {
		t.Errorf("Expected reminder to be stored, got %v", err)
	}
}

func TestService_GetOwnership(t *testing.T) {
	t.Parallel()
	f := newFixture()
	r := f.createMulti(t)

	if _, err := f.svc.Get(context.Background(), uuid.New(), r.ID); !errors.Is(err, ErrReminderNotFound) {
		t.Errorf("Expected not found for another user, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.userID, uuid.New()); !errors.Is(err, ErrReminderNotFound) {
		t.Errorf("Expected not found for unknown id, got %v", err)
	}
}

func TestService_ListWithSearch(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	when := testNow.Add(time.Hour)

	for i := 0; i < 5; i++ {
		title := fmt.Sprintf("Task %d", i)
		if i%2 == 0 {
			title = fmt.Sprintf("Call %d", i)
		}
		if _, err := f.svc.Create(ctx, f.userID, CreateInput{Title: title, ScheduledTime: &when}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	all, total, err := f.svc.List(ctx, f.userID, "", 1, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 5 || len(all) != 2 {
		t.Errorf("Expected page of 2 out of 5, got %d of %d", len(all), total)
	}

	matches, total, err := f.svc.List(ctx, f.userID, "CALL", 2, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 3 || len(matches) != 1 || matches[0].Title != "Call 4" {
		t.Errorf("Expected second page with Call 4 out of 3, got %+v (total %d)", matches, total)
	}

	other, total, err := f.svc.List(ctx, uuid.New(), "call", 1, 10)
	if err != nil || total != 0 || len(other) != 0 {
		t.Errorf("Expected nothing for another user, got %d (%v)", total, err)
	}
}

func TestService_Delete(t *testing.T) {
	t.Parallel()
	f := newFixture()
	r := f.createMulti(t)

	if err := f.svc.Delete(context.Background(), uuid.New(), r.ID); !errors.Is(err, ErrReminderNotFound) {
		t.Errorf("Expected not found for another user, got %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.userID, r.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := f.svc.Get(context.Background(), f.userID, r.ID); !errors.Is(err, ErrReminderNotFound) {
		t.Errorf("Expected deleted reminder to be gone, got %v", err)
	}
	calls := f.notifier.Calls()
	if calls[len(calls)-1] != "cancel" {
		t.Errorf("Expected cancel after delete, got %v", calls)
	}
}

func TestService_ToggleReminderStatus(t *testing.T) {
	t.Parallel()
	f := newFixture()
	when := testNow.Add(time.Hour)
	r, err := f.svc.Create(context.Background(), f.userID, CreateInput{Title: "Call", ScheduledTime: &when})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	done, err := f.svc.ToggleReminderStatus(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if done.Status != models.ReminderStatusCompleted || done.CompletedAt == nil {
		t.Errorf("Expected completed reminder, got %+v", done)
	}

	back, err := f.svc.ToggleReminderStatus(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if back.Status != models.ReminderStatusPending || back.CompletedAt != nil {
		t.Errorf("Expected pending reminder, got %+v", back)
	}

	want := []string{"schedule", "cancel", "schedule"}
	if calls := f.notifier.Calls(); fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}
}

func TestService_ToggleTimeSlotStatus(t *testing.T) {
	t.Parallel()
	f := newFixture()
	r := f.createMulti(t)

	updated, err := f.svc.ToggleTimeSlotStatus(context.Background(), r.ID, "b")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, _ := updated.FindSlot("b")
	a, _ := updated.FindSlot("a")
	if b.Status != models.SlotStatusCompleted || a.Status != models.SlotStatusPending {
		t.Errorf("Expected only b completed, got a=%s b=%s", a.Status, b.Status)
	}

	updated, err = f.svc.ToggleTimeSlotStatus(context.Background(), r.ID, "b")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if b, _ := updated.FindSlot("b"); b.Status != models.SlotStatusPending {
		t.Errorf("Expected b pending again, got %s", b.Status)
	}

	want := []string{"schedule_slots:a:b", "cancel_slot:b", "schedule_slots:b"}
	if calls := f.notifier.Calls(); fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}

	if _, err := f.svc.ToggleTimeSlotStatus(context.Background(), r.ID, "zzz"); !errors.Is(err, ErrTimeSlotNotFound) {
		t.Errorf("Expected ErrTimeSlotNotFound, got %v", err)
	}
	if _, err := f.svc.ToggleTimeSlotStatus(context.Background(), uuid.New(), "a"); !errors.Is(err, ErrReminderNotFound) {
		t.Errorf("Expected ErrReminderNotFound, got %v", err)
	}
}

func TestService_SetTimeSlotStatus(t *testing.T) {
	t.Parallel()
	f := newFixture()
	r := f.createMulti(t)

	updated, err := f.svc.SetTimeSlotStatus(context.Background(), r.ID, "a", models.SlotStatusCompleted)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a, _ := updated.FindSlot("a"); a.Status != models.SlotStatusCompleted {
		t.Errorf("Expected a completed, got %s", a.Status)
	}

	// Setting the same status again is idempotent
	if _, err := f.svc.SetTimeSlotStatus(context.Background(), r.ID, "a", models.SlotStatusCompleted); err != nil {
		t.Errorf("Unexpected error on repeat: %v", err)
	}

	if _, err := f.svc.SetTimeSlotStatus(context.Background(), r.ID, "a", "skipped"); !IsValidationError(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestService_UpdateFailureIsRetryable(t *testing.T) {
	t.Parallel()
	f := newFixture()
	r := f.createMulti(t)
	f.store.failWrites = true

	_, err := f.svc.ToggleTimeSlotStatus(context.Background(), r.ID, "a")
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("Expected ErrUpdateFailed, got %v", err)
	}

	stored, _ := f.svc.Get(context.Background(), f.userID, r.ID)
	if a, _ := stored.FindSlot("a"); a.Status != models.SlotStatusPending {
		t.Errorf("Expected stored slot unchanged, got %s", a.Status)
	}
	if calls := f.notifier.Calls(); len(calls) != 1 {
		t.Errorf("Expected no notifier calls after failure, got %v", calls)
	}

	f.store.failWrites = false
	if _, err := f.svc.ToggleTimeSlotStatus(context.Background(), r.ID, "a"); err != nil {
		t.Errorf("Expected retry to succeed, got %v", err)
	}
}

func TestService_AddAndRemoveTimeSlot(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	when := testNow.Add(time.Hour)
	r, err := f.svc.Create(ctx, f.userID, CreateInput{Title: "Stretch", ScheduledTime: &when})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	r, err = f.svc.AddTimeSlot(ctx, f.userID, r.ID, SlotInput{ID: "noon", Time: "12:00"})
	if err != nil {
		t.Fatalf("AddTimeSlot failed: %v", err)
	}
	if !r.IsMultiTime() {
		t.Fatal("Expected reminder to become multi-time")
	}
	if _, err := f.svc.AddTimeSlot(ctx, f.userID, r.ID, SlotInput{ID: "noon", Time: "13:00"}); !IsValidationError(err) {
		t.Errorf("Expected duplicate slot to be rejected, got %v", err)
	}

	r, err = f.svc.RemoveTimeSlot(ctx, f.userID, r.ID, "noon")
	if err != nil {
		t.Fatalf("RemoveTimeSlot failed: %v", err)
	}
	if r.IsMultiTime() {
		t.Error("Expected reminder to return to single-time")
	}
	if _, err := f.svc.RemoveTimeSlot(ctx, f.userID, r.ID, "noon"); !errors.Is(err, ErrTimeSlotNotFound) {
		t.Errorf("Expected ErrTimeSlotNotFound, got %v", err)
	}

	want := []string{"schedule", "cancel", "schedule_slots:noon", "cancel_slot:noon", "schedule"}
	if calls := f.notifier.Calls(); fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}
}

// togglingStore completes slot "a" right before every slot list edit lands,
// the way a toggle from another card would between the service's read and write
type togglingStore struct {
	*database.MemoryReminderRepository
}

func (s *togglingStore) toggleA(ctx context.Context, id uuid.UUID) {
	_, _ = s.UpdateTimeSlotStatus(ctx, id, "a", models.SlotStatusCompleted)
	_, _ = s.UpdateReminderStatus(ctx, id, models.ReminderStatusCompleted)
}

func (s *togglingStore) AddTimeSlot(ctx context.Context, id uuid.UUID, slot models.TimeSlot, maxSlots int) (*models.Reminder, error) {
	s.toggleA(ctx, id)
	return s.MemoryReminderRepository.AddTimeSlot(ctx, id, slot, maxSlots)
}

func (s *togglingStore) RemoveTimeSlot(ctx context.Context, id uuid.UUID, slotID string) (*models.Reminder, error) {
	s.toggleA(ctx, id)
	return s.MemoryReminderRepository.RemoveTimeSlot(ctx, id, slotID)
}

func TestService_SlotEditsKeepConcurrentToggles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		edit func(ctx context.Context, svc *Service, userID, id uuid.UUID) (*models.Reminder, error)
	}{
		{
			name: "add slot",
			edit: func(ctx context.Context, svc *Service, userID, id uuid.UUID) (*models.Reminder, error) {
				return svc.AddTimeSlot(ctx, userID, id, SlotInput{ID: "c", Time: "18:00"})
			},
		},
		{
			name: "remove slot",
			edit: func(ctx context.Context, svc *Service, userID, id uuid.UUID) (*models.Reminder, error) {
				return svc.RemoveTimeSlot(ctx, userID, id, "b")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := &togglingStore{MemoryReminderRepository: database.NewMemoryReminderRepository()}
			svc := NewService(store, nil, zap.NewNop())
			userID := uuid.New()
			r, err := svc.Create(ctx, userID, CreateInput{
				Title:     "Medication",
				TimeSlots: []SlotInput{{ID: "a", Time: "09:00"}, {ID: "b", Time: "14:00"}},
			})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			returned, err := tt.edit(ctx, svc, userID, r.ID)
			if err != nil {
				t.Fatalf("edit failed: %v", err)
			}
			stored, err := store.GetByID(ctx, r.ID)
			if err != nil {
				t.Fatalf("GetByID failed: %v", err)
			}
			for name, got := range map[string]*models.Reminder{"returned": returned, "stored": stored} {
				slot, ok := got.FindSlot("a")
				if !ok || slot.Status != models.SlotStatusCompleted {
					t.Errorf("%s slot a = %+v, want completed", name, slot)
				}
				if got.Status != models.ReminderStatusCompleted {
					t.Errorf("%s reminder status = %s, want completed", name, got.Status)
				}
			}
		})
	}
}

func TestService_AddTimeSlotLimit(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	inputs := make([]SlotInput, MaxTimeSlots)
	for i := range inputs {
		inputs[i] = SlotInput{Time: fmt.Sprintf("%02d:%02d", i/2, (i%2)*30)}
	}
	r, err := f.svc.Create(ctx, f.userID, CreateInput{Title: "Every half hour", TimeSlots: inputs})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.AddTimeSlot(ctx, f.userID, r.ID, SlotInput{Time: "23:59"}); !IsValidationError(err) {
		t.Errorf("Expected slot limit to be rejected, got %v", err)
	}
}

func TestService_Card(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	r := f.createMulti(t)
	if _, err := f.svc.SetTimeSlotStatus(ctx, r.ID, "b", models.SlotStatusCompleted); err != nil {
		t.Fatalf("SetTimeSlotStatus failed: %v", err)
	}

	// Created 08:30, slot a due 09:00, viewed at 08:45
	now := testNow.Add(15 * time.Minute)
	view, err := f.svc.Card(ctx, f.userID, r.ID, "", now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if view.SelectedSlotID != "a" || view.StatusText != "50% DONE" {
		t.Errorf("Unexpected view: selected=%q status=%q", view.SelectedSlotID, view.StatusText)
	}
	if view.Progress < 0.49 || view.Progress > 0.51 {
		t.Errorf("Expected progress 0.5, got %v", view.Progress)
	}

	// A stale selection falls back to the default slot
	view, err = f.svc.Card(ctx, f.userID, r.ID, "gone", now)
	if err != nil || view.SelectedSlotID != "a" {
		t.Errorf("Expected fallback to a, got %q (%v)", view.SelectedSlotID, err)
	}

	if _, err := f.svc.Card(ctx, uuid.New(), r.ID, "", now); !errors.Is(err, ErrReminderNotFound) {
		t.Errorf("Expected not found for another user, got %v", err)
	}
}

func TestService_ToggleCard(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	r := f.createMulti(t)
	now := testNow.Add(15 * time.Minute)

	view, err := f.svc.ToggleCard(ctx, f.userID, r.ID, "b", "", now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if view.SelectedSlotID != "b" {
		t.Errorf("Expected selection b to be kept, got %q", view.SelectedSlotID)
	}
	if view.StatusText != "50% DONE" || view.Progress != 1 {
		t.Errorf("Expected b completed, got status=%q progress=%v", view.StatusText, view.Progress)
	}

	view, err = f.svc.ToggleCard(ctx, f.userID, r.ID, "b", "a", now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if view.StatusText != "100% DONE" || view.SelectedSlotID != "b" {
		t.Errorf("Unexpected view after toggling a: %+v", view)
	}
}
