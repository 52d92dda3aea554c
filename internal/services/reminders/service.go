// Package reminders implements reminder use cases on top of storage and the
// notification scheduler.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-reminders/internal/database"
	logpkg "github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/notifications"
	"github.com/benvon/smart-reminders/internal/search"
	"github.com/benvon/smart-reminders/internal/timeslots"
	"github.com/benvon/smart-reminders/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxTimeSlots caps the slots of one reminder
	MaxTimeSlots = 48
	// MaxTitleLength caps reminder titles
	MaxTitleLength = 200
	// MaxDescriptionLength caps reminder and slot descriptions
	MaxDescriptionLength = 2000
)

// Service coordinates reminder storage and notifications
type Service struct {
	store    database.ReminderStore
	notifier notifications.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a reminder service. A nil notifier disables notifications.
func NewService(store database.ReminderStore, notifier notifications.Notifier, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notifications.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// SlotInput describes a time slot to create
type SlotInput struct {
	ID          string
	Time        string
	Description *string
}

// CreateInput describes a reminder to create. Without slots the reminder is
// single-time and ScheduledTime is required.
type CreateInput struct {
	Title         string
	Description   string
	ScheduledTime *time.Time
	TimeSlots     []SlotInput
}

func buildSlots(inputs []SlotInput) ([]models.TimeSlot, error) {
	if len(inputs) > MaxTimeSlots {
		return nil, invalid("a reminder can have at most %d time slots", MaxTimeSlots)
	}
	seen := make(map[string]bool, len(inputs))
	slots := make([]models.TimeSlot, 0, len(inputs))
	for i, in := range inputs {
		tod, err := models.ParseTimeOfDay(in.Time)
		if err != nil {
			return nil, invalid("time_slots[%d]: %v", i, err)
		}
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			return nil, invalid("time_slots[%d]: duplicate id %q", i, id)
		}
		seen[id] = true

		slot := models.TimeSlot{ID: id, Time: tod, Status: models.SlotStatusPending}
		if in.Description != nil {
			d := validation.SanitizeText(*in.Description)
			if len(d) > MaxDescriptionLength {
				return nil, invalid("time_slots[%d]: description too long", i)
			}
			if d != "" {
				slot.Description = &d
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Create stores a new reminder for userID and schedules its notifications
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*models.Reminder, error) {
	title := validation.SanitizeText(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, invalid("title must be at most %d characters", MaxTitleLength)
	}
	description := validation.SanitizeText(in.Description)
	if len(description) > MaxDescriptionLength {
		return nil, invalid("description must be at most %d characters", MaxDescriptionLength)
	}

	slots, err := buildSlots(in.TimeSlots)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &models.Reminder{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		TimeSlots:   slots,
		Status:      models.ReminderStatusPending,
		CreatedAt:   now,
	}
	switch {
	case in.ScheduledTime != nil:
		r.ScheduledTime = *in.ScheduledTime
	case len(slots) == 0:
		return nil, invalid("scheduled_time is required for a reminder without time slots")
	default:
		r.ScheduledTime = slots[0].DateTimeOn(now)
	}
	if len(slots) == 0 {
		r.TimeSlots = nil
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	if r.IsMultiTime() {
		s.notify("schedule_time_slots", r.ID, "", s.notifier.ScheduleTimeSlotNotifications(ctx, r, pendingSlots(r.TimeSlots)))
	} else {
		s.notify("schedule_reminder", r.ID, "", s.notifier.ScheduleReminder(ctx, r))
	}

	s.logger.Info("reminder_created",
		zap.String("reminder_id", r.ID.String()),
		zap.String("user_id", logpkg.SanitizeID(userID.String())),
		zap.Int("time_slots", len(r.TimeSlots)),
	)
	return r, nil
}

func pendingSlots(slots []models.TimeSlot) []models.TimeSlot {
	var out []models.TimeSlot
	for _, slot := range slots {
		if !slot.IsCompleted() {
			out = append(out, slot)
		}
	}
	return out
}

// load fetches a reminder, mapping storage not-found to ErrReminderNotFound
func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	r, err := s.store.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

// Get returns the reminder if it belongs to userID
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*models.Reminder, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrReminderNotFound
	}
	return r, nil
}

// List returns one page of the user's reminders matching query and the total
// number of matches. An empty query lists everything.
func (s *Service) List(ctx context.Context, userID uuid.UUID, query string, page, pageSize int) ([]*models.Reminder, int, error) {
	if search.Normalize(query) == "" {
		list, total, err := s.store.ListByUser(ctx, userID, page, pageSize)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list reminders: %w", err)
		}
		return list, total, nil
	}

	var all []*models.Reminder
	for p := 1; ; p++ {
		batch, total, err := s.store.ListByUser(ctx, userID, p, database.MaxPageSize)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list reminders: %w", err)
		}
		all = append(all, batch...)
		if len(batch) == 0 || len(all) >= total {
			break
		}
	}

	matches := search.Filter(all, query)
	return paginate(matches, page, pageSize), len(matches), nil
}

func paginate(list []*models.Reminder, page, pageSize int) []*models.Reminder {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = database.DefaultPageSize
	}
	if pageSize > database.MaxPageSize {
		pageSize = database.MaxPageSize
	}
	start := (page - 1) * pageSize
	if start >= len(list) {
		return []*models.Reminder{}
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// Delete removes the reminder and cancels its notifications
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrReminderNotFound
		}
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	s.notify("cancel_reminder", id, "", s.notifier.CancelReminder(ctx, id))
	s.logger.Info("reminder_deleted", zap.String("reminder_id", id.String()))
	return nil
}

// AddTimeSlot appends a slot to the reminder and schedules it
func (s *Service) AddTimeSlot(ctx context.Context, userID, id uuid.UUID, in SlotInput) (*models.Reminder, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	added, err := buildSlots([]SlotInput{in})
	if err != nil {
		return nil, err
	}

	r, err := s.store.AddTimeSlot(ctx, id, added[0], MaxTimeSlots)
	if err != nil {
		return nil, slotEditError(err, id)
	}

	// The first slot turns a single-time reminder into a multi-time one
	if len(r.TimeSlots) == 1 {
		s.notify("cancel_reminder", r.ID, "", s.notifier.CancelReminder(ctx, r.ID))
	}
	s.notify("schedule_time_slots", r.ID, added[0].ID, s.notifier.ScheduleTimeSlotNotifications(ctx, r, added))
	return r, nil
}

// RemoveTimeSlot deletes a slot and cancels its notification. Cards that
// still have it selected fall back to the default slot.
func (s *Service) RemoveTimeSlot(ctx context.Context, userID, id uuid.UUID, slotID string) (*models.Reminder, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	r, err := s.store.RemoveTimeSlot(ctx, id, slotID)
	if err != nil {
		return nil, slotEditError(err, id)
	}

	s.notify("cancel_time_slot", r.ID, slotID, s.notifier.CancelTimeSlotNotification(ctx, r.ID, slotID))
	if !r.IsMultiTime() {
		s.notify("schedule_reminder", r.ID, "", s.notifier.ScheduleReminder(ctx, r))
	}
	return r, nil
}

// slotEditError maps store errors from slot list edits
func slotEditError(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrReminderNotFound
	case errors.Is(err, database.ErrSlotNotFound):
		return ErrTimeSlotNotFound
	case errors.Is(err, database.ErrSlotExists):
		return invalid("%v", err)
	case errors.Is(err, database.ErrSlotLimit):
		return invalid("a reminder can have at most %d time slots", MaxTimeSlots)
	}
	return updateFailed(fmt.Errorf("reminder %s: %w", id, err))
}

// ToggleReminderStatus flips the single-time status and reschedules or
// cancels the reminder's notification
func (s *Service) ToggleReminderStatus(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	status := r.Status.Toggle()
	ok, err := s.store.UpdateReminderStatus(ctx, id, status)
	if err != nil {
		return nil, updateFailed(err)
	}
	if !ok {
		return nil, ErrReminderNotFound
	}
	r.SetStatus(status, s.now())

	if status == models.ReminderStatusCompleted {
		s.notify("cancel_reminder", id, "", s.notifier.CancelReminder(ctx, id))
	} else {
		s.notify("schedule_reminder", id, "", s.notifier.ScheduleReminder(ctx, r))
	}

	s.logger.Info("reminder_status_toggled",
		zap.String("reminder_id", id.String()),
		zap.String("status", string(status)),
	)
	return s.reload(ctx, r), nil
}

// ToggleTimeSlotStatus flips one slot between pending and completed
func (s *Service) ToggleTimeSlotStatus(ctx context.Context, id uuid.UUID, slotID string) (*models.Reminder, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	slot, ok := r.FindSlot(slotID)
	if !ok {
		return nil, ErrTimeSlotNotFound
	}
	return s.setTimeSlotStatus(ctx, r, slotID, slot.Status.Toggle())
}

// SetTimeSlotStatus sets one slot to status
func (s *Service) SetTimeSlotStatus(ctx context.Context, id uuid.UUID, slotID string, status models.SlotStatus) (*models.Reminder, error) {
	if err := validation.ValidateSlotStatus(string(status)); err != nil {
		return nil, invalid("%v", err)
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := r.FindSlot(slotID); !ok {
		return nil, ErrTimeSlotNotFound
	}
	return s.setTimeSlotStatus(ctx, r, slotID, status)
}

func (s *Service) setTimeSlotStatus(ctx context.Context, r *models.Reminder, slotID string, status models.SlotStatus) (*models.Reminder, error) {
	ok, err := s.store.UpdateTimeSlotStatus(ctx, r.ID, slotID, status)
	if err != nil {
		return nil, updateFailed(err)
	}
	if !ok {
		// Deleted between the read and the write
		return nil, ErrTimeSlotNotFound
	}
	r.SetSlotStatus(slotID, status)

	if status == models.SlotStatusCompleted {
		s.notify("cancel_time_slot", r.ID, slotID, s.notifier.CancelTimeSlotNotification(ctx, r.ID, slotID))
	} else {
		slot, _ := r.FindSlot(slotID)
		s.notify("schedule_time_slots", r.ID, slotID, s.notifier.ScheduleTimeSlotNotifications(ctx, r, []models.TimeSlot{slot}))
	}

	s.logger.Info("reminder_slot_toggled",
		zap.String("reminder_id", r.ID.String()),
		zap.String("slot_id", logpkg.SanitizeID(slotID)),
		zap.String("status", string(status)),
	)
	return s.reload(ctx, r), nil
}

// reload returns the stored copy after a write, or the locally updated copy
// when the read fails
func (s *Service) reload(ctx context.Context, fallback *models.Reminder) *models.Reminder {
	r, err := s.store.GetByID(ctx, fallback.ID)
	if err != nil {
		s.logger.Warn("failed_to_reload_reminder",
			zap.String("reminder_id", fallback.ID.String()),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		return fallback
	}
	return r
}

// notify logs a notification failure. The status change already persisted,
// so it is not rolled back.
func (s *Service) notify(op string, reminderID uuid.UUID, slotID string, err error) {
	if err == nil {
		return
	}
	s.logger.Error("failed_to_schedule_notification",
		zap.String("operation", op),
		zap.String("reminder_id", reminderID.String()),
		zap.String("slot_id", logpkg.SanitizeID(slotID)),
		zap.String("error", logpkg.SanitizeError(err)),
	)
}

// Card renders the user's reminder card at now with the given slot selection
func (s *Service) Card(ctx context.Context, userID, id uuid.UUID, selectedID string, now time.Time) (timeslots.CardView, error) {
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return timeslots.CardView{}, err
	}
	card := timeslots.NewCard(r)
	card.Select(selectedID)
	return card.View(now), nil
}

// ToggleCard toggles slotID, or the card's active slot when slotID is empty,
// and returns the refreshed card. The selection is kept across the toggle.
func (s *Service) ToggleCard(ctx context.Context, userID, id uuid.UUID, selectedID, slotID string, now time.Time) (timeslots.CardView, error) {
	r, err := s.Get(ctx, userID, id)
	if err != nil {
		return timeslots.CardView{}, err
	}
	card := timeslots.NewCard(r)
	defer card.Close()
	card.Select(selectedID)

	if slotID == "" {
		err = card.ToggleActiveSlot(ctx, s)
	} else {
		err = card.ToggleSlot(ctx, s, slotID)
	}
	if err != nil {
		return timeslots.CardView{}, err
	}
	return card.View(now), nil
}

var _ timeslots.Toggler = (*Service)(nil)
