package database

import (
	"context"
	"fmt"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

// ReminderStore defines the reminder persistence operations shared by the
// Postgres and in-memory repositories
type ReminderStore interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Reminder, int, error)
	ListAll(ctx context.Context) ([]*models.Reminder, error)
	Update(ctx context.Context, reminder *models.Reminder) error
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateReminderStatus reports false when no reminder has the id
	UpdateReminderStatus(ctx context.Context, id uuid.UUID, status models.ReminderStatus) (bool, error)
	// UpdateTimeSlotStatus reports false when the reminder or the slot is missing
	UpdateTimeSlotStatus(ctx context.Context, reminderID uuid.UUID, slotID string, status models.SlotStatus) (bool, error)

	// AddTimeSlot appends slot to the stored list and returns the reminder as
	// written. maxSlots <= 0 means no limit.
	AddTimeSlot(ctx context.Context, reminderID uuid.UUID, slot models.TimeSlot, maxSlots int) (*models.Reminder, error)
	// RemoveTimeSlot drops a slot from the stored list and returns the
	// reminder as written
	RemoveTimeSlot(ctx context.Context, reminderID uuid.UUID, slotID string) (*models.Reminder, error)

	Ping(ctx context.Context) error
}

// Ensure concrete types implement the interface
var (
	_ ReminderStore = (*ReminderRepository)(nil)
	_ ReminderStore = (*MemoryReminderRepository)(nil)
)

// appendSlot adds slot to r unless its id is taken or r is full
func appendSlot(r *models.Reminder, slot models.TimeSlot, maxSlots int) error {
	if _, exists := r.FindSlot(slot.ID); exists {
		return fmt.Errorf("time slot %q: %w", slot.ID, ErrSlotExists)
	}
	if maxSlots > 0 && len(r.TimeSlots) >= maxSlots {
		return fmt.Errorf("reminder %s has %d time slots: %w", r.ID, len(r.TimeSlots), ErrSlotLimit)
	}
	r.TimeSlots = append(r.TimeSlots, slot)
	return nil
}

// dropSlot removes slotID from r
func dropSlot(r *models.Reminder, slotID string) error {
	if !r.RemoveSlot(slotID) {
		return fmt.Errorf("time slot %q: %w", slotID, ErrSlotNotFound)
	}
	return nil
}

// normalizePage applies the default page and page size bounds
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

const (
	// DefaultPageSize is used when the caller passes no page size
	DefaultPageSize = 20
	// MaxPageSize caps a single page
	MaxPageSize = 500
)
