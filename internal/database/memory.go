package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

// MemoryReminderRepository keeps reminders in process memory. Listing
// follows insertion order. Reminders are copied on the way in and out.
type MemoryReminderRepository struct {
	mu        sync.RWMutex
	reminders map[uuid.UUID]*models.Reminder
	order     []uuid.UUID
	now       func() time.Time
}

// NewMemoryReminderRepository creates an empty in-memory repository
func NewMemoryReminderRepository() *MemoryReminderRepository {
	return &MemoryReminderRepository{
		reminders: make(map[uuid.UUID]*models.Reminder),
		now:       time.Now,
	}
}

// Create stores a new reminder
func (m *MemoryReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reminders[reminder.ID]; exists {
		return fmt.Errorf("reminder %s already exists", reminder.ID)
	}

	now := m.now()
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = now
	}
	reminder.UpdatedAt = now

	m.reminders[reminder.ID] = reminder.Clone()
	m.order = append(m.order, reminder.ID)
	return nil
}

// GetByID returns a copy of the stored reminder
func (m *MemoryReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reminders[id]
	if !ok {
		return nil, fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

// ListByUser returns one page of the user's reminders and their total count
func (m *MemoryReminderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Reminder, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []*models.Reminder
	for _, id := range m.order {
		if r := m.reminders[id]; r.UserID == userID {
			owned = append(owned, r)
		}
	}

	total := len(owned)
	start := (page - 1) * pageSize
	if start >= total {
		return []*models.Reminder{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	out := make([]*models.Reminder, 0, end-start)
	for _, r := range owned[start:end] {
		out = append(out, r.Clone())
	}
	return out, total, nil
}

// ListAll returns copies of every stored reminder
func (m *MemoryReminderRepository) ListAll(ctx context.Context) ([]*models.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Reminder, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.reminders[id].Clone())
	}
	return out, nil
}

// Update replaces a stored reminder
func (m *MemoryReminderRepository) Update(ctx context.Context, reminder *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.reminders[reminder.ID]
	if !ok {
		return fmt.Errorf("reminder %s: %w", reminder.ID, ErrNotFound)
	}

	reminder.CreatedAt = existing.CreatedAt
	reminder.UserID = existing.UserID
	reminder.UpdatedAt = m.now()
	m.reminders[reminder.ID] = reminder.Clone()
	return nil
}

// Delete removes a reminder
func (m *MemoryReminderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reminders[id]; !ok {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	delete(m.reminders, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// UpdateReminderStatus sets the single-time status of a reminder
func (m *MemoryReminderRepository) UpdateReminderStatus(ctx context.Context, id uuid.UUID, status models.ReminderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok {
		return false, nil
	}
	now := m.now()
	r.SetStatus(status, now)
	r.UpdatedAt = now
	return true, nil
}

// UpdateTimeSlotStatus sets the status of one slot
func (m *MemoryReminderRepository) UpdateTimeSlotStatus(ctx context.Context, reminderID uuid.UUID, slotID string, status models.SlotStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[reminderID]
	if !ok {
		return false, nil
	}
	if !r.SetSlotStatus(slotID, status) {
		return false, nil
	}
	r.UpdatedAt = m.now()
	return true, nil
}

// AddTimeSlot appends a slot to the stored reminder
func (m *MemoryReminderRepository) AddTimeSlot(ctx context.Context, reminderID uuid.UUID, slot models.TimeSlot, maxSlots int) (*models.Reminder, error) {
	return m.editSlots(reminderID, func(r *models.Reminder) error {
		return appendSlot(r, slot, maxSlots)
	})
}

// RemoveTimeSlot drops a slot from the stored reminder
func (m *MemoryReminderRepository) RemoveTimeSlot(ctx context.Context, reminderID uuid.UUID, slotID string) (*models.Reminder, error) {
	return m.editSlots(reminderID, func(r *models.Reminder) error {
		return dropSlot(r, slotID)
	})
}

// editSlots applies edit to the stored reminder itself so status changes made
// by other writers are kept
func (m *MemoryReminderRepository) editSlots(reminderID uuid.UUID, edit func(*models.Reminder) error) (*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[reminderID]
	if !ok {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, ErrNotFound)
	}
	edited := r.Clone()
	if err := edit(edited); err != nil {
		return nil, err
	}
	edited.UpdatedAt = m.now()
	m.reminders[reminderID] = edited
	return edited.Clone(), nil
}

// Ping always succeeds
func (m *MemoryReminderRepository) Ping(ctx context.Context) error {
	return nil
}
