package timeslots

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

// ErrCardClosed is returned when a toggle finished after its card was torn down
// or re-bound to another reminder. The result was not applied.
var ErrCardClosed = errors.New("card closed before toggle completed")

// Toggler persists status flips and returns the reminder as stored afterwards.
type Toggler interface {
	ToggleReminderStatus(ctx context.Context, reminderID uuid.UUID) (*models.Reminder, error)
	ToggleTimeSlotStatus(ctx context.Context, reminderID uuid.UUID, slotID string) (*models.Reminder, error)
}

// Card is the per-card state for one rendered reminder: the reminder as last
// seen and the user's slot selection. A Card is never shared between
// reminders; the mutex only guards against a toggle finishing on another
// goroutine while the card is being refreshed or closed.
type Card struct {
	mu       sync.Mutex
	reminder *models.Reminder
	selector Selector
	closed   bool
}

// NewCard binds a card to r
func NewCard(r *models.Reminder) *Card {
	return &Card{reminder: r.Clone()}
}

// Select records an explicit slot selection (user tap)
func (c *Card) Select(slotID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selector.Select(slotID)
}

// Replace swaps in a refreshed copy of the reminder. The selection is kept
// and healed on the next access if the slot it names is gone.
func (c *Card) Replace(r *models.Reminder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reminder = r.Clone()
}

// Reminder returns a copy of the reminder the card currently shows
func (c *Card) Reminder() *models.Reminder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reminder.Clone()
}

// ActiveSlot resolves and stores the active slot selection
func (c *Card) ActiveSlot() (models.TimeSlot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector.Active(c.reminder)
}

// View renders the card at now, healing a stale selection first.
func (c *Card) View(now time.Time) CardView {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selector.Active(c.reminder)
	return BuildView(c.reminder, c.selector.SelectedID(), now)
}

// Close tears the card down. Toggles still in flight are discarded when they return.
func (c *Card) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// ToggleActiveSlot flips the active slot in multi-time mode, or the reminder
// itself in single-time mode.
func (c *Card) ToggleActiveSlot(ctx context.Context, t Toggler) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCardClosed
	}
	id := c.reminder.ID
	multi := c.reminder.IsMultiTime()
	slot, _ := c.selector.Active(c.reminder)
	c.mu.Unlock()

	if !multi {
		return c.apply(id, func() (*models.Reminder, error) {
			return t.ToggleReminderStatus(ctx, id)
		})
	}
	return c.apply(id, func() (*models.Reminder, error) {
		return t.ToggleTimeSlotStatus(ctx, id, slot.ID)
	})
}

// ToggleSlot flips a specific slot. The selection is not changed.
func (c *Card) ToggleSlot(ctx context.Context, t Toggler, slotID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCardClosed
	}
	id := c.reminder.ID
	c.mu.Unlock()

	return c.apply(id, func() (*models.Reminder, error) {
		return t.ToggleTimeSlotStatus(ctx, id, slotID)
	})
}

// apply runs call without holding the lock and installs its result only if
// the card is still live and still bound to the same reminder. Failures leave
// the card untouched.
func (c *Card) apply(reminderID uuid.UUID, call func() (*models.Reminder, error)) error {
	updated, err := call()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reminder.ID != reminderID {
		return ErrCardClosed
	}
	if updated != nil {
		c.reminder = updated.Clone()
	}
	return nil
}
