// Package notifications schedules and cancels reminder notifications and
// publishes them when they fire.
package notifications

import (
	"context"
	"fmt"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/google/uuid"
)

// Notifier schedules and cancels notifications for reminders and their slots
type Notifier interface {
	CancelReminder(ctx context.Context, reminderID uuid.UUID) error
	ScheduleReminder(ctx context.Context, reminder *models.Reminder) error
	CancelTimeSlotNotification(ctx context.Context, reminderID uuid.UUID, slotID string) error
	ScheduleTimeSlotNotifications(ctx context.Context, reminder *models.Reminder, slots []models.TimeSlot) error
}

// QueueNotifier hands scheduling work to the notification worker through the job queue
type QueueNotifier struct {
	queue queue.JobQueue
}

// NewQueueNotifier creates a notifier backed by q
func NewQueueNotifier(q queue.JobQueue) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

// CancelReminder removes every pending notification of the reminder
func (n *QueueNotifier) CancelReminder(ctx context.Context, reminderID uuid.UUID) error {
	return n.enqueue(ctx, queue.NewJob(queue.JobTypeCancelReminder, uuid.Nil, reminderID))
}

// ScheduleReminder arms the notification of a single-time reminder
func (n *QueueNotifier) ScheduleReminder(ctx context.Context, reminder *models.Reminder) error {
	return n.enqueue(ctx, queue.NewJob(queue.JobTypeScheduleReminder, reminder.UserID, reminder.ID))
}

// CancelTimeSlotNotification removes the notification of one slot
func (n *QueueNotifier) CancelTimeSlotNotification(ctx context.Context, reminderID uuid.UUID, slotID string) error {
	return n.enqueue(ctx, queue.NewJob(queue.JobTypeCancelTimeSlot, uuid.Nil, reminderID, slotID))
}

// ScheduleTimeSlotNotifications arms daily notifications for slots
func (n *QueueNotifier) ScheduleTimeSlotNotifications(ctx context.Context, reminder *models.Reminder, slots []models.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	return n.enqueue(ctx, queue.NewJob(queue.JobTypeScheduleTimeSlots, reminder.UserID, reminder.ID, ids...))
}

func (n *QueueNotifier) enqueue(ctx context.Context, job *queue.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := n.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}
	return nil
}

// NopNotifier discards every request. Used when no queue is configured.
type NopNotifier struct{}

// CancelReminder does nothing
func (NopNotifier) CancelReminder(context.Context, uuid.UUID) error { return nil }

// ScheduleReminder does nothing
func (NopNotifier) ScheduleReminder(context.Context, *models.Reminder) error { return nil }

// CancelTimeSlotNotification does nothing
func (NopNotifier) CancelTimeSlotNotification(context.Context, uuid.UUID, string) error {
	return nil
}

// ScheduleTimeSlotNotifications does nothing
func (NopNotifier) ScheduleTimeSlotNotifications(context.Context, *models.Reminder, []models.TimeSlot) error {
	return nil
}

var (
	_ Notifier = (*QueueNotifier)(nil)
	_ Notifier = NopNotifier{}
)
