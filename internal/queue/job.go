package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeScheduleReminder arms the one-shot notification of a single-time reminder
	JobTypeScheduleReminder JobType = "schedule_reminder"
	// JobTypeCancelReminder removes every notification of a reminder
	JobTypeCancelReminder JobType = "cancel_reminder"
	// JobTypeScheduleTimeSlots arms daily notifications for the listed slots
	JobTypeScheduleTimeSlots JobType = "schedule_time_slots"
	// JobTypeCancelTimeSlot removes the notification of one slot
	JobTypeCancelTimeSlot JobType = "cancel_time_slot"
)

// DefaultMaxRetries is the retry budget of a new job
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	UserID     uuid.UUID  `json:"user_id"`
	ReminderID uuid.UUID  `json:"reminder_id"`
	SlotIDs    []string   `json:"slot_ids,omitempty"`
	NotBefore  *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID, reminderID uuid.UUID, slotIDs ...string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		ReminderID: reminderID,
		SlotIDs:    slotIDs,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}

// Validate checks the fields each job type needs
func (j *Job) Validate() error {
	if j.ReminderID == uuid.Nil {
		return fmt.Errorf("reminder_id is required for %s job", j.Type)
	}
	switch j.Type {
	case JobTypeScheduleReminder, JobTypeCancelReminder:
		return nil
	case JobTypeScheduleTimeSlots, JobTypeCancelTimeSlot:
		if len(j.SlotIDs) == 0 {
			return fmt.Errorf("slot_ids are required for %s job", j.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown job type: %s", j.Type)
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// RetryAfter returns a copy of the job with one more retry recorded and
// NotBefore set to delay from now
func (j *Job) RetryAfter(delay time.Duration) *Job {
	retry := *j
	retry.SlotIDs = append([]string(nil), j.SlotIDs...)
	notBefore := time.Now().Add(delay)
	retry.NotBefore = &notBefore
	retry.RetryCount = j.RetryCount + 1
	return &retry
}
