package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/smart-reminders/internal/database"
	logpkg "github.com/benvon/smart-reminders/internal/logger"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/benvon/smart-reminders/internal/notifications"
	"github.com/benvon/smart-reminders/internal/queue"
	"github.com/benvon/smart-reminders/internal/telemetry"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DefaultRetryDelay is the first retry delay; each retry doubles it
	DefaultRetryDelay = 5 * time.Second
	// MaxRetryDelay caps the retry backoff
	MaxRetryDelay = 5 * time.Minute

	fireTimeout = 30 * time.Second
)

// errInvalidJob marks failures that retrying cannot fix
var errInvalidJob = errors.New("invalid job")

// JobProcessor handles one job type
type JobProcessor func(ctx context.Context, job *queue.Job) error

type processorEntry struct {
	proc JobProcessor
}

// ReminderReader is the storage the scheduler needs
type ReminderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	ListAll(ctx context.Context) ([]*models.Reminder, error)
}

type entryKey struct {
	reminderID uuid.UUID
	slotID     string // empty for a single-time reminder
}

// NotificationScheduler keeps one cron entry per single-time reminder and per
// time slot and publishes a notification when an entry fires. Slot entries
// repeat daily; single-time entries run once.
type NotificationScheduler struct {
	store      ReminderReader
	publisher  notifications.Publisher
	jobQueue   queue.JobQueue // For re-enqueueing jobs with delays
	cron       *cron.Cron
	logger     *zap.Logger
	now        func() time.Time
	retryDelay time.Duration
	registry   map[queue.JobType]processorEntry

	mu      sync.Mutex
	entries map[entryKey]cron.EntryID
}

// NewNotificationScheduler creates a scheduler whose slot times are
// interpreted in loc. jobQueue may be nil, in which case failed jobs are
// requeued immediately instead of with a delay.
func NewNotificationScheduler(
	store ReminderReader,
	publisher notifications.Publisher,
	jobQueue queue.JobQueue,
	loc *time.Location,
	logger *zap.Logger,
) *NotificationScheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationScheduler{
		store:      store,
		publisher:  publisher,
		jobQueue:   jobQueue,
		cron:       cron.New(cron.WithLocation(loc)),
		logger:     logger,
		retryDelay: DefaultRetryDelay,
		registry:   make(map[queue.JobType]processorEntry),
		entries:    make(map[entryKey]cron.EntryID),
	}
	s.now = func() time.Time { return time.Now().In(loc) }

	s.RegisterProcessor(queue.JobTypeScheduleReminder, s.processScheduleReminder)
	s.RegisterProcessor(queue.JobTypeCancelReminder, s.processCancelReminder)
	s.RegisterProcessor(queue.JobTypeScheduleTimeSlots, s.processScheduleTimeSlots)
	s.RegisterProcessor(queue.JobTypeCancelTimeSlot, s.processCancelTimeSlot)
	return s
}

// RegisterProcessor registers a processor for a job type.
func (s *NotificationScheduler) RegisterProcessor(typ queue.JobType, proc JobProcessor) {
	s.registry[typ] = processorEntry{proc: proc}
}

// Start starts the cron loop
func (s *NotificationScheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron loop and returns a context that is done once running
// notifications have finished
func (s *NotificationScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Resync arms entries for every stored reminder. Called on start so entries
// survive a worker restart.
func (s *NotificationScheduler) Resync(ctx context.Context) error {
	reminders, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}
	for _, r := range reminders {
		if err := s.arm(r); err != nil {
			return err
		}
	}
	s.logger.Info("notification_entries_resynced",
		zap.Int("reminders", len(reminders)),
		zap.Int("entries", s.EntryCount()),
	)
	return nil
}

// arm schedules everything a reminder needs
func (s *NotificationScheduler) arm(r *models.Reminder) error {
	if r.IsMultiTime() {
		s.remove(entryKey{reminderID: r.ID})
		for _, slot := range r.TimeSlots {
			if err := s.addDaily(r.ID, slot); err != nil {
				return err
			}
		}
		return nil
	}
	s.addOnce(r)
	return nil
}

// dailySpec is the five-field cron spec for a slot's time of day
func dailySpec(t models.TimeOfDay) string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

func (s *NotificationScheduler) addDaily(reminderID uuid.UUID, slot models.TimeSlot) error {
	key := entryKey{reminderID: reminderID, slotID: slot.ID}
	s.remove(key)

	id, err := s.cron.AddFunc(dailySpec(slot.Time), func() {
		s.fireFromCron(reminderID, slot.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to add entry for slot %s: %w", slot.ID, err)
	}

	s.mu.Lock()
	s.entries[key] = id
	s.mu.Unlock()
	return nil
}

// onceSchedule fires a single time at at
type onceSchedule struct {
	at time.Time
}

// Next implements cron.Schedule. A zero time tells cron the entry is done.
func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

func (s *NotificationScheduler) addOnce(r *models.Reminder) {
	key := entryKey{reminderID: r.ID}
	s.remove(key)

	if r.Status == models.ReminderStatusCompleted || !r.ScheduledTime.After(s.now()) {
		return
	}

	reminderID := r.ID
	id := s.cron.Schedule(onceSchedule{at: r.ScheduledTime}, cron.FuncJob(func() {
		s.fireFromCron(reminderID, "")
	}))

	s.mu.Lock()
	s.entries[key] = id
	s.mu.Unlock()
}

// remove drops the entry for key if there is one
func (s *NotificationScheduler) remove(key entryKey) {
	s.mu.Lock()
	id, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	if ok {
		s.cron.Remove(id)
	}
}

// removeReminder drops every entry of a reminder
func (s *NotificationScheduler) removeReminder(reminderID uuid.UUID) {
	s.mu.Lock()
	var ids []cron.EntryID
	for key, id := range s.entries {
		if key.reminderID == reminderID {
			ids = append(ids, id)
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.cron.Remove(id)
	}
}

// EntryCount returns the number of armed entries
func (s *NotificationScheduler) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// HasEntry reports whether an entry is armed for the reminder and slot. An
// empty slotID asks about the single-time entry.
func (s *NotificationScheduler) HasEntry(reminderID uuid.UUID, slotID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[entryKey{reminderID: reminderID, slotID: slotID}]
	return ok
}

func (s *NotificationScheduler) fireFromCron(reminderID uuid.UUID, slotID string) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()
	ctx, end := telemetry.StartSpan(ctx, "notification.fire",
		attribute.String("reminder.id", reminderID.String()),
		attribute.String("reminder.slot_id", slotID),
	)
	err := s.Fire(ctx, reminderID, slotID)
	end(err)
	if err != nil {
		s.logger.Error("failed_to_fire_notification",
			zap.String("reminder_id", reminderID.String()),
			zap.String("slot_id", logpkg.SanitizeID(slotID)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	}
}

// Fire re-reads the reminder and publishes its notification unless it is
// gone or already completed. Entries for deleted reminders or slots are
// dropped.
func (s *NotificationScheduler) Fire(ctx context.Context, reminderID uuid.UUID, slotID string) error {
	r, err := s.store.GetByID(ctx, reminderID)
	if errors.Is(err, database.ErrNotFound) {
		s.removeReminder(reminderID)
		s.logger.Debug("notification_skipped_reminder_deleted", zap.String("reminder_id", reminderID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load reminder: %w", err)
	}

	now := s.now()
	if slotID == "" {
		s.remove(entryKey{reminderID: reminderID})
		if r.IsMultiTime() || r.Status == models.ReminderStatusCompleted {
			s.logger.Debug("notification_skipped_completed", zap.String("reminder_id", reminderID.String()))
			return nil
		}
		return s.publish(ctx, notifications.NewNotification(r, nil, now))
	}

	slot, ok := r.FindSlot(slotID)
	if !ok {
		s.remove(entryKey{reminderID: reminderID, slotID: slotID})
		s.logger.Debug("notification_skipped_slot_deleted",
			zap.String("reminder_id", reminderID.String()),
			zap.String("slot_id", logpkg.SanitizeID(slotID)),
		)
		return nil
	}
	if slot.IsCompleted() {
		s.logger.Debug("notification_skipped_completed",
			zap.String("reminder_id", reminderID.String()),
			zap.String("slot_id", logpkg.SanitizeID(slotID)),
		)
		return nil
	}
	return s.publish(ctx, notifications.NewNotification(r, &slot, now))
}

func (s *NotificationScheduler) publish(ctx context.Context, n notifications.Notification) error {
	if err := s.publisher.Publish(ctx, n); err != nil {
		return err
	}
	s.logger.Info("notification_fired",
		zap.String("reminder_id", n.ReminderID.String()),
		zap.String("slot_id", logpkg.SanitizeID(n.SlotID)),
		zap.Time("scheduled_for", n.ScheduledFor),
	)
	return nil
}

// loadForJob fetches the job's reminder. A missing reminder drops its entries
// and yields nil without error.
func (s *NotificationScheduler) loadForJob(ctx context.Context, job *queue.Job) (*models.Reminder, error) {
	r, err := s.store.GetByID(ctx, job.ReminderID)
	if errors.Is(err, database.ErrNotFound) {
		s.removeReminder(job.ReminderID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder: %w", err)
	}
	return r, nil
}

func (s *NotificationScheduler) processScheduleReminder(ctx context.Context, job *queue.Job) error {
	r, err := s.loadForJob(ctx, job)
	if err != nil || r == nil {
		return err
	}
	return s.arm(r)
}

func (s *NotificationScheduler) processCancelReminder(ctx context.Context, job *queue.Job) error {
	s.removeReminder(job.ReminderID)
	return nil
}

func (s *NotificationScheduler) processScheduleTimeSlots(ctx context.Context, job *queue.Job) error {
	r, err := s.loadForJob(ctx, job)
	if err != nil || r == nil {
		return err
	}
	s.remove(entryKey{reminderID: r.ID})
	for _, slotID := range job.SlotIDs {
		slot, ok := r.FindSlot(slotID)
		if !ok {
			s.remove(entryKey{reminderID: r.ID, slotID: slotID})
			continue
		}
		if err := s.addDaily(r.ID, slot); err != nil {
			return err
		}
	}
	return nil
}

func (s *NotificationScheduler) processCancelTimeSlot(ctx context.Context, job *queue.Job) error {
	for _, slotID := range job.SlotIDs {
		s.remove(entryKey{reminderID: job.ReminderID, slotID: slotID})
	}
	return nil
}

// ProcessJob processes a job based on its type using the processor registry.
func (s *NotificationScheduler) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if err := waitUntilReady(ctx, job); err != nil {
		if nackErr := msg.Nack(true); nackErr != nil {
			s.logger.Warn("failed_to_nack_job", zap.String("job_id", job.ID.String()), zap.String("error", logpkg.SanitizeError(nackErr)))
		}
		return err
	}

	ent, ok := s.registry[job.Type]
	if !ok {
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Error("failed_to_nack_unknown_job_type",
				zap.String("job_id", job.ID.String()),
				zap.String("job_type", logpkg.SanitizeID(string(job.Type))),
				zap.String("error", logpkg.SanitizeError(nackErr)),
			)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err := job.Validate(); err != nil {
		return s.handleJobError(ctx, msg, job, fmt.Errorf("%w: %v", errInvalidJob, err))
	}

	if err := ent.proc(ctx, job); err != nil {
		return s.handleJobError(ctx, msg, job, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack %s job: %w", job.Type, ackErr)
	}
	s.logger.Debug("notification_job_processed",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("reminder_id", job.ReminderID.String()),
	)
	return nil
}

// waitUntilReady holds a job whose NotBefore has not passed yet. This only
// happens when the broker has no delayed exchange.
func waitUntilReady(ctx context.Context, job *queue.Job) error {
	if job.NotBefore == nil {
		return nil
	}
	wait := time.Until(*job.NotBefore)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *NotificationScheduler) backoff(retryCount int) time.Duration {
	if retryCount > 16 {
		return MaxRetryDelay
	}
	delay := s.retryDelay << retryCount
	if delay <= 0 || delay > MaxRetryDelay {
		delay = MaxRetryDelay
	}
	return delay
}

// handleJobError retries the job with backoff or dead-letters it
func (s *NotificationScheduler) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("reminder_id", job.ReminderID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.String("error", logpkg.SanitizeError(err)),
	}

	if errors.Is(err, errInvalidJob) || !job.CanRetry() {
		s.logger.Error("notification_job_dead_lettered", fields...)
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Warn("failed_to_nack_job_to_dlq", zap.String("job_id", job.ID.String()), zap.String("error", logpkg.SanitizeError(nackErr)))
		}
		return fmt.Errorf("job failed (no retry): %w", err)
	}

	if s.jobQueue != nil {
		retry := job.RetryAfter(s.backoff(job.RetryCount))
		enqueueErr := s.jobQueue.Enqueue(ctx, retry)
		if enqueueErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				s.logger.Warn("failed_to_ack_retried_job", zap.String("job_id", job.ID.String()), zap.String("error", logpkg.SanitizeError(ackErr)))
			}
			s.logger.Warn("notification_job_retry_scheduled", append(fields, zap.Time("not_before", *retry.NotBefore))...)
			return fmt.Errorf("job failed (will retry): %w", err)
		}
		s.logger.Warn("failed_to_reenqueue_job", zap.String("job_id", job.ID.String()), zap.String("error", logpkg.SanitizeError(enqueueErr)))
	}

	// A requeued message comes back with its original body, so RetryCount
	// cannot advance on this path. Requeue in place once, then dead-letter.
	if msg.WasRedelivered() {
		s.logger.Error("notification_job_dead_lettered", append(fields, zap.Bool("redelivered", true))...)
		if nackErr := msg.Nack(false); nackErr != nil {
			s.logger.Warn("failed_to_nack_job_to_dlq", zap.String("job_id", job.ID.String()), zap.String("error", logpkg.SanitizeError(nackErr)))
		}
		return fmt.Errorf("job failed (requeue exhausted): %w", err)
	}

	s.logger.Warn("notification_job_requeued", fields...)
	if nackErr := msg.Nack(true); nackErr != nil {
		s.logger.Warn("failed_to_nack_job", zap.String("job_id", job.ID.String()), zap.String("error", logpkg.SanitizeError(nackErr)))
	}
	return fmt.Errorf("job failed (will retry): %w", err)
}

// Run consumes jobs from q until ctx is cancelled
func (s *NotificationScheduler) Run(ctx context.Context, q queue.JobQueue, prefetch int) error {
	msgChan, errChan, err := q.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			s.logger.Error("queue_error", zap.String("error", logpkg.SanitizeError(err)))
		case msg, ok := <-msgChan:
			if !ok {
				return errors.New("message channel closed")
			}
			if err := s.ProcessJob(ctx, msg); err != nil {
				s.logger.Error("failed_to_process_job",
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
			}
		}
	}
}
