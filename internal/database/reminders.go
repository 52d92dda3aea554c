package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/google/uuid"
)

const reminderColumns = `id, user_id, title, description, scheduled_time, time_slots, status, created_at, updated_at, completed_at`

// ReminderRepository handles reminder database operations
type ReminderRepository struct {
	db *DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	var slotsJSON []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.Title,
		&reminder.Description,
		&reminder.ScheduledTime,
		&slotsJSON,
		&reminder.Status,
		&reminder.CreatedAt,
		&reminder.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if reminder.TimeSlots, err = decodeSlots(slotsJSON); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		reminder.CompletedAt = &completedAt.Time
	}
	return reminder, nil
}

func encodeSlots(slots []models.TimeSlot) ([]byte, error) {
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal time slots: %w", err)
	}
	return data, nil
}

func decodeSlots(data []byte) ([]models.TimeSlot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var slots []models.TimeSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal time slots: %w", err)
	}
	if len(slots) == 0 {
		return nil, nil
	}
	return slots, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create creates a new reminder
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	query := `
		INSERT INTO reminders (id, user_id, title, description, scheduled_time, time_slots, status, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	slotsJSON, err := encodeSlots(reminder.TimeSlots)
	if err != nil {
		return err
	}

	createdAt := reminder.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	err = r.db.QueryRowContext(ctx, query,
		reminder.ID,
		reminder.UserID,
		reminder.Title,
		reminder.Description,
		reminder.ScheduledTime,
		slotsJSON,
		reminder.Status,
		createdAt,
		time.Now(),
		nullTime(reminder.CompletedAt),
	).Scan(&reminder.CreatedAt, &reminder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}

	return nil
}

// GetByID retrieves a reminder by ID
func (r *ReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

	reminder, err := scanReminder(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return reminder, nil
}

// ListByUser returns one page of a user's reminders in creation order and
// the user's total reminder count
func (r *ReminderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Reminder, int, error) {
	page, pageSize = normalizePage(page, pageSize)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count reminders: %w", err)
	}

	query := `SELECT ` + reminderColumns + ` FROM reminders
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`

	reminders, err := r.query(ctx, query, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	return reminders, total, nil
}

// ListAll returns every reminder, used by the scheduler to re-arm entries on start
func (r *ReminderRepository) ListAll(ctx context.Context) ([]*models.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders ORDER BY created_at ASC, id ASC`
	return r.query(ctx, query)
}

func (r *ReminderRepository) query(ctx context.Context, query string, args ...any) ([]*models.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, reminder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

// Update updates an existing reminder
func (r *ReminderRepository) Update(ctx context.Context, reminder *models.Reminder) error {
	query := `
		UPDATE reminders
		SET title = $2, description = $3, scheduled_time = $4, time_slots = $5, status = $6, updated_at = $7, completed_at = $8
		WHERE id = $1
		RETURNING updated_at
	`

	slotsJSON, err := encodeSlots(reminder.TimeSlots)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query,
		reminder.ID,
		reminder.Title,
		reminder.Description,
		reminder.ScheduledTime,
		slotsJSON,
		reminder.Status,
		time.Now(),
		nullTime(reminder.CompletedAt),
	).Scan(&reminder.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reminder %s: %w", reminder.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}

	return nil
}

// Delete deletes a reminder by ID
func (r *ReminderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}

	return nil
}

// UpdateReminderStatus sets the single-time status of a reminder
func (r *ReminderRepository) UpdateReminderStatus(ctx context.Context, id uuid.UUID, status models.ReminderStatus) (bool, error) {
	query := `
		UPDATE reminders
		SET status = $2, updated_at = NOW(),
			completed_at = CASE WHEN $3 THEN NOW() ELSE NULL END
		WHERE id = $1
	`

	completed := status == models.ReminderStatusCompleted
	result, err := r.db.ExecContext(ctx, query, id, string(status), completed)
	if err != nil {
		return false, fmt.Errorf("failed to update reminder status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpdateTimeSlotStatus sets the status of one slot. The row is locked for the
// read-modify-write so concurrent toggles on sibling slots are not lost.
func (r *ReminderRepository) UpdateTimeSlotStatus(ctx context.Context, reminderID uuid.UUID, slotID string, status models.SlotStatus) (updated bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil || !updated {
			_ = tx.Rollback()
		}
	}()

	var slotsJSON []byte
	err = tx.QueryRowContext(ctx, `SELECT time_slots FROM reminders WHERE id = $1 FOR UPDATE`, reminderID).Scan(&slotsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock reminder: %w", err)
	}

	slots, err := decodeSlots(slotsJSON)
	if err != nil {
		return false, err
	}
	holder := models.Reminder{TimeSlots: slots}
	if !holder.SetSlotStatus(slotID, status) {
		return false, nil
	}

	newJSON, err := encodeSlots(holder.TimeSlots)
	if err != nil {
		return false, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE reminders SET time_slots = $2, updated_at = NOW() WHERE id = $1`, reminderID, newJSON); err != nil {
		return false, fmt.Errorf("failed to update time slot status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit time slot status: %w", err)
	}
	return true, nil
}

// AddTimeSlot appends a slot inside a row-locked transaction
func (r *ReminderRepository) AddTimeSlot(ctx context.Context, reminderID uuid.UUID, slot models.TimeSlot, maxSlots int) (*models.Reminder, error) {
	return r.editSlots(ctx, reminderID, func(rem *models.Reminder) error {
		return appendSlot(rem, slot, maxSlots)
	})
}

// RemoveTimeSlot drops a slot inside a row-locked transaction
func (r *ReminderRepository) RemoveTimeSlot(ctx context.Context, reminderID uuid.UUID, slotID string) (*models.Reminder, error) {
	return r.editSlots(ctx, reminderID, func(rem *models.Reminder) error {
		return dropSlot(rem, slotID)
	})
}

// editSlots locks the row, applies edit to the stored slot list and writes
// back only time_slots. Status columns are left to the status updates.
func (r *ReminderRepository) editSlots(ctx context.Context, reminderID uuid.UUID, edit func(*models.Reminder) error) (reminder *models.Reminder, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1 FOR UPDATE`, reminderID)
	reminder, err = scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock reminder: %w", err)
	}

	if err = edit(reminder); err != nil {
		return nil, err
	}

	slotsJSON, err := encodeSlots(reminder.TimeSlots)
	if err != nil {
		return nil, err
	}
	err = tx.QueryRowContext(ctx,
		`UPDATE reminders SET time_slots = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		reminderID, slotsJSON,
	).Scan(&reminder.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update time slots: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit time slots: %w", err)
	}
	return reminder, nil
}

// Ping checks the database connection
func (r *ReminderRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
