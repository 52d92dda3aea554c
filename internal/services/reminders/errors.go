package reminders

import (
	"errors"
	"fmt"
)

var (
	// ErrReminderNotFound is returned when the reminder does not exist or
	// belongs to another user
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrTimeSlotNotFound is returned when the reminder has no slot with the id
	ErrTimeSlotNotFound = errors.New("time slot not found")
	// ErrUpdateFailed wraps storage failures while changing a status. It is
	// transient; the caller may retry.
	ErrUpdateFailed = errors.New("update failed")
)

// ValidationError reports input that cannot be stored
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func updateFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
}
