package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/smart-reminders/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report fields by their JSON names when they have one
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	if err := Validate.RegisterValidation("slot_status", validateSlotStatus); err != nil {
		panic(fmt.Sprintf("failed to register slot_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("reminder_status", validateReminderStatus); err != nil {
		panic(fmt.Sprintf("failed to register reminder_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("time_of_day", validateTimeOfDay); err != nil {
		panic(fmt.Sprintf("failed to register time_of_day validator: %v", err))
	}
}

// validateSlotStatus validates that a string is a valid SlotStatus enum value
func validateSlotStatus(fl validator.FieldLevel) bool {
	return ValidateSlotStatus(fl.Field().String()) == nil
}

// validateReminderStatus validates that a string is a valid ReminderStatus enum value
func validateReminderStatus(fl validator.FieldLevel) bool {
	return ValidateReminderStatus(fl.Field().String()) == nil
}

// validateTimeOfDay validates an "HH:MM" string
func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, err := models.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateSlotStatus validates a SlotStatus string value
func ValidateSlotStatus(value string) error {
	switch models.SlotStatus(value) {
	case models.SlotStatusPending, models.SlotStatusCompleted:
		return nil
	default:
		return fmt.Errorf("invalid slot status: %s (must be 'pending' or 'completed')", value)
	}
}

// ValidateReminderStatus validates a ReminderStatus string value
func ValidateReminderStatus(value string) error {
	switch models.ReminderStatus(value) {
	case models.ReminderStatusPending, models.ReminderStatusCompleted:
		return nil
	default:
		return fmt.Errorf("invalid status: %s (must be 'pending' or 'completed')", value)
	}
}

// FormatErrors turns validator errors into one readable line per field
func FormatErrors(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			if fe.Kind() == reflect.Slice {
				msgs = append(msgs, fmt.Sprintf("%s must have at most %s entries", fe.Field(), fe.Param()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
			}
		case "time_of_day":
			msgs = append(msgs, fmt.Sprintf("%s must be HH:MM", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
