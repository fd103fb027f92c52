package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotConflict means another active appointment already holds the
	// (provider, date, time) tuple. Returned both by the fast-path check and
	// by the repository when the partial unique index rejects a write.
	ErrSlotConflict = errors.New("slot already booked for this provider")

	// ErrInvalidTransition means the requested lifecycle change is not legal
	// from the appointment's current status.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrCancellationWindow means the appointment is less than the
	// cancellation window away and can no longer be cancelled.
	ErrCancellationWindow = errors.New("cancellation window has expired")

	// ErrPastDate means a creation or reschedule targeted a slot that is not
	// strictly in the future.
	ErrPastDate = errors.New("appointment date and time must be in the future")

	// ErrValidation wraps malformed-input failures; inspect with errors.Is.
	ErrValidation = errors.New("validation failed")

	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrPatientNotFound     = errors.New("patient not found")
)

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
