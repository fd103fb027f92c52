package scheduling

import (
	"strings"
	"time"
)

// CancellationWindow is the minimum lead time before an appointment's slot
// for a cancellation to be accepted.
const CancellationWindow = 24 * time.Hour

type event int

const (
	eventConfirm event = iota
	eventCheckIn
	eventComplete
	eventCancel
	eventNoShow
)

func (e event) String() string {
	switch e {
	case eventConfirm:
		return "confirm"
	case eventCheckIn:
		return "check_in"
	case eventComplete:
		return "complete"
	case eventCancel:
		return "cancel"
	case eventNoShow:
		return "no_show"
	}
	return "unknown"
}

// stateChange is the outcome of applying an event to an appointment.
// Nil pointer fields leave the corresponding column untouched.
type stateChange struct {
	status             Status
	checkedInAt        *time.Time
	completedAt        *time.Time
	cancellationReason *string
}

// transition is the pure lifecycle rule: given the appointment's current
// state, an event, the current time and an optional cancellation reason, it
// either yields the state change to persist or the reason the event is
// illegal. It performs no I/O.
func transition(a *Appointment, ev event, now time.Time, reason string) (stateChange, error) {
	switch ev {
	case eventConfirm:
		if a.Status != StatusScheduled {
			return stateChange{}, ErrInvalidTransition
		}
		return stateChange{status: StatusConfirmed}, nil

	case eventCheckIn:
		if a.Status != StatusScheduled {
			return stateChange{}, ErrInvalidTransition
		}
		checkedIn := now
		return stateChange{status: StatusConfirmed, checkedInAt: &checkedIn}, nil

	case eventComplete:
		if a.Status != StatusConfirmed {
			return stateChange{}, ErrInvalidTransition
		}
		completed := now
		return stateChange{status: StatusCompleted, completedAt: &completed}, nil

	case eventCancel:
		if !a.Status.Active() {
			return stateChange{}, ErrInvalidTransition
		}
		trimmed := strings.TrimSpace(reason)
		if trimmed == "" {
			return stateChange{}, validationErr("cancellation reason is required")
		}
		if a.StartAt().Sub(now) < CancellationWindow {
			return stateChange{}, ErrCancellationWindow
		}
		return stateChange{status: StatusCancelled, cancellationReason: &trimmed}, nil

	case eventNoShow:
		if !a.Status.Active() {
			return stateChange{}, ErrInvalidTransition
		}
		return stateChange{status: StatusNoShow}, nil
	}

	return stateChange{}, ErrInvalidTransition
}
