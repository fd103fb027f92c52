package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the scheduling core.
// The implementation must enforce the active-slot uniqueness invariant
// atomically: CreateAppointment and UpdateAppointment return ErrSlotConflict
// when another active appointment holds the same (provider, date, time).
type Repository interface {
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// TemplatesForWeekday returns the provider's active schedule templates
	// for one day of the week, ordered by start time.
	TemplatesForWeekday(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]ScheduleTemplate, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// HasActiveAppointment is the fast-path conflict probe. excludeID may be
	// uuid.Nil; when set, that appointment is ignored so reschedules do not
	// collide with themselves.
	HasActiveAppointment(ctx context.Context, providerID uuid.UUID, date time.Time, t TimeOfDay, excludeID uuid.UUID) (bool, error)

	// ActiveCountsByTime groups the provider's active appointments on a date
	// by slot time.
	ActiveCountsByTime(ctx context.Context, providerID uuid.UUID, date time.Time) (map[TimeOfDay]int, error)

	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)

	// ApplyTransition updates status and transition timestamps only when the
	// row still has the expected status (compare-and-swap). A raced row
	// surfaces as ErrAppointmentNotFound.
	ApplyTransition(ctx context.Context, id uuid.UUID, expected Status, change stateChange) (*Appointment, error)

	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	ListByDate(ctx context.Context, date time.Time) ([]Appointment, error)
	ListUpcomingForProvider(ctx context.Context, providerID uuid.UUID, from time.Time, days int) ([]Appointment, error)

	// ListStaleActive returns active appointments whose slot timestamp is
	// before the cutoff. Used by the no-show worker.
	ListStaleActive(ctx context.Context, before time.Time) ([]Appointment, error)

	CountByStatusForDate(ctx context.Context, date time.Time) (map[Status]int, error)
	CountPerDay(ctx context.Context, from, to time.Time) ([]DayCount, error)
}
