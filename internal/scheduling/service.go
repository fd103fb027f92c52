package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	redisclient "github.com/clinicore/clinic-scheduling/internal/redis"
)

// Service is the appointment lifecycle manager. It owns every write to
// appointment state; availability and statistics reads live in their own
// types over the same repository.
type Service struct {
	repo    Repository
	locker  redisclient.Locker
	billing Billing
	clock   Clock
	log     zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, billing Billing, clock Clock, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		billing: billing,
		clock:   clock,
		log:     log.With().Str("component", "scheduling").Logger(),
	}
}

// slotKey identifies one bookable tuple for the distributed lock.
func slotKey(providerID uuid.UUID, date time.Time, t TimeOfDay) string {
	return fmt.Sprintf("%s:%s:%s", providerID, date.Format("2006-01-02"), t)
}

type CreateInput struct {
	PatientID        uuid.UUID
	ProviderID       uuid.UUID
	SpecializationID uuid.UUID
	ClinicID         *uuid.UUID
	Date             time.Time
	Time             TimeOfDay
	Type             AppointmentType
	// Fee overrides the provider's consultation fee when set.
	Fee   *decimal.Decimal
	Notes *string
}

func (in CreateInput) validate() error {
	if in.PatientID == uuid.Nil {
		return validationErr("patient_id is required")
	}
	if in.ProviderID == uuid.Nil {
		return validationErr("provider_id is required")
	}
	if in.SpecializationID == uuid.Nil {
		return validationErr("specialization_id is required")
	}
	if in.Date.IsZero() {
		return validationErr("date is required")
	}
	if !in.Type.Valid() {
		return validationErr("unknown appointment type %q", in.Type)
	}
	if in.Fee != nil && in.Fee.IsNegative() {
		return validationErr("fee must not be negative")
	}
	return nil
}

// Create books a slot for a patient. The per-slot Redis lock and the
// in-process conflict probe fail fast; the repository's partial unique index
// is the actual correctness guarantee, so a lost race still comes back as
// ErrSlotConflict. On success a pending invoice is opened for the fee;
// billing failures are reported but never revert the booking.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	provider, err := s.repo.GetProviderByID(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	now := s.clock.Now()
	date := DateOnly(in.Date)
	if !in.Time.On(date).After(now) {
		return nil, ErrPastDate
	}

	fee := provider.ConsultationFee
	if in.Fee != nil {
		fee = *in.Fee
	}

	appt := &Appointment{
		ID:               uuid.New(),
		PatientID:        in.PatientID,
		ProviderID:       in.ProviderID,
		SpecializationID: in.SpecializationID,
		ClinicID:         in.ClinicID,
		Date:             date,
		Time:             in.Time,
		Status:           StatusScheduled,
		Type:             in.Type,
		Notes:            in.Notes,
		Fee:              fee,
		IsPaid:           false,
	}

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, slotKey(in.ProviderID, date, in.Time), func(lockCtx context.Context) error {
		taken, err := s.repo.HasActiveAppointment(lockCtx, in.ProviderID, date, in.Time, uuid.Nil)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if taken {
			return ErrSlotConflict
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Another booking for the same slot is in flight; the caller may
			// retry with a different slot.
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	s.openInvoice(ctx, created)

	return created, nil
}

func (s *Service) openInvoice(ctx context.Context, appt *Appointment) {
	if !appt.Fee.IsPositive() {
		return
	}

	invoiceID, err := s.billing.OpenInvoice(ctx, OpenInvoiceRequest{
		PatientID:     appt.PatientID,
		ProviderID:    appt.ProviderID,
		AppointmentID: appt.ID,
		Amount:        appt.Fee,
		Description:   fmt.Sprintf("Medical consultation (%s)", appt.Type),
	})
	if err != nil {
		// The appointment stands; billing reconciles unbilled appointments
		// separately.
		s.log.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("fee", appt.Fee.String()).
			Msg("open invoice failed")
		return
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("invoice_id", invoiceID.String()).
		Msg("invoice opened")
}

// Confirm moves a scheduled appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.applyEvent(ctx, id, eventConfirm, "")
}

// CheckIn confirms a scheduled appointment and records the arrival time.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.applyEvent(ctx, id, eventCheckIn, "")
}

// Complete closes out a confirmed appointment and stamps completed_at.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.applyEvent(ctx, id, eventComplete, "")
}

// Cancel cancels an active appointment with a mandatory reason, but only
// while the slot is more than CancellationWindow away.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.applyEvent(ctx, id, eventCancel, reason)
}

func (s *Service) applyEvent(ctx context.Context, id uuid.UUID, ev event, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	change, err := transition(appt, ev, s.clock.Now(), reason)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.ApplyTransition(ctx, appt.ID, appt.Status, change)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row changed under us after the load; the transition no
			// longer applies.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("apply %s: %w", ev, err)
	}

	s.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("event", ev.String()).
		Str("status", string(updated.Status)).
		Msg("appointment transition")

	return updated, nil
}

type UpdateInput struct {
	ProviderID       *uuid.UUID
	SpecializationID *uuid.UUID
	Date             *time.Time
	Time             *TimeOfDay
	Type             *AppointmentType
	Fee              *decimal.Decimal
	Notes            *string
}

// Update edits a non-completed appointment. Changing the provider, date or
// time re-runs the conflict check, excluding the appointment's own row.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCompleted {
		return nil, ErrInvalidTransition
	}

	if in.Type != nil && !in.Type.Valid() {
		return nil, validationErr("unknown appointment type %q", *in.Type)
	}
	if in.Fee != nil && in.Fee.IsNegative() {
		return nil, validationErr("fee must not be negative")
	}

	slotChanged := false
	if in.ProviderID != nil && *in.ProviderID != appt.ProviderID {
		if _, err := s.repo.GetProviderByID(ctx, *in.ProviderID); err != nil {
			return nil, err
		}
		appt.ProviderID = *in.ProviderID
		slotChanged = true
	}
	if in.Date != nil {
		d := DateOnly(*in.Date)
		if !d.Equal(appt.Date) {
			appt.Date = d
			slotChanged = true
		}
	}
	if in.Time != nil && *in.Time != appt.Time {
		appt.Time = *in.Time
		slotChanged = true
	}
	if in.SpecializationID != nil {
		appt.SpecializationID = *in.SpecializationID
	}
	if in.Type != nil {
		appt.Type = *in.Type
	}
	if in.Fee != nil {
		appt.Fee = *in.Fee
	}
	if in.Notes != nil {
		appt.Notes = in.Notes
	}

	if !slotChanged {
		return s.repo.UpdateAppointment(ctx, appt)
	}

	if !appt.StartAt().After(s.clock.Now()) {
		return nil, ErrPastDate
	}

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, slotKey(appt.ProviderID, appt.Date, appt.Time), func(lockCtx context.Context) error {
		taken, err := s.repo.HasActiveAppointment(lockCtx, appt.ProviderID, appt.Date, appt.Time, appt.ID)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if taken {
			return ErrSlotConflict
		}

		updated, err = s.repo.UpdateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	return updated, nil
}

// Delete hard-removes an appointment. Completed appointments are part of the
// medical record and cannot be deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.Status == StatusCompleted {
		return ErrInvalidTransition
	}
	return s.repo.DeleteAppointment(ctx, id)
}

// Get loads one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListByDate lists a day's appointments ordered by time.
func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	return s.repo.ListByDate(ctx, DateOnly(date))
}

// ListUpcoming lists a provider's scheduled appointments over the next days.
func (s *Service) ListUpcoming(ctx context.Context, providerID uuid.UUID, days int) ([]Appointment, error) {
	if days <= 0 {
		days = 7
	}
	return s.repo.ListUpcomingForProvider(ctx, providerID, DateOnly(s.clock.Now()), days)
}

// MarkNoShows flags active appointments whose slot passed more than grace
// ago. Intended for the periodic worker; returns how many were flagged.
func (s *Service) MarkNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-grace)
	stale, err := s.repo.ListStaleActive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale active appointments: %w", err)
	}

	flagged := 0
	for i := range stale {
		appt := &stale[i]
		change, err := transition(appt, eventNoShow, s.clock.Now(), "")
		if err != nil {
			continue
		}
		if _, err := s.repo.ApplyTransition(ctx, appt.ID, appt.Status, change); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("mark no-show failed")
			continue
		}
		flagged++
	}

	return flagged, nil
}
