package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicore/clinic-scheduling/internal/db"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on active (provider, date, time) tuples.
const uniqueViolation = "23505"

const appointmentColumns = `
	id, patient_id, provider_id, specialization_id, clinic_id,
	appointment_date, to_char(appointment_time, 'HH24:MI') AS appointment_time,
	status, type, notes, cancellation_reason, fee, is_paid,
	checked_in_at, completed_at, created_at, updated_at`

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.SpecializationID,
		&a.ClinicID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Type,
		&a.Notes,
		&a.CancellationReason,
		&a.Fee,
		&a.IsPaid,
		&a.CheckedInAt,
		&a.CompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanTemplate(row pgx.Row) (*ScheduleTemplate, error) {
	var t ScheduleTemplate
	var weekday int16

	err := row.Scan(
		&t.ID,
		&t.ProviderID,
		&t.ClinicID,
		&weekday,
		&t.StartTime,
		&t.EndTime,
		&t.SlotDuration,
		&t.MaxPatients,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Weekday = time.Weekday(weekday)
	return &t, nil
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlotConflict
	}
	return err
}

// Interface methods

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, consultation_fee, is_active, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)

	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.ConsultationFee, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)

	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) TemplatesForWeekday(ctx context.Context, providerID uuid.UUID, day time.Weekday) ([]ScheduleTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, clinic_id, day_of_week,
		       to_char(start_time, 'HH24:MI') AS start_time,
		       to_char(end_time, 'HH24:MI') AS end_time,
		       slot_duration, max_patients, is_active, created_at, updated_at
		FROM schedule_templates
		WHERE provider_id = $1
		  AND day_of_week = $2
		  AND is_active
		ORDER BY start_time
	`, providerID, int16(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	return result, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) HasActiveAppointment(ctx context.Context, providerID uuid.UUID, date time.Time, t TimeOfDay, excludeID uuid.UUID) (bool, error) {
	var exclude *uuid.UUID
	if excludeID != uuid.Nil {
		exclude = &excludeID
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE provider_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status IN ('scheduled', 'confirmed')
			  AND ($4::uuid IS NULL OR id <> $4)
		)
	`, providerID, date, t, exclude).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) ActiveCountsByTime(ctx context.Context, providerID uuid.UUID, date time.Time) (map[TimeOfDay]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(appointment_time, 'HH24:MI'), count(*)
		FROM appointments
		WHERE provider_id = $1
		  AND appointment_date = $2
		  AND status IN ('scheduled', 'confirmed')
		GROUP BY appointment_time
	`, providerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[TimeOfDay]int)
	for rows.Next() {
		var t TimeOfDay
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}

	return counts, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, provider_id, specialization_id, clinic_id,
			appointment_date, appointment_time, status, type, notes,
			fee, is_paid, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProviderID, a.SpecializationID, a.ClinicID,
		a.Date, a.Time, a.Status, a.Type, a.Notes, a.Fee, a.IsPaid,
	)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, translateUnique(err)
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    provider_id = $3,
		    specialization_id = $4,
		    clinic_id = $5,
		    appointment_date = $6,
		    appointment_time = $7,
		    type = $8,
		    notes = $9,
		    fee = $10,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProviderID, a.SpecializationID, a.ClinicID,
		a.Date, a.Time, a.Type, a.Notes, a.Fee,
	)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, translateUnique(err)
	}
	return updated, nil
}

func (r *PgRepository) ApplyTransition(ctx context.Context, id uuid.UUID, expected Status, change stateChange) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    checked_in_at = COALESCE($3, checked_in_at),
		    completed_at = COALESCE($4, completed_at),
		    cancellation_reason = COALESCE($5, cancellation_reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = $6
		RETURNING `+appointmentColumns,
		id, change.status, change.checkedInAt, change.completedAt, change.cancellationReason, expected,
	)
	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date = $1
		ORDER BY appointment_time
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListUpcomingForProvider(ctx context.Context, providerID uuid.UUID, from time.Time, days int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND appointment_date >= $2
		  AND appointment_date < $3
		  AND status = 'scheduled'
		ORDER BY appointment_date, appointment_time
	`, providerID, from, from.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListStaleActive(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed')
		  AND appointment_date + appointment_time < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) CountByStatusForDate(ctx context.Context, date time.Time) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM appointments
		WHERE appointment_date = $1
		GROUP BY status
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}

	return counts, rows.Err()
}

func (r *PgRepository) CountPerDay(ctx context.Context, from, to time.Time) ([]DayCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_date, count(*)
		FROM appointments
		WHERE appointment_date >= $1
		  AND appointment_date < $2
		GROUP BY appointment_date
		ORDER BY appointment_date
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, err
		}
		result = append(result, dc)
	}

	return result, rows.Err()
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
