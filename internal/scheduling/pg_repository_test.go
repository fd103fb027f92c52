package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "patient_id", "provider_id", "specialization_id", "clinic_id",
	"appointment_date", "appointment_time", "status", "type", "notes",
	"cancellation_reason", "fee", "is_paid", "checked_in_at", "completed_at",
	"created_at", "updated_at",
}

func appointmentRow(mock pgxmock.PgxPoolIface, a *Appointment) *pgxmock.Rows {
	return mock.NewRows(appointmentCols).AddRow(
		a.ID, a.PatientID, a.ProviderID, a.SpecializationID, a.ClinicID,
		a.Date, a.Time, a.Status, a.Type, a.Notes,
		a.CancellationReason, a.Fee, a.IsPaid, a.CheckedInAt, a.CompletedAt,
		a.CreatedAt, a.UpdatedAt,
	)
}

func testAppointment() *Appointment {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &Appointment{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		ProviderID:       uuid.New(),
		SpecializationID: uuid.New(),
		Date:             time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Time:             mustTime("09:30"),
		Status:           StatusScheduled,
		Type:             TypeConsultation,
		Fee:              decimal.NewFromInt(150),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestPgGetAppointmentByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		want := testAppointment()

		mock.ExpectQuery("FROM appointments").
			WithArgs(want.ID).
			WillReturnRows(appointmentRow(mock, want))

		got, err := repo.GetAppointmentByID(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, mustTime("09:30"), got.Time)
		assert.True(t, got.Fee.Equal(want.Fee))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to the domain error", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := uuid.New()

		mock.ExpectQuery("FROM appointments").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetAppointmentByID(ctx, id)
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgCreateAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the inserted row", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		a := testAppointment()

		mock.ExpectQuery("INSERT INTO appointments").
			WithArgs(a.ID, a.PatientID, a.ProviderID, a.SpecializationID, a.ClinicID,
				a.Date, a.Time, a.Status, a.Type, a.Notes, a.Fee, a.IsPaid).
			WillReturnRows(appointmentRow(mock, a))

		got, err := repo.CreateAppointment(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation becomes a slot conflict", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		a := testAppointment()

		mock.ExpectQuery("INSERT INTO appointments").
			WithArgs(a.ID, a.PatientID, a.ProviderID, a.SpecializationID, a.ClinicID,
				a.Date, a.Time, a.Status, a.Type, a.Notes, a.Fee, a.IsPaid).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_active_provider_slot"})

		_, err := repo.CreateAppointment(ctx, a)
		assert.ErrorIs(t, err, ErrSlotConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgApplyTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("compare-and-set hits the expected status", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		a := testAppointment()
		updated := *a
		updated.Status = StatusConfirmed

		mock.ExpectQuery("UPDATE appointments").
			WithArgs(a.ID, StatusConfirmed, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), StatusScheduled).
			WillReturnRows(appointmentRow(mock, &updated))

		got, err := repo.ApplyTransition(ctx, a.ID, StatusScheduled, stateChange{status: StatusConfirmed})
		require.NoError(t, err)
		assert.Equal(t, StatusConfirmed, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status moved under us, no row updated", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		a := testAppointment()

		mock.ExpectQuery("UPDATE appointments").
			WithArgs(a.ID, StatusConfirmed, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), StatusScheduled).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.ApplyTransition(ctx, a.ID, StatusScheduled, stateChange{status: StatusConfirmed})
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgHasActiveAppointment(t *testing.T) {
	ctx := context.Background()
	providerID := uuid.New()
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	slot := mustTime("09:30")

	t.Run("taken", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(providerID, date, slot, pgxmock.AnyArg()).
			WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

		taken, err := repo.HasActiveAppointment(ctx, providerID, date, slot, uuid.Nil)
		require.NoError(t, err)
		assert.True(t, taken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("free", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(providerID, date, slot, pgxmock.AnyArg()).
			WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))

		taken, err := repo.HasActiveAppointment(ctx, providerID, date, slot, uuid.New())
		require.NoError(t, err)
		assert.False(t, taken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgDeleteAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := uuid.New()

		mock.ExpectExec("DELETE FROM appointments").
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, repo.DeleteAppointment(ctx, id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := uuid.New()

		mock.ExpectExec("DELETE FROM appointments").
			WithArgs(id).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.DeleteAppointment(ctx, id), ErrAppointmentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgGetProviderByID(t *testing.T) {
	ctx := context.Background()
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("FROM providers").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetProviderByID(ctx, id)
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTemplatesForWeekday(t *testing.T) {
	ctx := context.Background()
	mock, repo := newMockRepo(t)
	providerID := uuid.New()
	now := time.Now()

	rows := mock.NewRows([]string{
		"id", "provider_id", "clinic_id", "day_of_week", "start_time",
		"end_time", "slot_duration", "max_patients", "is_active",
		"created_at", "updated_at",
	}).AddRow(
		uuid.New(), providerID, (*uuid.UUID)(nil), int16(1), mustTime("09:00"),
		mustTime("12:00"), 30, 1, true, now, now,
	)

	mock.ExpectQuery("FROM schedule_templates").
		WithArgs(providerID, int16(time.Monday)).
		WillReturnRows(rows)

	got, err := repo.TemplatesForWeekday(ctx, providerID, time.Monday)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Monday, got[0].Weekday)
	assert.Equal(t, mustTime("09:00"), got[0].StartTime)
	assert.Equal(t, 30, got[0].SlotDuration)
	assert.NoError(t, mock.ExpectationsWereMet())
}
