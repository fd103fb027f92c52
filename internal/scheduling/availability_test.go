package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday is a Monday; availability scenarios anchor on it.
var monday = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func availabilityFixture(t *testing.T) (*memRepo, *AvailabilityCalculator, uuid.UUID) {
	t.Helper()
	repo := newMemRepo()
	providerID := repo.addProvider(decimal.NewFromInt(150))
	return repo, NewAvailabilityCalculator(repo), providerID
}

func slotTimes(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time.String())
	}
	return out
}

func TestAvailableSlots(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, time.Monday, monday.Weekday())

	morning := func(providerID uuid.UUID, maxPatients int) ScheduleTemplate {
		return ScheduleTemplate{
			ProviderID:   providerID,
			Weekday:      time.Monday,
			StartTime:    mustTime("09:00"),
			EndTime:      mustTime("12:00"),
			SlotDuration: 30,
			MaxPatients:  maxPatients,
			Active:       true,
		}
	}

	t.Run("morning window yields six half-hour slots", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 1))

		slots, err := calc.SlotList(ctx, providerID, monday)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, slotTimes(slots))
		for _, s := range slots {
			assert.Equal(t, 1, s.Remaining)
			assert.True(t, s.Date.Equal(monday))
		}
	})

	t.Run("booked slot disappears", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 1))

		patientID := repo.addPatient()
		_, err := repo.CreateAppointment(ctx, &Appointment{
			ID:         uuid.New(),
			PatientID:  patientID,
			ProviderID: providerID,
			Date:       monday,
			Time:       mustTime("10:00"),
			Status:     StatusScheduled,
			Type:       TypeConsultation,
		})
		require.NoError(t, err)

		slots, err := calc.SlotList(ctx, providerID, monday)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, slotTimes(slots))
	})

	t.Run("cancelled booking frees the slot", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 1))

		appt := &Appointment{
			ID:         uuid.New(),
			PatientID:  repo.addPatient(),
			ProviderID: providerID,
			Date:       monday,
			Time:       mustTime("10:00"),
			Status:     StatusCancelled,
			Type:       TypeConsultation,
		}
		_, err := repo.CreateAppointment(ctx, appt)
		require.NoError(t, err)

		slots, err := calc.SlotList(ctx, providerID, monday)
		require.NoError(t, err)
		assert.Contains(t, slotTimes(slots), "10:00")
	})

	t.Run("capacity above one decrements remaining", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 3))

		_, err := repo.CreateAppointment(ctx, &Appointment{
			ID:         uuid.New(),
			PatientID:  repo.addPatient(),
			ProviderID: providerID,
			Date:       monday,
			Time:       mustTime("09:00"),
			Status:     StatusConfirmed,
			Type:       TypeConsultation,
		})
		require.NoError(t, err)

		slots, err := calc.SlotList(ctx, providerID, monday)
		require.NoError(t, err)
		require.NotEmpty(t, slots)
		assert.Equal(t, "09:00", slots[0].Time.String())
		assert.Equal(t, 2, slots[0].Remaining)
		assert.Equal(t, 3, slots[1].Remaining)
	})

	t.Run("two windows concatenate in order", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 1))
		repo.addTemplate(ScheduleTemplate{
			ProviderID:   providerID,
			Weekday:      time.Monday,
			StartTime:    mustTime("14:00"),
			EndTime:      mustTime("15:00"),
			SlotDuration: 30,
			MaxPatients:  1,
			Active:       true,
		})

		slots, err := calc.SlotList(ctx, providerID, monday)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "14:00", "14:30"}, slotTimes(slots))
	})

	t.Run("partial trailing slot is dropped", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(ScheduleTemplate{
			ProviderID:   providerID,
			Weekday:      time.Monday,
			StartTime:    mustTime("09:00"),
			EndTime:      mustTime("10:15"),
			SlotDuration: 30,
			MaxPatients:  1,
			Active:       true,
		})

		slots, err := calc.SlotList(ctx, providerID, monday)
		require.NoError(t, err)
		// 10:00 would run past the 10:15 end of the window.
		assert.Equal(t, []string{"09:00", "09:30"}, slotTimes(slots))
	})

	t.Run("no template for the weekday yields empty, not error", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 1))

		tuesday := monday.AddDate(0, 0, 1)
		slots, err := calc.SlotList(ctx, providerID, tuesday)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("inactive template is ignored", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		tpl := morning(providerID, 1)
		tpl.Active = false
		repo.addTemplate(tpl)

		slots, err := calc.SlotList(ctx, providerID, monday)
		require.NoError(t, err)
		assert.Empty(t, slots)
	})

	t.Run("sequence is restartable", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 1))

		seq, err := calc.AvailableSlots(ctx, providerID, monday)
		require.NoError(t, err)

		count := func() int {
			n := 0
			for range seq {
				n++
			}
			return n
		}
		assert.Equal(t, 6, count())
		assert.Equal(t, 6, count(), "ranging the sequence twice replays the same slots")
	})

	t.Run("early break stops the sequence", func(t *testing.T) {
		repo, calc, providerID := availabilityFixture(t)
		repo.addTemplate(morning(providerID, 1))

		seq, err := calc.AvailableSlots(ctx, providerID, monday)
		require.NoError(t, err)

		var first *Slot
		for s := range seq {
			first = &s
			break
		}
		require.NotNil(t, first)
		assert.Equal(t, "09:00", first.Time.String())
	})

	t.Run("nil provider id is a validation error", func(t *testing.T) {
		_, calc, _ := availabilityFixture(t)
		_, err := calc.AvailableSlots(ctx, uuid.Nil, monday)
		assert.ErrorIs(t, err, ErrValidation)
	})
}
