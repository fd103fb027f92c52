package scheduling

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
)

// AvailabilityCalculator derives open slots from the recurring weekly
// templates and the day's active bookings. Pure read; it never mutates
// appointments or templates.
type AvailabilityCalculator struct {
	repo Repository
}

func NewAvailabilityCalculator(repo Repository) *AvailabilityCalculator {
	return &AvailabilityCalculator{repo: repo}
}

// AvailableSlots returns the provider's open slots on a date, ordered by
// time ascending. The sequence is restartable: both repository reads happen
// up front and ranging it again replays the same slots. A provider with no
// template for that weekday yields an empty sequence, not an error.
func (c *AvailabilityCalculator) AvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) (iter.Seq[Slot], error) {
	if providerID == uuid.Nil {
		return nil, validationErr("provider_id is required")
	}

	day := DateOnly(date)

	templates, err := c.repo.TemplatesForWeekday(ctx, providerID, day.Weekday())
	if err != nil {
		return nil, fmt.Errorf("load schedule templates: %w", err)
	}

	booked := map[TimeOfDay]int{}
	if len(templates) > 0 {
		booked, err = c.repo.ActiveCountsByTime(ctx, providerID, day)
		if err != nil {
			return nil, fmt.Errorf("count booked slots: %w", err)
		}
	}

	return func(yield func(Slot) bool) {
		for _, tpl := range templates {
			step := tpl.SlotDuration
			if step <= 0 {
				continue
			}
			// The last slot must fit entirely inside the window.
			for t := tpl.StartTime; t.Add(step).Sub(tpl.EndTime) <= 0; t = t.Add(step) {
				remaining := tpl.MaxPatients - booked[t]
				if remaining <= 0 {
					continue
				}
				if !yield(Slot{Date: day, Time: t, Remaining: remaining}) {
					return
				}
			}
		}
	}, nil
}

// SlotList collects AvailableSlots into a slice for transport layers.
func (c *AvailabilityCalculator) SlotList(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Slot, error) {
	seq, err := c.AvailableSlots(ctx, providerID, date)
	if err != nil {
		return nil, err
	}

	slots := []Slot{}
	for slot := range seq {
		slots = append(slots, slot)
	}
	return slots, nil
}
