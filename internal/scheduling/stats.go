package scheduling

import (
	"context"
	"fmt"
	"time"
)

// StatsAggregator derives dashboard counts from appointment records.
// Reads go straight to the repository, so writes from the lifecycle manager
// are visible immediately.
type StatsAggregator struct {
	repo Repository
}

func NewStatsAggregator(repo Repository) *StatsAggregator {
	return &StatsAggregator{repo: repo}
}

func (s *StatsAggregator) DailyStatistics(ctx context.Context, date time.Time) (DailyStatistics, error) {
	day := DateOnly(date)

	counts, err := s.repo.CountByStatusForDate(ctx, day)
	if err != nil {
		return DailyStatistics{}, fmt.Errorf("count appointments for %s: %w", day.Format("2006-01-02"), err)
	}

	stats := DailyStatistics{Date: day}
	for status, n := range counts {
		stats.Total += n
		switch {
		case status == StatusCompleted:
			stats.Completed += n
		case status == StatusCancelled:
			stats.Cancelled += n
		case status.Active():
			stats.Pending += n
		}
	}

	return stats, nil
}

// WeeklyStatistics returns per-day totals for the seven days starting at
// weekOf's date.
func (s *StatsAggregator) WeeklyStatistics(ctx context.Context, weekOf time.Time) ([]DayCount, error) {
	from := DateOnly(weekOf)
	to := from.AddDate(0, 0, 7)

	counts, err := s.repo.CountPerDay(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("count appointments per day: %w", err)
	}

	byDate := make(map[string]int, len(counts))
	for _, dc := range counts {
		byDate[dc.Date.Format("2006-01-02")] = dc.Count
	}

	week := make([]DayCount, 0, 7)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		week = append(week, DayCount{Date: d, Count: byDate[d.Format("2006-01-02")]})
	}
	return week, nil
}
