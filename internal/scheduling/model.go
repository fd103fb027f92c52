package scheduling

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Active reports whether the status participates in slot conflict checks.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Terminal reports whether no further transitions are allowed from this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow_up"
	TypeEmergency    AppointmentType = "emergency"
	TypeSurgery      AppointmentType = "surgery"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency, TypeSurgery:
		return true
	}
	return false
}

// TimeOfDay is a clinic-local clock time with minute precision.
// The zero value is midnight.
type TimeOfDay struct {
	minutes int
}

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day out of range: %02d:%02d", hour, minute)
	}
	return TimeOfDay{minutes: hour*60 + minute}, nil
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS"; seconds are discarded.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &hour, &minute, &sec); err != nil {
		if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
			return TimeOfDay{}, fmt.Errorf("parse time of day %q: want HH:MM", s)
		}
	}
	return NewTimeOfDay(hour, minute)
}

func (t TimeOfDay) Hour() int   { return t.minutes / 60 }
func (t TimeOfDay) Minute() int { return t.minutes % 60 }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.minutes < o.minutes }

// Add returns the time of day m minutes later. It does not wrap past
// midnight; callers stepping through a schedule window stay inside one day.
func (t TimeOfDay) Add(m int) TimeOfDay {
	return TimeOfDay{minutes: t.minutes + m}
}

// Sub returns the difference t - o in minutes.
func (t TimeOfDay) Sub(o TimeOfDay) int { return t.minutes - o.minutes }

// On anchors the time of day onto a calendar date, in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location())
}

// Scan implements sql.Scanner so TimeOfDay can be read from a Postgres
// time column rendered as text.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		return t.Scan(string(v))
	}
	return fmt.Errorf("cannot scan %T into TimeOfDay", src)
}

// Value implements driver.Valuer; Postgres casts the text to time.
func (t TimeOfDay) Value() (driver.Value, error) {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute()), nil
}

// DateOnly truncates a timestamp to its calendar date at midnight,
// keeping the location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type Provider struct {
	ID              uuid.UUID
	Name            string
	Specialty       *string
	ConsultationFee decimal.Decimal
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleTemplate is one recurring weekly availability window for a
// provider. Templates are administered outside this service and read-only
// here.
type ScheduleTemplate struct {
	ID           uuid.UUID
	ProviderID   uuid.UUID
	ClinicID     *uuid.UUID
	Weekday      time.Weekday
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	SlotDuration int // minutes
	MaxPatients  int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Slot is a derived bookable unit. It is computed on every availability
// query and never persisted.
type Slot struct {
	Date      time.Time
	Time      TimeOfDay
	Remaining int
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	ProviderID         uuid.UUID
	SpecializationID   uuid.UUID
	ClinicID           *uuid.UUID
	Date               time.Time
	Time               TimeOfDay
	Status             Status
	Type               AppointmentType
	Notes              *string
	CancellationReason *string
	Fee                decimal.Decimal
	IsPaid             bool
	CheckedInAt        *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StartAt is the full timestamp of the appointment's slot.
func (a *Appointment) StartAt() time.Time {
	return a.Time.On(a.Date)
}

// DailyStatistics groups one day's appointments by outcome. Pending counts
// the active statuses (scheduled and confirmed).
type DailyStatistics struct {
	Date      time.Time
	Total     int
	Completed int
	Cancelled int
	Pending   int
}

// DayCount is one day's appointment total inside a weekly rollup.
type DayCount struct {
	Date  time.Time
	Count int
}
