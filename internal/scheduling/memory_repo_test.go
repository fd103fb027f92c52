package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// memRepo is an in-memory Repository. Like the real partial unique index,
// it rejects an active duplicate atomically under its mutex, which lets the
// concurrency tests race real goroutines against it.
type memRepo struct {
	mu           sync.Mutex
	providers    map[uuid.UUID]*Provider
	patients     map[uuid.UUID]*Patient
	templates    []ScheduleTemplate
	appointments map[uuid.UUID]*Appointment

	failCreate error // when set, CreateAppointment returns it
}

func newMemRepo() *memRepo {
	return &memRepo{
		providers:    make(map[uuid.UUID]*Provider),
		patients:     make(map[uuid.UUID]*Patient),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) addProvider(fee decimal.Decimal) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.providers[id] = &Provider{ID: id, Name: "Dr. Test", ConsultationFee: fee, Active: true}
	return id
}

func (m *memRepo) addPatient() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.patients[id] = &Patient{ID: id, Name: "Pat Test"}
	return id
}

func (m *memRepo) addTemplate(t ScheduleTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.templates = append(m.templates, t)
}

func (m *memRepo) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) TemplatesForWeekday(_ context.Context, providerID uuid.UUID, day time.Weekday) ([]ScheduleTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []ScheduleTemplate
	for _, t := range m.templates {
		if t.ProviderID == providerID && t.Weekday == day && t.Active {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) hasActiveLocked(providerID uuid.UUID, date time.Time, t TimeOfDay, excludeID uuid.UUID) bool {
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Time == t &&
			a.Status.Active() && a.ID != excludeID {
			return true
		}
	}
	return false
}

func (m *memRepo) HasActiveAppointment(_ context.Context, providerID uuid.UUID, date time.Time, t TimeOfDay, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasActiveLocked(providerID, date, t, excludeID), nil
}

func (m *memRepo) ActiveCountsByTime(_ context.Context, providerID uuid.UUID, date time.Time) (map[TimeOfDay]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[TimeOfDay]int)
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Status.Active() {
			counts[a.Time]++
		}
	}
	return counts, nil
}

func (m *memRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	if a.Status.Active() && m.hasActiveLocked(a.ProviderID, a.Date, a.Time, a.ID) {
		return nil, ErrSlotConflict
	}
	cp := *a
	now := time.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	m.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memRepo) UpdateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.appointments[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if existing.Status.Active() && m.hasActiveLocked(a.ProviderID, a.Date, a.Time, a.ID) {
		return nil, ErrSlotConflict
	}
	cp := *a
	cp.Status = existing.Status
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	m.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memRepo) ApplyTransition(_ context.Context, id uuid.UUID, expected Status, change stateChange) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status != expected {
		return nil, ErrAppointmentNotFound
	}
	a.Status = change.status
	if change.checkedInAt != nil {
		a.CheckedInAt = change.checkedInAt
	}
	if change.completedAt != nil {
		a.CompletedAt = change.completedAt
	}
	if change.cancellationReason != nil {
		a.CancellationReason = change.cancellationReason
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *memRepo) ListByDate(_ context.Context, date time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.Date.Equal(date) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) ListUpcomingForProvider(_ context.Context, providerID uuid.UUID, from time.Time, days int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	to := from.AddDate(0, 0, days)
	var result []Appointment
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.Status == StatusScheduled &&
			!a.Date.Before(from) && a.Date.Before(to) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) ListStaleActive(_ context.Context, before time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Appointment
	for _, a := range m.appointments {
		if a.Status.Active() && a.StartAt().Before(before) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) CountByStatusForDate(_ context.Context, date time.Time) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[Status]int)
	for _, a := range m.appointments {
		if a.Date.Equal(date) {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (m *memRepo) CountPerDay(_ context.Context, from, to time.Time) ([]DayCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate := make(map[string]int)
	for _, a := range m.appointments {
		if !a.Date.Before(from) && a.Date.Before(to) {
			byDate[a.Date.Format("2006-01-02")]++
		}
	}
	var result []DayCount
	for d, n := range byDate {
		date, _ := time.ParseInLocation("2006-01-02", d, from.Location())
		result = append(result, DayCount{Date: date, Count: n})
	}
	return result, nil
}

// noopLocker runs the critical section without any distributed lock, so
// tests exercise the repository-level uniqueness guarantee directly.
type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type fakeBilling struct {
	mu       sync.Mutex
	requests []OpenInvoiceRequest
	err      error
}

func (b *fakeBilling) OpenInvoice(_ context.Context, req OpenInvoiceRequest) (uuid.UUID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return uuid.Nil, b.err
	}
	b.requests = append(b.requests, req)
	return uuid.New(), nil
}

func (b *fakeBilling) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func newTestService(repo *memRepo, clock Clock, bill *fakeBilling) *Service {
	return NewService(repo, noopLocker{}, bill, clock, zerolog.Nop())
}

func mustTime(t string) TimeOfDay {
	tod, err := ParseTimeOfDay(t)
	if err != nil {
		panic(err)
	}
	return tod
}
