package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/glamly/appointment_core/internal/model"
	"github.com/glamly/appointment_core/internal/repository"
)

// memStore потокобезопасный дублёр хранилища для тестов: реализует
// репозитории и AllocationStore поверх map с теми же предикатами,
// что и SQL-реализации.
type memStore struct {
	mu sync.Mutex

	slots    map[uuid.UUID]*model.AppointmentSlot
	appts    map[uuid.UUID]*model.Appointment
	services map[uuid.UUID]*model.Service

	holidayNames map[string]map[int64]string
	users        int64
}

func newMemStore() *memStore {
	return &memStore{
		slots:        make(map[uuid.UUID]*model.AppointmentSlot),
		appts:        make(map[uuid.UUID]*model.Appointment),
		services:     make(map[uuid.UUID]*model.Service),
		holidayNames: make(map[string]map[int64]string),
	}
}

func (m *memStore) addService(svc *model.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[svc.ID] = svc
}

func (m *memStore) addSlot(slot *model.AppointmentSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot.ID] = slot
}

func (m *memStore) addAppointment(appt *model.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[appt.ID] = appt
}

func (m *memStore) slot(id uuid.UUID) *model.AppointmentSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memStore) sortedSlots() []*model.AppointmentSlot {
	slots := make([]*model.AppointmentSlot, 0, len(m.slots))
	for _, s := range m.slots {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.StartTime == nil || b.StartTime == nil {
			if a.StartTime == nil && b.StartTime == nil {
				return a.Date.Before(b.Date)
			}
			return b.StartTime != nil
		}
		return a.StartTime.Before(*b.StartTime)
	})
	return slots
}

// --- SlotRepository ---

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*model.AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id], nil
}

func (m *memStore) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AppointmentSlot
	for _, s := range m.sortedSlots() {
		for _, id := range ids {
			if s.ID == id {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (m *memStore) Latest(ctx context.Context) (*model.AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *model.AppointmentSlot
	for _, s := range m.slots {
		if latest == nil {
			latest = s
			continue
		}
		switch {
		case s.EndTime != nil && (latest.EndTime == nil || latest.EndTime.Before(*s.EndTime)):
			latest = s
		case s.EndTime == nil && latest.EndTime == nil && latest.Date.Before(s.Date):
			latest = s
		}
	}
	return latest, nil
}

func (m *memStore) LatestDate(ctx context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *time.Time
	for _, s := range m.slots {
		if latest == nil || latest.Before(s.Date) {
			d := s.Date
			latest = &d
		}
	}
	return latest, nil
}

func (m *memStore) CreateBatch(ctx context.Context, slots []model.AppointmentSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Уникальность start_time/end_time как в схеме БД.
	for i := range slots {
		slot := slots[i]
		for _, existing := range m.slots {
			if slot.StartTime != nil && existing.StartTime != nil && slot.StartTime.Equal(*existing.StartTime) {
				return fmt.Errorf("duplicate start_time %s", slot.StartTime)
			}
			if slot.EndTime != nil && existing.EndTime != nil && slot.EndTime.Equal(*existing.EndTime) {
				return fmt.Errorf("duplicate end_time %s", slot.EndTime)
			}
		}
		m.slots[slot.ID] = &slot
	}
	return nil
}

func (m *memStore) ListByDate(ctx context.Context, date time.Time) ([]*model.AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AppointmentSlot
	for _, s := range m.sortedSlots() {
		if s.Date.Equal(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) ListFromDate(ctx context.Context, from time.Time) ([]*model.AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AppointmentSlot
	for _, s := range m.sortedSlots() {
		if !s.Date.Before(from) {
			out = append(out, s)
		}
	}
	return out, nil
}

func bookable(s *model.AppointmentSlot) bool {
	return s.StartTime != nil && !s.Occupied && !s.Reserved &&
		!s.Holiday && !s.Sunday && !s.BreakTime && !s.TemporaryClosure
}

func (m *memStore) ListBookableBetween(ctx context.Context, from, to time.Time) ([]*model.AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AppointmentSlot
	for _, s := range m.sortedSlots() {
		if !bookable(s) {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func freeFor(s *model.AppointmentSlot, forAppointment *uuid.UUID) bool {
	if s.StartTime == nil || s.Holiday || s.Sunday || s.BreakTime || s.TemporaryClosure || s.Reserved {
		return false
	}
	if !s.Occupied {
		return true
	}
	return forAppointment != nil && s.OccupiedBy != nil && *s.OccupiedBy == *forAppointment
}

func (m *memStore) FreeWindow(ctx context.Context, start, end time.Time, forAppointment *uuid.UUID) ([]*model.AppointmentSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.AppointmentSlot
	for _, s := range m.sortedSlots() {
		if !freeFor(s, forAppointment) {
			continue
		}
		if s.StartTime.Before(start) || !s.StartTime.Before(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// --- AppointmentRepository ---

func (m *memStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appts[id]
	if !ok {
		return nil, nil
	}
	appt.StartSlot = m.slots[appt.StartSlotID]
	appt.EndSlot = m.slots[appt.EndSlotID]
	return appt, nil
}

func (m *memStore) List(ctx context.Context, userID *uuid.UUID, filter repository.AppointmentFilter, now time.Time) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Appointment
	for _, appt := range m.appts {
		if userID != nil && appt.UserID != *userID {
			continue
		}
		end := m.slots[appt.EndSlotID]
		appt.StartSlot = m.slots[appt.StartSlotID]
		appt.EndSlot = end

		archival := end != nil && end.EndTime != nil && end.EndTime.Before(now)
		if filter == repository.FilterUpcoming && archival {
			continue
		}
		if filter == repository.FilterArchival && !archival {
			continue
		}
		out = append(out, appt)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].StartSlot, out[j].StartSlot
		if a == nil || a.StartTime == nil || b == nil || b.StartTime == nil {
			return false
		}
		return a.StartTime.Before(*b.StartTime)
	})
	return out, nil
}

func (m *memStore) Stats(ctx context.Context, now time.Time) (*repository.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &repository.Stats{RegisteredUsers: m.users}
	for _, appt := range m.appts {
		stats.TotalAppointments++
		end := m.slots[appt.EndSlotID]
		if end != nil && end.EndTime != nil && end.EndTime.Before(now) {
			stats.ArchivalAppointments++
		} else {
			stats.UpcomingAppointments++
		}
	}
	return stats, nil
}

// --- ServiceRepository ---

func (m *memStore) GetServiceByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, ok := m.services[id]
	if !ok || svc.Deleted {
		return nil, nil
	}
	return svc, nil
}

func (m *memStore) ListAvailable(ctx context.Context, languageCode string) ([]*model.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Service
	for _, svc := range m.services {
		if svc.Available && !svc.Deleted {
			out = append(out, svc)
		}
	}
	return out, nil
}

func (m *memStore) NameFor(ctx context.Context, serviceID uuid.UUID, languageCode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if svc, ok := m.services[serviceID]; ok {
		return svc.Name, nil
	}
	return "", nil
}

// --- HolidayRepository ---

func (m *memStore) EnsureHolidays(ctx context.Context, names []map[string]string) ([]int64, error) {
	ids := make([]int64, len(names))
	for i := range names {
		ids[i] = int64(i + 1)
	}
	return ids, nil
}

func (m *memStore) NamesByLanguage(ctx context.Context, languageCode string) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holidayNames[languageCode], nil
}

// --- AllocationStore ---

func (m *memStore) BookWindow(ctx context.Context, appt *model.Appointment, slotIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range slotIDs {
		s, ok := m.slots[id]
		if !ok || !freeFor(s, &appt.ID) {
			return repository.ErrWindowConflict
		}
	}

	appt.CreatedAt = time.Now()
	m.appts[appt.ID] = appt
	for _, id := range slotIDs {
		m.slots[id].Occupied = true
		apptID := appt.ID
		m.slots[id].OccupiedBy = &apptID
	}
	return nil
}

func (m *memStore) RescheduleWindow(ctx context.Context, apptID, startSlotID, endSlotID uuid.UUID, slotIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appts[apptID]
	if !ok {
		return fmt.Errorf("appointment %s not found", apptID)
	}

	for _, id := range slotIDs {
		s, ok := m.slots[id]
		if !ok || !freeFor(s, &apptID) {
			return repository.ErrWindowConflict
		}
	}

	m.releaseLocked(apptID)
	for _, id := range slotIDs {
		m.slots[id].Occupied = true
		held := apptID
		m.slots[id].OccupiedBy = &held
	}
	appt.StartSlotID = startSlotID
	appt.EndSlotID = endSlotID
	return nil
}

func (m *memStore) releaseLocked(apptID uuid.UUID) {
	for _, s := range m.slots {
		if s.OccupiedBy != nil && *s.OccupiedBy == apptID {
			s.Occupied = false
			s.OccupiedBy = nil
		}
	}
}

func (m *memStore) CancelAppointment(ctx context.Context, apptID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.appts[apptID]
	if !ok {
		return fmt.Errorf("appointment %s not found", apptID)
	}
	m.releaseLocked(apptID)
	appt.Canceled = true
	return nil
}

func (m *memStore) ReserveSlots(ctx context.Context, ids []uuid.UUID, reason string, notBefore time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ineligible []uuid.UUID
	for _, id := range ids {
		s, ok := m.slots[id]
		if !ok || !bookable(s) || !s.StartTime.After(notBefore) {
			ineligible = append(ineligible, id)
		}
	}
	if len(ineligible) > 0 {
		return ineligible, nil
	}

	for _, id := range ids {
		m.slots[id].Reserved = true
		r := reason
		m.slots[id].ReservedReason = &r
	}
	return nil, nil
}

func (m *memStore) UnreserveSlots(ctx context.Context, ids []uuid.UUID, notBefore time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ineligible []uuid.UUID
	for _, id := range ids {
		s, ok := m.slots[id]
		if !ok || !s.Reserved || s.Occupied || s.StartTime == nil || !s.StartTime.After(notBefore) {
			ineligible = append(ineligible, id)
		}
	}
	if len(ineligible) > 0 {
		return ineligible, nil
	}

	for _, id := range ids {
		m.slots[id].Reserved = false
		m.slots[id].ReservedReason = nil
	}
	return nil, nil
}

func (m *memStore) ReleaseUserAppointments(ctx context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var released int64
	for id, appt := range m.appts {
		if appt.UserID != userID {
			continue
		}
		for _, s := range m.slots {
			if s.OccupiedBy != nil && *s.OccupiedBy == id {
				s.Occupied = false
				s.OccupiedBy = nil
				released++
			}
		}
		delete(m.appts, id)
	}
	return released, nil
}

// apptRepoAdapter подгоняет memStore под AppointmentRepository: имя
// GetByID в memStore уже занято слотами
type apptRepoAdapter struct{ *memStore }

func (a apptRepoAdapter) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return a.GetAppointmentByID(ctx, id)
}

type serviceRepoAdapter struct{ *memStore }

func (a serviceRepoAdapter) GetByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return a.GetServiceByID(ctx, id)
}

// fakeReminders фиксирует вызовы планировщика напоминаний
type fakeReminders struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
	canceled  []uuid.UUID
}

func (f *fakeReminders) ScheduleForAppointment(ctx context.Context, appt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, appt.ID)
	return nil
}

func (f *fakeReminders) CancelForAppointment(ctx context.Context, apptID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, apptID)
}
