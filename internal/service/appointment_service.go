package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glamly/appointment_core/internal/apperrors"
	"github.com/glamly/appointment_core/internal/model"
	"github.com/glamly/appointment_core/internal/repository"
)

// ReminderScheduler ставит и снимает напоминания о записи
type ReminderScheduler interface {
	ScheduleForAppointment(ctx context.Context, appt *model.Appointment) error
	CancelForAppointment(ctx context.Context, apptID uuid.UUID)
}

// SlotWindow окно из подряд идущих свободных слотов под одну запись
type SlotWindow struct {
	Slots []*model.AppointmentSlot
	Start time.Time
	End   time.Time
}

// AppointmentView запись с вычисляемым признаком архивности
type AppointmentView struct {
	*model.Appointment
	Archival bool
}

// AppointmentService запись на услуги: поиск окон, создание, перенос и
// отмена записей, административное резервирование слотов
type AppointmentService struct {
	slotRepo    repository.SlotRepository
	apptRepo    repository.AppointmentRepository
	serviceRepo repository.ServiceRepository
	holidayRepo repository.HolidayRepository
	alloc       repository.AllocationStore
	reminders   ReminderScheduler
	logger      *zap.Logger

	slotDuration time.Duration
	leadTime     time.Duration
	maxFuture    time.Duration
	loc          *time.Location

	now func() time.Time
}

func NewAppointmentService(
	slotRepo repository.SlotRepository,
	apptRepo repository.AppointmentRepository,
	serviceRepo repository.ServiceRepository,
	holidayRepo repository.HolidayRepository,
	alloc repository.AllocationStore,
	reminders ReminderScheduler,
	logger *zap.Logger,
	slotDurationMinutes, leadTimeMinutes, maxFutureDays int,
	loc *time.Location,
) *AppointmentService {
	return &AppointmentService{
		slotRepo:     slotRepo,
		apptRepo:     apptRepo,
		serviceRepo:  serviceRepo,
		holidayRepo:  holidayRepo,
		alloc:        alloc,
		reminders:    reminders,
		logger:       logger,
		slotDuration: time.Duration(slotDurationMinutes) * time.Minute,
		leadTime:     time.Duration(leadTimeMinutes) * time.Minute,
		maxFuture:    time.Duration(maxFutureDays) * 24 * time.Hour,
		loc:          loc,
		now:          time.Now,
	}
}

// FindNearest ищет до limit ближайших окон из required_slots подряд
// идущих свободных слотов в пределах горизонта записи
func (s *AppointmentService) FindNearest(ctx context.Context, serviceID uuid.UUID, limit int) ([]SlotWindow, error) {
	svc, err := s.serviceRepo.GetByID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil {
		return nil, &apperrors.NotFoundError{Resource: "service", ID: serviceID}
	}

	now := s.now()
	from := now.Add(s.leadTime)
	to := now.Add(s.maxFuture)

	slots, err := s.slotRepo.ListBookableBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookable slots: %w", err)
	}

	var windows []SlotWindow
	for i := 0; i+svc.RequiredSlots <= len(slots) && len(windows) < limit; i++ {
		run := slots[i : i+svc.RequiredSlots]
		if !contiguous(run) {
			continue
		}
		windows = append(windows, SlotWindow{
			Slots: run,
			Start: *run[0].StartTime,
			End:   *run[len(run)-1].EndTime,
		})
	}

	return windows, nil
}

// contiguous проверяет, что каждый следующий слот начинается ровно там,
// где закончился предыдущий
func contiguous(run []*model.AppointmentSlot) bool {
	for i := 1; i < len(run); i++ {
		if !run[i].StartTime.Equal(*run[i-1].EndTime) {
			return false
		}
	}
	return true
}

// Book создаёт запись на услугу начиная с указанного слота. Проверка
// свободности и захват окна атомарны: при гонке за слоты одна из
// конкурирующих записей получит InsufficientAvailability.
func (s *AppointmentService) Book(ctx context.Context, serviceID, firstSlotID, userID uuid.UUID) (*model.Appointment, error) {
	svc, err := s.serviceRepo.GetByID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil {
		return nil, &apperrors.NotFoundError{Resource: "service", ID: serviceID}
	}

	window, err := s.bookableWindow(ctx, firstSlotID, svc.RequiredSlots, nil)
	if err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		ID:          uuid.New(),
		ServiceID:   serviceID,
		UserID:      userID,
		StartSlotID: window[0].ID,
		EndSlotID:   window[len(window)-1].ID,
	}

	if err := s.alloc.BookWindow(ctx, appt, slotIDs(window)); err != nil {
		if errors.Is(err, repository.ErrWindowConflict) {
			return nil, &apperrors.InsufficientAvailabilityError{
				FirstSlotID:   firstSlotID,
				RequiredSlots: svc.RequiredSlots,
			}
		}
		return nil, fmt.Errorf("book window: %w", err)
	}

	appt.StartSlot = window[0]
	appt.EndSlot = window[len(window)-1]

	if err := s.reminders.ScheduleForAppointment(ctx, appt); err != nil {
		s.logger.Warn("Failed to schedule reminders",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Appointment booked",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Time("start_time", *appt.StartSlot.StartTime),
		zap.Int("slots", len(window)),
	)

	return appt, nil
}

// Reschedule переносит запись на новое окно. Слоты, занятые самой
// записью, считаются свободными, поэтому окна могут пересекаться.
func (s *AppointmentService) Reschedule(ctx context.Context, apptID, newFirstSlotID uuid.UUID) (*model.Appointment, error) {
	appt, err := s.apptRepo.GetByID(ctx, apptID)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return nil, &apperrors.NotFoundError{Resource: "appointment", ID: apptID}
	}
	if appt.Canceled {
		return nil, fmt.Errorf("appointment %s is canceled", apptID)
	}
	if appt.Archival(s.now()) {
		return nil, &apperrors.ArchivalEditError{AppointmentID: apptID}
	}

	svc, err := s.serviceRepo.GetByID(ctx, appt.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	if svc == nil {
		return nil, &apperrors.NotFoundError{Resource: "service", ID: appt.ServiceID}
	}

	window, err := s.bookableWindow(ctx, newFirstSlotID, svc.RequiredSlots, &appt.ID)
	if err != nil {
		return nil, err
	}

	err = s.alloc.RescheduleWindow(ctx, appt.ID, window[0].ID, window[len(window)-1].ID, slotIDs(window))
	if err != nil {
		if errors.Is(err, repository.ErrWindowConflict) {
			return nil, &apperrors.InsufficientAvailabilityError{
				FirstSlotID:   newFirstSlotID,
				RequiredSlots: svc.RequiredSlots,
			}
		}
		return nil, fmt.Errorf("reschedule window: %w", err)
	}

	appt.StartSlotID = window[0].ID
	appt.EndSlotID = window[len(window)-1].ID
	appt.StartSlot = window[0]
	appt.EndSlot = window[len(window)-1]

	s.reminders.CancelForAppointment(ctx, appt.ID)
	if err := s.reminders.ScheduleForAppointment(ctx, appt); err != nil {
		s.logger.Warn("Failed to reschedule reminders",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Appointment rescheduled",
		zap.String("appointment_id", appt.ID.String()),
		zap.Time("start_time", *appt.StartSlot.StartTime),
	)

	return appt, nil
}

// Cancel отменяет запись и освобождает её слоты. Повторная отмена
// уже отменённой записи — no-op.
func (s *AppointmentService) Cancel(ctx context.Context, apptID uuid.UUID) error {
	appt, err := s.apptRepo.GetByID(ctx, apptID)
	if err != nil {
		return fmt.Errorf("get appointment: %w", err)
	}
	if appt == nil {
		return &apperrors.NotFoundError{Resource: "appointment", ID: apptID}
	}
	if appt.Canceled {
		return nil
	}
	if appt.Archival(s.now()) {
		return &apperrors.ArchivalEditError{AppointmentID: apptID}
	}

	if err := s.alloc.CancelAppointment(ctx, apptID); err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	s.reminders.CancelForAppointment(ctx, apptID)

	s.logger.Info("Appointment canceled",
		zap.String("appointment_id", apptID.String()),
	)

	return nil
}

// Reserve резервирует пакет слотов целиком либо не трогает ни одного,
// возвращая точный список непригодных слотов
func (s *AppointmentService) Reserve(ctx context.Context, slotIDs []uuid.UUID, reason string) error {
	if len(slotIDs) == 0 {
		return nil
	}

	ineligible, err := s.alloc.ReserveSlots(ctx, slotIDs, reason, s.now())
	if err != nil {
		return fmt.Errorf("reserve slots: %w", err)
	}
	if len(ineligible) > 0 {
		return &apperrors.IneligibleSlotsError{SlotIDs: ineligible}
	}

	s.logger.Info("Slots reserved",
		zap.Int("slots", len(slotIDs)),
		zap.String("reason", reason),
	)

	return nil
}

// Unreserve снимает резерв с пакета слотов целиком либо ни с одного
func (s *AppointmentService) Unreserve(ctx context.Context, slotIDs []uuid.UUID) error {
	if len(slotIDs) == 0 {
		return nil
	}

	ineligible, err := s.alloc.UnreserveSlots(ctx, slotIDs, s.now())
	if err != nil {
		return fmt.Errorf("unreserve slots: %w", err)
	}
	if len(ineligible) > 0 {
		return &apperrors.IneligibleSlotsError{SlotIDs: ineligible}
	}

	s.logger.Info("Slots unreserved", zap.Int("slots", len(slotIDs)))

	return nil
}

// ListSlots возвращает слоты на дату (или все будущие, если дата не
// задана) с именами праздников на языке пользователя
func (s *AppointmentService) ListSlots(ctx context.Context, date *time.Time, languageCode string) ([]*model.AppointmentSlot, error) {
	var (
		slots []*model.AppointmentSlot
		err   error
	)

	if date != nil {
		slots, err = s.slotRepo.ListByDate(ctx, *date)
	} else {
		now := s.now().In(s.loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
		slots, err = s.slotRepo.ListFromDate(ctx, today)
	}
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	names, err := s.holidayRepo.NamesByLanguage(ctx, languageCode)
	if err != nil {
		return nil, fmt.Errorf("resolve holiday names: %w", err)
	}

	for _, slot := range slots {
		if slot.HolidayID == nil {
			continue
		}
		if name, ok := names[*slot.HolidayID]; ok {
			slot.HolidayName = &name
		}
	}

	return slots, nil
}

// ListAppointments возвращает записи пользователя (или все) с признаком
// архивности, вычисленным на момент чтения
func (s *AppointmentService) ListAppointments(ctx context.Context, userID *uuid.UUID, filter repository.AppointmentFilter) ([]*AppointmentView, error) {
	now := s.now()

	appts, err := s.apptRepo.List(ctx, userID, filter, now)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	views := make([]*AppointmentView, 0, len(appts))
	for _, appt := range appts {
		views = append(views, &AppointmentView{
			Appointment: appt,
			Archival:    appt.Archival(now),
		})
	}

	return views, nil
}

// Stats агрегаты для административной панели
func (s *AppointmentService) Stats(ctx context.Context) (*repository.Stats, error) {
	return s.apptRepo.Stats(ctx, s.now())
}

// ReleaseUserAppointments удаляет все записи пользователя, освобождая
// их слоты и снимая напоминания. Каскад при удалении аккаунта.
func (s *AppointmentService) ReleaseUserAppointments(ctx context.Context, userID uuid.UUID) (int64, error) {
	appts, err := s.apptRepo.List(ctx, &userID, repository.FilterAll, s.now())
	if err != nil {
		return 0, fmt.Errorf("list user appointments: %w", err)
	}

	for _, appt := range appts {
		s.reminders.CancelForAppointment(ctx, appt.ID)
	}

	released, err := s.alloc.ReleaseUserAppointments(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("release user appointments: %w", err)
	}

	s.logger.Info("User appointments released",
		zap.String("user_id", userID.String()),
		zap.Int64("released_slots", released),
	)

	return released, nil
}

// bookableWindow проверяет горизонт записи и возвращает окно из
// required подряд идущих свободных слотов начиная с firstSlotID
func (s *AppointmentService) bookableWindow(ctx context.Context, firstSlotID uuid.UUID, required int, forAppointment *uuid.UUID) ([]*model.AppointmentSlot, error) {
	firstSlot, err := s.slotRepo.GetByID(ctx, firstSlotID)
	if err != nil {
		return nil, fmt.Errorf("get first slot: %w", err)
	}
	if firstSlot == nil {
		return nil, &apperrors.NotFoundError{Resource: "slot", ID: firstSlotID}
	}
	if firstSlot.IsMarker() {
		return nil, &apperrors.IneligibleSlotsError{SlotIDs: []uuid.UUID{firstSlotID}}
	}

	now := s.now()
	start := *firstSlot.StartTime

	if start.Before(now.Add(s.leadTime)) {
		return nil, &apperrors.OutOfHorizonError{SlotID: firstSlotID, Reason: "earlier than lead time"}
	}
	if start.After(now.Add(s.maxFuture)) {
		return nil, &apperrors.OutOfHorizonError{SlotID: firstSlotID, Reason: "beyond max booking horizon"}
	}

	end := start.Add(time.Duration(required) * s.slotDuration)

	window, err := s.slotRepo.FreeWindow(ctx, start, end, forAppointment)
	if err != nil {
		return nil, fmt.Errorf("get free window: %w", err)
	}

	if len(window) != required || !contiguous(window) {
		return nil, &apperrors.InsufficientAvailabilityError{
			FirstSlotID:   firstSlotID,
			RequiredSlots: required,
		}
	}

	return window, nil
}

func slotIDs(slots []*model.AppointmentSlot) []uuid.UUID {
	ids := make([]uuid.UUID, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
	}
	return ids
}
