package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/glamly/appointment_core/internal/model"
	"github.com/glamly/appointment_core/internal/notify"
	"github.com/glamly/appointment_core/internal/repository"
)

// TypeAppointmentReminder тип задачи напоминания в очереди
const TypeAppointmentReminder = "reminder:appointment"

// ReminderKind момент срабатывания напоминания относительно начала записи
type ReminderKind string

const (
	KindTwoHours      ReminderKind = "T-120"
	KindThirtyMinutes ReminderKind = "T-30"
)

var reminderKinds = []ReminderKind{KindTwoHours, KindThirtyMinutes}

// Offset интервал до начала записи, за который срабатывает напоминание
func (k ReminderKind) Offset() time.Duration {
	if k == KindTwoHours {
		return 2 * time.Hour
	}
	return 30 * time.Minute
}

// ReminderPayload полезная нагрузка задачи напоминания
type ReminderPayload struct {
	AppointmentID uuid.UUID    `json:"appointment_id"`
	Kind          ReminderKind `json:"kind"`
}

// reminderTaskID структурный ключ задачи (id записи, вид напоминания).
// Единственное место, где ключ собирается в строку.
func reminderTaskID(apptID uuid.UUID, kind ReminderKind) string {
	return fmt.Sprintf("%s:%s:%s", TypeAppointmentReminder, apptID, kind)
}

// taskEnqueuer кладёт задачу в очередь; реализуется *asynq.Client
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReminderService ставит и снимает одноразовые напоминания о записи.
// Постановка идёт через очередь отложенных задач: напоминание переживает
// рестарт процесса и срабатывает вне пути HTTP-запроса.
type ReminderService struct {
	client    taskEnqueuer
	inspector *asynq.Inspector

	apptRepo    repository.AppointmentRepository
	userRepo    repository.UserRepository
	serviceRepo repository.ServiceRepository
	dispatcher  notify.Dispatcher
	logger      *zap.Logger

	now func() time.Time
}

func NewReminderService(
	client *asynq.Client,
	inspector *asynq.Inspector,
	apptRepo repository.AppointmentRepository,
	userRepo repository.UserRepository,
	serviceRepo repository.ServiceRepository,
	dispatcher notify.Dispatcher,
	logger *zap.Logger,
) *ReminderService {
	return &ReminderService{
		client:      client,
		inspector:   inspector,
		apptRepo:    apptRepo,
		userRepo:    userRepo,
		serviceRepo: serviceRepo,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// ScheduleForAppointment ставит напоминания за 2 часа и за 30 минут до
// начала записи. Напоминание с уже прошедшим временем срабатывания
// не ставится.
func (s *ReminderService) ScheduleForAppointment(ctx context.Context, appt *model.Appointment) error {
	if appt.StartSlot == nil || appt.StartSlot.StartTime == nil {
		return fmt.Errorf("appointment %s has no start time", appt.ID)
	}

	start := *appt.StartSlot.StartTime
	now := s.now()

	for _, kind := range reminderKinds {
		fireAt := start.Add(-kind.Offset())
		if !fireAt.After(now) {
			continue
		}

		payload, err := json.Marshal(ReminderPayload{AppointmentID: appt.ID, Kind: kind})
		if err != nil {
			return fmt.Errorf("marshal reminder payload: %w", err)
		}

		task := asynq.NewTask(TypeAppointmentReminder, payload)
		_, err = s.client.EnqueueContext(ctx, task,
			asynq.ProcessAt(fireAt),
			asynq.TaskID(reminderTaskID(appt.ID, kind)),
		)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			// Напоминание уже стоит, например после повторного Book.
			continue
		}
		if err != nil {
			return fmt.Errorf("enqueue reminder: %w", err)
		}

		s.logger.Info("Reminder scheduled",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("kind", string(kind)),
			zap.Time("fire_at", fireAt),
		)
	}

	return nil
}

// CancelForAppointment снимает все напоминания записи. Отсутствие задачи
// не ошибка: напоминание могло уже сработать или не ставиться вовсе.
func (s *ReminderService) CancelForAppointment(ctx context.Context, apptID uuid.UUID) {
	for _, kind := range reminderKinds {
		err := s.inspector.DeleteTask("default", reminderTaskID(apptID, kind))
		if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			s.logger.Warn("Failed to delete reminder task",
				zap.String("appointment_id", apptID.String()),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}
}

// HandleTask адаптер для очереди: декодирует полезную нагрузку задачи
// и доставляет напоминание
func (s *ReminderService) HandleTask(ctx context.Context, task *asynq.Task) error {
	var payload ReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal reminder payload: %w", err)
	}
	return s.Deliver(ctx, payload)
}

// Deliver срабатывание напоминания: загружает запись, пользователя и
// локализованное имя услуги и отправляет уведомление. Пользователь без
// каналов доставки — тихий no-op.
func (s *ReminderService) Deliver(ctx context.Context, payload ReminderPayload) error {
	appt, err := s.apptRepo.GetByID(ctx, payload.AppointmentID)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}
	if appt == nil || appt.Canceled {
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, appt.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil
	}

	tokens, err := s.userRepo.ListFcmTokens(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load fcm tokens: %w", err)
	}

	recipients := notify.Recipients{FcmTokens: tokens}
	if user.Email != "" {
		recipients.Emails = []string{user.Email}
	}
	if len(recipients.FcmTokens) == 0 && len(recipients.Emails) == 0 {
		return nil
	}

	lang, err := s.userRepo.LanguageCode(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load user language: %w", err)
	}

	serviceName, err := s.serviceRepo.NameFor(ctx, appt.ServiceID, lang)
	if err != nil {
		return fmt.Errorf("load service name: %w", err)
	}

	body := s.reminderBody(appt, serviceName, payload.Kind)
	if err := s.dispatcher.Send(ctx, recipients, "Upcoming appointment", body); err != nil {
		return fmt.Errorf("dispatch reminder: %w", err)
	}

	s.logger.Info("Reminder delivered",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("kind", string(payload.Kind)),
	)

	return nil
}

func (s *ReminderService) reminderBody(appt *model.Appointment, serviceName string, kind ReminderKind) string {
	in := "2 hours"
	if kind == KindThirtyMinutes {
		in = "30 minutes"
	}

	when := ""
	if appt.StartSlot != nil && appt.StartSlot.StartTime != nil {
		when = appt.StartSlot.StartTime.Format("15:04")
	}

	if serviceName == "" {
		return fmt.Sprintf("Your appointment starts in %s, at %s.", in, when)
	}
	return fmt.Sprintf("Your appointment for %s starts in %s, at %s.", serviceName, in, when)
}
