package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/glamly/appointment_core/internal/model"
	"github.com/glamly/appointment_core/internal/notify"
)

type fakeUserRepo struct {
	user   *model.User
	tokens []string
	lang   string
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if f.user != nil && f.user.ID == id {
		return f.user, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) ListFcmTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return f.tokens, nil
}

func (f *fakeUserRepo) LanguageCode(ctx context.Context, userID uuid.UUID) (string, error) {
	if f.lang == "" {
		return "en", nil
	}
	return f.lang, nil
}

type sentMessage struct {
	recipients notify.Recipients
	title      string
	body       string
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeDispatcher) Send(ctx context.Context, recipients notify.Recipients, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{recipients: recipients, title: title, body: body})
	return nil
}

func newReminderFixture(t *testing.T, users *fakeUserRepo) (*ReminderService, *memStore, *fakeDispatcher) {
	t.Helper()

	store := newMemStore()
	dispatcher := &fakeDispatcher{}

	s := NewReminderService(
		nil, nil,
		apptRepoAdapter{store},
		users,
		serviceRepoAdapter{store},
		dispatcher,
		zap.NewNop(),
	)
	s.now = func() time.Time { return testNow }

	return s, store, dispatcher
}

func seedReminderAppointment(store *memStore, userID uuid.UUID) *model.Appointment {
	start := testNow.Add(3 * time.Hour)
	end := start.Add(30 * time.Minute)

	apptID := uuid.New()
	slot := &model.AppointmentSlot{
		ID:         uuid.New(),
		Date:       time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:  &start,
		EndTime:    &end,
		Occupied:   true,
		OccupiedBy: &apptID,
	}
	store.addSlot(slot)

	svc := &model.Service{ID: uuid.New(), RequiredSlots: 1, Available: true, Name: "Haircut"}
	store.addService(svc)

	appt := &model.Appointment{
		ID:          apptID,
		ServiceID:   svc.ID,
		UserID:      userID,
		StartSlotID: slot.ID,
		EndSlotID:   slot.ID,
		StartSlot:   slot,
		EndSlot:     slot,
	}
	store.addAppointment(appt)
	return appt
}

// fakeEnqueuer имитирует клиент очереди: повторный TaskID — конфликт
type fakeEnqueuer struct {
	enqueued []string
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	id := taskIDOf(opts)
	for _, seen := range f.enqueued {
		if seen == id {
			return nil, asynq.ErrTaskIDConflict
		}
	}
	f.enqueued = append(f.enqueued, id)
	return &asynq.TaskInfo{ID: id}, nil
}

func taskIDOf(opts []asynq.Option) string {
	for _, opt := range opts {
		if opt.Type() == asynq.TaskIDOpt {
			return opt.Value().(string)
		}
	}
	return ""
}

func TestSchedule_RepeatedCallEnqueuesOnce(t *testing.T) {
	userID := uuid.New()
	users := &fakeUserRepo{user: &model.User{ID: userID}}
	s, store, _ := newReminderFixture(t, users)

	core, logs := observer.New(zap.InfoLevel)
	s.logger = zap.New(core)
	enq := &fakeEnqueuer{}
	s.client = enq

	appt := seedReminderAppointment(store, userID)

	if err := s.ScheduleForAppointment(context.Background(), appt); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	if err := s.ScheduleForAppointment(context.Background(), appt); err != nil {
		t.Fatalf("second schedule: %v", err)
	}

	if len(enq.enqueued) != 2 {
		t.Fatalf("expected 2 enqueued tasks, got %d", len(enq.enqueued))
	}
	if got := logs.FilterMessage("Reminder scheduled").Len(); got != 2 {
		t.Fatalf("expected 2 scheduled log entries, got %d", got)
	}
}

func TestReminderKindOffset(t *testing.T) {
	if KindTwoHours.Offset() != 2*time.Hour {
		t.Fatalf("expected 2h offset, got %s", KindTwoHours.Offset())
	}
	if KindThirtyMinutes.Offset() != 30*time.Minute {
		t.Fatalf("expected 30m offset, got %s", KindThirtyMinutes.Offset())
	}
}

func TestDeliver_SendsNotification(t *testing.T) {
	userID := uuid.New()
	users := &fakeUserRepo{
		user:   &model.User{ID: userID, Email: "user@example.com"},
		tokens: []string{"fcm-token-1"},
	}
	s, store, dispatcher := newReminderFixture(t, users)

	appt := seedReminderAppointment(store, userID)

	err := s.Deliver(context.Background(), ReminderPayload{AppointmentID: appt.ID, Kind: KindTwoHours})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if len(dispatcher.sent) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(dispatcher.sent))
	}

	msg := dispatcher.sent[0]
	if msg.title != "Upcoming appointment" {
		t.Fatalf("unexpected title %q", msg.title)
	}
	if !strings.Contains(msg.body, "Haircut") || !strings.Contains(msg.body, "2 hours") {
		t.Fatalf("unexpected body %q", msg.body)
	}
	if len(msg.recipients.FcmTokens) != 1 || msg.recipients.FcmTokens[0] != "fcm-token-1" {
		t.Fatalf("unexpected fcm recipients %v", msg.recipients.FcmTokens)
	}
	if len(msg.recipients.Emails) != 1 || msg.recipients.Emails[0] != "user@example.com" {
		t.Fatalf("unexpected email recipients %v", msg.recipients.Emails)
	}
}

func TestDeliver_NoEndpointsIsSilent(t *testing.T) {
	userID := uuid.New()
	users := &fakeUserRepo{user: &model.User{ID: userID}}
	s, store, dispatcher := newReminderFixture(t, users)

	appt := seedReminderAppointment(store, userID)

	err := s.Deliver(context.Background(), ReminderPayload{AppointmentID: appt.ID, Kind: KindThirtyMinutes})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected no dispatch, got %d", len(dispatcher.sent))
	}
}

func TestDeliver_CanceledAppointment(t *testing.T) {
	userID := uuid.New()
	users := &fakeUserRepo{
		user:   &model.User{ID: userID, Email: "user@example.com"},
		tokens: []string{"fcm-token-1"},
	}
	s, store, dispatcher := newReminderFixture(t, users)

	appt := seedReminderAppointment(store, userID)
	appt.Canceled = true

	err := s.Deliver(context.Background(), ReminderPayload{AppointmentID: appt.ID, Kind: KindTwoHours})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected no dispatch for canceled appointment")
	}
}

func TestDeliver_MissingAppointment(t *testing.T) {
	users := &fakeUserRepo{}
	s, _, dispatcher := newReminderFixture(t, users)

	err := s.Deliver(context.Background(), ReminderPayload{AppointmentID: uuid.New(), Kind: KindTwoHours})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected no dispatch for missing appointment")
	}
}
