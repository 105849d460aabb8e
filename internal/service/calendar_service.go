package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/glamly/appointment_core/internal/calendar"
	"github.com/glamly/appointment_core/internal/repository"
)

// CalendarService наращивает таймлайн слотов вперёд. Генерация
// идемпотентна: возобновляется с последнего существующего слота, а
// уникальность start_time/end_time в БД отсекает дубли при гонке.
type CalendarService struct {
	generator *calendar.Generator
	slotRepo  repository.SlotRepository
	logger    *zap.Logger

	now func() time.Time
}

func NewCalendarService(
	generator *calendar.Generator,
	slotRepo repository.SlotRepository,
	logger *zap.Logger,
) *CalendarService {
	return &CalendarService{
		generator: generator,
		slotRepo:  slotRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureGenerated стартовая проверка: таймлайн должен покрывать горизонт
// до первого обслуженного запроса
func (s *CalendarService) EnsureGenerated(ctx context.Context) error {
	s.logger.Info("Checking slot timeline coverage")
	return s.Extend(ctx)
}

// Extend догенерирует слоты до горизонта «сегодня + год». Если горизонт
// уже покрыт, ничего не делает.
func (s *CalendarService) Extend(ctx context.Context) error {
	now := s.now()
	until := s.generator.HorizonEnd(now)

	from, err := s.resumePoint(ctx, now)
	if err != nil {
		return err
	}

	if !from.Before(until) {
		s.logger.Debug("Slot timeline already covers the horizon",
			zap.Time("horizon_end", until),
		)
		return nil
	}

	slots := s.generator.Generate(from, until)
	if len(slots) == 0 {
		return nil
	}

	if err := s.slotRepo.CreateBatch(ctx, slots); err != nil {
		return fmt.Errorf("store generated slots: %w", err)
	}

	s.logger.Info("Slot timeline extended",
		zap.Time("from", from),
		zap.Time("until", until),
		zap.Int("slots", len(slots)),
	)

	return nil
}

// resumePoint выбирает точку возобновления генерации: конец последнего
// слота, следующий день после маркера, либо ближайшая граница сетки,
// если слотов ещё нет. Маркерные слоты не имеют end_time, поэтому
// последняя дата таймлайна сверяется отдельно: маркер может лежать
// позже последнего таймированного слота.
func (s *CalendarService) resumePoint(ctx context.Context, now time.Time) (time.Time, error) {
	latest, err := s.slotRepo.Latest(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("get resume point: %w", err)
	}

	if latest == nil {
		return s.generator.AlignToGrid(now), nil
	}

	date, err := s.slotRepo.LatestDate(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("get latest slot date: %w", err)
	}
	if date == nil {
		date = &latest.Date
	}

	if latest.IsMarker() {
		return s.generator.ResumeAfterDate(*date), nil
	}

	resume := *latest.EndTime
	if date.After(resume) {
		return s.generator.ResumeAfterDate(*date), nil
	}
	return resume, nil
}
