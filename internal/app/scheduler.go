package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/glamly/appointment_core/internal/service"
)

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	calendarService *service.CalendarService
	logger          *zap.Logger
	stopChan        chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(calendarService *service.CalendarService, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		calendarService: calendarService,
		logger:          logger,
		stopChan:        make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler")

	go s.runTimelineExtensionTask(ctx)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

// runTimelineExtensionTask раз в сутки наращивает таймлайн слотов, чтобы
// горизонт «сегодня + год» не истончался
func (s *Scheduler) runTimelineExtensionTask(ctx context.Context) {
	// Первый запуск сразу при старте
	s.extendTimeline(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.extendTimeline(ctx)
		case <-s.stopChan:
			s.logger.Info("Timeline extension task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Timeline extension task cancelled")
			return
		}
	}
}

func (s *Scheduler) extendTimeline(ctx context.Context) {
	s.logger.Info("Starting slot timeline extension")

	if err := s.calendarService.Extend(ctx); err != nil {
		s.logger.Error("Failed to extend slot timeline", zap.Error(err))
		return
	}

	s.logger.Info("Slot timeline extension completed")
}
