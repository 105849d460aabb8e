package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/glamly/appointment_core/internal/app"
	"github.com/glamly/appointment_core/internal/calendar"
	"github.com/glamly/appointment_core/internal/config"
	"github.com/glamly/appointment_core/internal/notify"
	"github.com/glamly/appointment_core/internal/repository"
	"github.com/glamly/appointment_core/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("Failed to load business timezone", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	// Конфигурация календаря: план недели и праздники.
	weekplan, err := calendar.LoadWeekplan(cfg.WeekplanPath)
	if err != nil {
		logger.Fatal("Failed to load weekplan", zap.Error(err))
	}

	holidayDates, err := calendar.LoadHolidayDates(cfg.HolidayDatesPath)
	if err != nil {
		logger.Fatal("Failed to load holiday dates", zap.Error(err))
	}
	holidayNames, err := calendar.LoadHolidayNames(cfg.HolidayNamesPath)
	if err != nil {
		logger.Fatal("Failed to load holiday names", zap.Error(err))
	}

	holidayRepo := repository.NewPgHolidayRepository(pool)
	holidayIDs, err := holidayRepo.EnsureHolidays(ctx, holidayNames)
	if err != nil {
		logger.Fatal("Failed to seed holidays", zap.Error(err))
	}

	holidayCalendar, err := calendar.NewHolidayCalendar(holidayDates, holidayIDs)
	if err != nil {
		logger.Fatal("Failed to build holiday calendar", zap.Error(err))
	}

	generator := calendar.NewGenerator(weekplan, holidayCalendar, cfg.SlotDurationMinutes, loc)

	// Репозитории и составные операции.
	slotRepo := repository.NewPgSlotRepository(pool)
	apptRepo := repository.NewPgAppointmentRepository(pool)
	serviceRepo := repository.NewPgServiceRepository(pool)
	userRepo := repository.NewPgUserRepository(pool, cfg.DefaultLanguage)
	alloc := repository.NewPgAllocationStore(pool)

	// Каналы доставки уведомлений.
	var dispatchers []notify.Dispatcher
	if cfg.FirebaseCredentialsPath != "" {
		fcm, err := notify.NewFcmDispatcher(ctx, cfg.FirebaseCredentialsPath, logger)
		if err != nil {
			logger.Fatal("Failed to init FCM dispatcher", zap.Error(err))
		}
		dispatchers = append(dispatchers, fcm)
	}
	if cfg.SMTPHost != "" {
		email, err := notify.NewEmailDispatcher(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom, logger)
		if err != nil {
			logger.Fatal("Failed to init email dispatcher", zap.Error(err))
		}
		dispatchers = append(dispatchers, email)
	}
	dispatcher := notify.NewMulti(dispatchers...)

	// Очередь отложенных напоминаний.
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	reminderService := service.NewReminderService(
		asynqClient, inspector,
		apptRepo, userRepo, serviceRepo,
		dispatcher, logger,
	)

	appointmentService := service.NewAppointmentService(
		slotRepo, apptRepo, serviceRepo, holidayRepo, alloc,
		reminderService, logger,
		cfg.SlotDurationMinutes, cfg.LeadTimeMinutes, cfg.MaxFutureDays,
		loc,
	)

	calendarService := service.NewCalendarService(generator, slotRepo, logger)
	if err := calendarService.EnsureGenerated(ctx); err != nil {
		logger.Fatal("Failed to generate slot timeline", zap.Error(err))
	}

	if stats, err := appointmentService.Stats(ctx); err != nil {
		logger.Warn("Failed to read usage stats", zap.Error(err))
	} else {
		logger.Info("Usage stats",
			zap.Int64("users", stats.RegisteredUsers),
			zap.Int64("appointments", stats.TotalAppointments),
			zap.Int64("upcoming", stats.UpcomingAppointments),
		)
	}

	scheduler := app.NewScheduler(calendarService, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	worker := notify.NewWorker(redisOpt, logger)
	worker.Handle(service.TypeAppointmentReminder, reminderService.HandleTask)
	if err := worker.Start(); err != nil {
		logger.Fatal("Failed to start reminder worker", zap.Error(err))
	}
	defer worker.Stop()

	logger.Info("Appointment core started",
		zap.String("environment", cfg.Environment),
		zap.String("timezone", cfg.Timezone),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
}
