// Утилита для админки: выгружает слоты недели из БД и сохраняет
// недельную сетку в week.png.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glamly/appointment_core/internal/config"
	"github.com/glamly/appointment_core/internal/model"
	"github.com/glamly/appointment_core/internal/report"
	"github.com/glamly/appointment_core/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	// Понедельник текущей недели.
	now := time.Now().In(loc)
	weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	for weekStart.Weekday() != time.Monday {
		weekStart = weekStart.AddDate(0, 0, -1)
	}

	slotRepo := repository.NewPgSlotRepository(pool)

	var slots []*model.AppointmentSlot
	for day := 0; day < 7; day++ {
		daySlots, err := slotRepo.ListByDate(ctx, weekStart.AddDate(0, 0, day))
		if err != nil {
			log.Fatalf("Failed to load slots: %v", err)
		}
		slots = append(slots, daySlots...)
	}

	imageData, err := report.RenderWeek(slots, weekStart)
	if err != nil {
		log.Fatalf("Failed to render week image: %v", err)
	}

	filename := "week.png"
	if err := os.WriteFile(filename, imageData, 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", filename, err)
	}

	fmt.Printf("✅ Изображение сохранено в %s\n", filename)
	fmt.Printf("📅 Период: %s - %s\n", weekStart.Format("02.01.2006"), weekStart.AddDate(0, 0, 6).Format("02.01.2006"))
	fmt.Printf("📊 Слотов: %d\n", len(slots))
}
