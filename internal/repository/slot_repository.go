package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glamly/appointment_core/internal/model"
)

const slotColumns = `
	id, date, start_time, end_time,
	occupied, occupied_by_appointment,
	reserved, reserved_reason,
	holiday, holiday_id, sunday, break_time, temporary_closure
`

// SlotRepository доступ к слотам расписания на чтение и массовую вставку.
// Изменяемые поля слотов пишет только AllocationStore.
type SlotRepository interface {
	// Слот по ID, nil если не найден.
	GetByID(ctx context.Context, id uuid.UUID) (*model.AppointmentSlot, error)
	// Слоты по списку ID, порядок по start_time.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.AppointmentSlot, error)
	// Самый поздний слот таймлайна (по end_time, маркеры последними).
	Latest(ctx context.Context) (*model.AppointmentSlot, error)
	// Дата самого позднего слота любой формы.
	LatestDate(ctx context.Context) (*time.Time, error)
	// Вставка пачки сгенерированных слотов одной транзакцией.
	CreateBatch(ctx context.Context, slots []model.AppointmentSlot) error
	// Все слоты на дату.
	ListByDate(ctx context.Context, date time.Time) ([]*model.AppointmentSlot, error)
	// Все слоты от даты (включительно) вперёд.
	ListFromDate(ctx context.Context, from time.Time) ([]*model.AppointmentSlot, error)
	// Пригодные для записи слоты с start_time в [from, to), по времени.
	ListBookableBetween(ctx context.Context, from, to time.Time) ([]*model.AppointmentSlot, error)
	// Слоты окна [start, end), свободные по предикату записи; слоты,
	// занятые записью forAppointment, считаются свободными.
	FreeWindow(ctx context.Context, start, end time.Time, forAppointment *uuid.UUID) ([]*model.AppointmentSlot, error)
}

type PgSlotRepository struct {
	pool *pgxpool.Pool
}

func NewPgSlotRepository(pool *pgxpool.Pool) *PgSlotRepository {
	return &PgSlotRepository{pool: pool}
}

func scanSlot(row pgx.Row) (*model.AppointmentSlot, error) {
	var slot model.AppointmentSlot
	err := row.Scan(
		&slot.ID,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Occupied,
		&slot.OccupiedBy,
		&slot.Reserved,
		&slot.ReservedReason,
		&slot.Holiday,
		&slot.HolidayID,
		&slot.Sunday,
		&slot.BreakTime,
		&slot.TemporaryClosure,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.AppointmentSlot, error) {
	defer rows.Close()

	var slots []*model.AppointmentSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// GetByID получает слот по ID
func (r *PgSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AppointmentSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM appointment_slots WHERE id = $1`

	slot, err := scanSlot(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// GetMany получает слоты по списку ID
func (r *PgSlotRepository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots
		WHERE id = ANY($1)
		ORDER BY start_time NULLS LAST
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get slots by ids: %w", err)
	}

	return collectSlots(rows)
}

// Latest получает самый поздний слот таймлайна. Генерация возобновляется
// с его end_time, либо со следующего дня, если это маркер.
func (r *PgSlotRepository) Latest(ctx context.Context) (*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots
		ORDER BY end_time DESC NULLS LAST, date DESC
		LIMIT 1
	`

	slot, err := scanSlot(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest slot: %w", err)
	}

	return slot, nil
}

// LatestDate получает дату самого позднего слота, включая маркерные
func (r *PgSlotRepository) LatestDate(ctx context.Context) (*time.Time, error) {
	query := `SELECT MAX(date) FROM appointment_slots`

	var date *time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&date); err != nil {
		return nil, fmt.Errorf("get latest slot date: %w", err)
	}

	return date, nil
}

// CreateBatch вставляет пачку слотов одной транзакцией: либо весь
// сгенерированный хвост, либо ничего
func (r *PgSlotRepository) CreateBatch(ctx context.Context, slots []model.AppointmentSlot) error {
	if len(slots) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO appointment_slots
			(id, date, start_time, end_time, holiday, holiday_id, sunday, break_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, slot := range slots {
		batch.Queue(query,
			slot.ID,
			slot.Date,
			slot.StartTime,
			slot.EndTime,
			slot.Holiday,
			slot.HolidayID,
			slot.Sunday,
			slot.BreakTime,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert slot batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit slot batch: %w", err)
	}

	return nil
}

// ListByDate получает все слоты на дату
func (r *PgSlotRepository) ListByDate(ctx context.Context, date time.Time) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots
		WHERE date = $1
		ORDER BY start_time NULLS FIRST
	`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list slots by date: %w", err)
	}

	return collectSlots(rows)
}

// ListFromDate получает все слоты начиная с даты
func (r *PgSlotRepository) ListFromDate(ctx context.Context, from time.Time) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots
		WHERE date >= $1
		ORDER BY date, start_time NULLS FIRST
	`

	rows, err := r.pool.Query(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("list slots from date: %w", err)
	}

	return collectSlots(rows)
}

// ListBookableBetween получает пригодные для записи слоты в интервале
func (r *PgSlotRepository) ListBookableBetween(ctx context.Context, from, to time.Time) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots
		WHERE start_time >= $1
		  AND start_time < $2
		  AND NOT occupied
		  AND NOT reserved
		  AND NOT holiday
		  AND NOT sunday
		  AND NOT break_time
		  AND NOT temporary_closure
		ORDER BY start_time
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list bookable slots: %w", err)
	}

	return collectSlots(rows)
}

// FreeWindow получает свободные слоты окна [start, end). Слоты, занятые
// записью forAppointment, считаются свободными — так запись может
// «скользить» при переносе без предварительного освобождения.
func (r *PgSlotRepository) FreeWindow(ctx context.Context, start, end time.Time, forAppointment *uuid.UUID) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots
		WHERE start_time >= $1
		  AND start_time < $2
		  AND NOT holiday
		  AND NOT sunday
		  AND NOT break_time
		  AND NOT temporary_closure
		  AND NOT reserved
		  AND (NOT occupied OR occupied_by_appointment = $3)
		ORDER BY start_time
	`

	rows, err := r.pool.Query(ctx, query, start, end, forAppointment)
	if err != nil {
		return nil, fmt.Errorf("get free window: %w", err)
	}

	return collectSlots(rows)
}
