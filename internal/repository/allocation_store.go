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
	"github.com/glamly/appointment_core/internal/repository/base"
)

// ErrWindowConflict окно изменилось между проверкой и фиксацией:
// конкурирующая запись успела занять часть слотов
var ErrWindowConflict = errors.New("slot window changed concurrently")

// errBatchIneligible внутренняя ошибка для отката пакетной операции
var errBatchIneligible = errors.New("batch contains ineligible slots")

// AllocationStore атомарные составные операции над слотами и записями.
// Каждая операция — одна транзакция: условный UPDATE перепроверяет
// предикат свободности прямо перед фиксацией, и при расхождении счётчика
// затронутых строк вся операция откатывается.
type AllocationStore interface {
	// Создаёт запись и помечает слоты окна занятыми ею.
	BookWindow(ctx context.Context, appt *model.Appointment, slotIDs []uuid.UUID) error
	// Освобождает старые слоты записи и занимает новые.
	RescheduleWindow(ctx context.Context, apptID, startSlotID, endSlotID uuid.UUID, slotIDs []uuid.UUID) error
	// Освобождает слоты записи и помечает её отменённой.
	CancelAppointment(ctx context.Context, apptID uuid.UUID) error
	// Резервирует все слоты пакета либо ни одного; возвращает
	// непригодные ID при отказе.
	ReserveSlots(ctx context.Context, ids []uuid.UUID, reason string, notBefore time.Time) ([]uuid.UUID, error)
	// Снимает резерв со всех слотов пакета либо ни с одного.
	UnreserveSlots(ctx context.Context, ids []uuid.UUID, notBefore time.Time) ([]uuid.UUID, error)
	// Освобождает слоты всех записей пользователя и удаляет сами записи
	// (каскад при удалении аккаунта).
	ReleaseUserAppointments(ctx context.Context, userID uuid.UUID) (int64, error)
}

type PgAllocationStore struct {
	*base.Repository
}

func NewPgAllocationStore(pool *pgxpool.Pool) *PgAllocationStore {
	return &PgAllocationStore{Repository: base.NewRepository(pool)}
}

// Предикат свободности слота для захвата под запись. Дублирует условие
// SlotRepository.FreeWindow — расхождение этих двух мест ломает
// перепроверку перед коммитом.
const occupyCondition = `
	  AND NOT holiday
	  AND NOT sunday
	  AND NOT break_time
	  AND NOT temporary_closure
	  AND NOT reserved
	  AND (NOT occupied OR occupied_by_appointment = $1)
`

func (s *PgAllocationStore) occupyWindow(ctx context.Context, tx pgx.Tx, apptID uuid.UUID, slotIDs []uuid.UUID) error {
	query := `
		UPDATE appointment_slots
		SET occupied = true, occupied_by_appointment = $1
		WHERE id = ANY($2)
	` + occupyCondition

	tag, err := tx.Exec(ctx, query, apptID, slotIDs)
	if err != nil {
		return fmt.Errorf("occupy slots: %w", err)
	}

	if tag.RowsAffected() != int64(len(slotIDs)) {
		return ErrWindowConflict
	}

	return nil
}

func (s *PgAllocationStore) releaseAppointmentSlots(ctx context.Context, tx pgx.Tx, apptID uuid.UUID) error {
	query := `
		UPDATE appointment_slots
		SET occupied = false, occupied_by_appointment = NULL
		WHERE occupied_by_appointment = $1
	`

	if _, err := tx.Exec(ctx, query, apptID); err != nil {
		return fmt.Errorf("release slots: %w", err)
	}

	return nil
}

// BookWindow создаёт запись и занимает слоты окна одной транзакцией
func (s *PgAllocationStore) BookWindow(ctx context.Context, appt *model.Appointment, slotIDs []uuid.UUID) error {
	return s.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO appointments (id, service_id, user_id, start_slot_id, end_slot_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`

		err := tx.QueryRow(ctx, query,
			appt.ID,
			appt.ServiceID,
			appt.UserID,
			appt.StartSlotID,
			appt.EndSlotID,
		).Scan(&appt.CreatedAt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		return s.occupyWindow(ctx, tx, appt.ID, slotIDs)
	})
}

// RescheduleWindow переносит запись на новое окно одной транзакцией.
// Старые слоты освобождаются до захвата новых, поэтому пересекающийся
// перенос «скольжением» возможен.
func (s *PgAllocationStore) RescheduleWindow(ctx context.Context, apptID, startSlotID, endSlotID uuid.UUID, slotIDs []uuid.UUID) error {
	return s.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.releaseAppointmentSlots(ctx, tx, apptID); err != nil {
			return err
		}

		if err := s.occupyWindow(ctx, tx, apptID, slotIDs); err != nil {
			return err
		}

		query := `
			UPDATE appointments
			SET start_slot_id = $2, end_slot_id = $3
			WHERE id = $1
		`
		if _, err := tx.Exec(ctx, query, apptID, startSlotID, endSlotID); err != nil {
			return fmt.Errorf("update appointment window: %w", err)
		}

		return nil
	})
}

// CancelAppointment освобождает слоты записи и помечает её отменённой
func (s *PgAllocationStore) CancelAppointment(ctx context.Context, apptID uuid.UUID) error {
	return s.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.releaseAppointmentSlots(ctx, tx, apptID); err != nil {
			return err
		}

		query := `UPDATE appointments SET canceled = true WHERE id = $1`
		if _, err := tx.Exec(ctx, query, apptID); err != nil {
			return fmt.Errorf("mark appointment canceled: %w", err)
		}

		return nil
	})
}

// ReserveSlots резервирует пакет слотов целиком. При любом непригодном
// слоте не фиксируется ничего, а возвращается точный список нарушителей.
func (s *PgAllocationStore) ReserveSlots(ctx context.Context, ids []uuid.UUID, reason string, notBefore time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE appointment_slots
		SET reserved = true, reserved_reason = $2
		WHERE id = ANY($1)
		  AND NOT reserved
		  AND NOT occupied
		  AND NOT holiday
		  AND NOT sunday
		  AND NOT break_time
		  AND NOT temporary_closure
		  AND start_time > $3
		RETURNING id
	`

	return s.allOrNothing(ctx, ids, query, reason, notBefore)
}

// UnreserveSlots снимает резерв с пакета слотов целиком
func (s *PgAllocationStore) UnreserveSlots(ctx context.Context, ids []uuid.UUID, notBefore time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE appointment_slots
		SET reserved = false, reserved_reason = NULL
		WHERE id = ANY($1)
		  AND reserved
		  AND NOT occupied
		  AND start_time > $2
		RETURNING id
	`

	return s.allOrNothing(ctx, ids, query, notBefore)
}

// allOrNothing выполняет условный UPDATE ... RETURNING id внутри
// транзакции и откатывает её, если затронуты не все запрошенные слоты.
// Вход очищается от повторов: RETURNING возвращает каждую строку один
// раз, и повтор во входе срывал бы сверку счётчика на корректном пакете.
func (s *PgAllocationStore) allOrNothing(ctx context.Context, ids []uuid.UUID, query string, extraArgs ...interface{}) ([]uuid.UUID, error) {
	ids = dedupeIDs(ids)

	var ineligible []uuid.UUID

	args := append([]interface{}{ids}, extraArgs...)

	err := s.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update slot batch: %w", err)
		}
		defer rows.Close()

		updated := make(map[uuid.UUID]bool, len(ids))
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan updated slot id: %w", err)
			}
			updated[id] = true
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("read updated slot ids: %w", err)
		}

		if len(updated) != len(ids) {
			for _, id := range ids {
				if !updated[id] {
					ineligible = append(ineligible, id)
				}
			}
			return errBatchIneligible
		}

		return nil
	})

	if errors.Is(err, errBatchIneligible) {
		return ineligible, nil
	}
	if err != nil {
		return nil, err
	}

	return nil, nil
}

// dedupeIDs убирает повторы, сохраняя порядок первого вхождения
func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return unique
}

// ReleaseUserAppointments освобождает слоты всех записей пользователя и
// удаляет сами записи. Возвращает количество освобождённых слотов.
func (s *PgAllocationStore) ReleaseUserAppointments(ctx context.Context, userID uuid.UUID) (int64, error) {
	var released int64

	err := s.InTx(ctx, func(tx pgx.Tx) error {
		releaseQuery := `
			UPDATE appointment_slots
			SET occupied = false, occupied_by_appointment = NULL
			WHERE occupied_by_appointment IN (
				SELECT id FROM appointments WHERE user_id = $1
			)
		`
		tag, err := tx.Exec(ctx, releaseQuery, userID)
		if err != nil {
			return fmt.Errorf("release user slots: %w", err)
		}
		released = tag.RowsAffected()

		if _, err := tx.Exec(ctx, `DELETE FROM appointments WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete user appointments: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return released, nil
}
