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

// AppointmentFilter фильтр списка записей
type AppointmentFilter string

const (
	FilterAll      AppointmentFilter = "all"
	FilterUpcoming AppointmentFilter = "upcoming"
	FilterArchival AppointmentFilter = "archival"
)

// Stats агрегаты для административной панели
type Stats struct {
	RegisteredUsers      int64 `json:"registered_users"`
	TotalAppointments    int64 `json:"total_appointments"`
	UpcomingAppointments int64 `json:"upcoming_appointments"`
	ArchivalAppointments int64 `json:"archival_appointments"`
}

// AppointmentRepository доступ к записям на чтение. Запись и перенос идут
// через AllocationStore, чтобы проверка и захват слотов были атомарными.
type AppointmentRepository interface {
	// Запись по ID с подгруженными крайними слотами, nil если не найдена.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
	// Записи пользователя либо все, с фильтром по прошедшим/предстоящим.
	List(ctx context.Context, userID *uuid.UUID, filter AppointmentFilter, now time.Time) ([]*model.Appointment, error)
	// Счётчики для административной статистики.
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

type PgAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPgAppointmentRepository(pool *pgxpool.Pool) *PgAppointmentRepository {
	return &PgAppointmentRepository{pool: pool}
}

const appointmentJoin = `
	SELECT a.id, a.service_id, a.user_id, a.start_slot_id, a.end_slot_id,
	       a.canceled, a.created_at,
	       ss.start_time, es.end_time
	FROM appointments a
	JOIN appointment_slots ss ON ss.id = a.start_slot_id
	JOIN appointment_slots es ON es.id = a.end_slot_id
`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var (
		appt      model.Appointment
		startTime *time.Time
		endTime   *time.Time
	)

	err := row.Scan(
		&appt.ID,
		&appt.ServiceID,
		&appt.UserID,
		&appt.StartSlotID,
		&appt.EndSlotID,
		&appt.Canceled,
		&appt.CreatedAt,
		&startTime,
		&endTime,
	)
	if err != nil {
		return nil, err
	}

	appt.StartSlot = &model.AppointmentSlot{ID: appt.StartSlotID, StartTime: startTime}
	appt.EndSlot = &model.AppointmentSlot{ID: appt.EndSlotID, EndTime: endTime}

	return &appt, nil
}

// GetByID получает запись по ID вместе с крайними слотами
func (r *PgAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := appointmentJoin + ` WHERE a.id = $1`

	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}

	return appt, nil
}

// List получает записи. userID nil — записи всех пользователей.
func (r *PgAppointmentRepository) List(ctx context.Context, userID *uuid.UUID, filter AppointmentFilter, now time.Time) ([]*model.Appointment, error) {
	query := appointmentJoin + ` WHERE ($1::uuid IS NULL OR a.user_id = $1)`
	args := []interface{}{userID}

	switch filter {
	case FilterUpcoming:
		query += ` AND es.end_time >= $2`
		args = append(args, now)
	case FilterArchival:
		query += ` AND es.end_time < $2`
		args = append(args, now)
	}

	query += ` ORDER BY ss.start_time`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}

	return appts, rows.Err()
}

// Stats считает агрегаты по пользователям и записям
func (r *PgAppointmentRepository) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM appointments),
			(SELECT COUNT(*) FROM appointments a
				JOIN appointment_slots es ON es.id = a.end_slot_id
				WHERE es.end_time >= $1),
			(SELECT COUNT(*) FROM appointments a
				JOIN appointment_slots es ON es.id = a.end_slot_id
				WHERE es.end_time < $1)
	`

	var stats Stats
	err := r.pool.QueryRow(ctx, query, now).Scan(
		&stats.RegisteredUsers,
		&stats.TotalAppointments,
		&stats.UpcomingAppointments,
		&stats.ArchivalAppointments,
	)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	return &stats, nil
}
