package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glamly/appointment_core/internal/model"
)

// ServiceRepository каталог услуг
type ServiceRepository interface {
	// Услуга по ID, nil если не найдена или удалена.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Service, error)
	// Доступные услуги с именами на указанном языке.
	ListAvailable(ctx context.Context, languageCode string) ([]*model.Service, error)
	// Локализованное имя услуги; пустая строка если перевода нет.
	NameFor(ctx context.Context, serviceID uuid.UUID, languageCode string) (string, error)
}

type PgServiceRepository struct {
	pool *pgxpool.Pool
}

func NewPgServiceRepository(pool *pgxpool.Pool) *PgServiceRepository {
	return &PgServiceRepository{pool: pool}
}

// GetByID получает услугу по ID
func (r *PgServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `
		SELECT id, min_price, max_price, average_time_minutes, required_slots,
		       available, deleted, created_at
		FROM services
		WHERE id = $1 AND NOT deleted
	`

	var svc model.Service
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&svc.ID,
		&svc.MinPrice,
		&svc.MaxPrice,
		&svc.AverageTimeMinutes,
		&svc.RequiredSlots,
		&svc.Available,
		&svc.Deleted,
		&svc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get service by id: %w", err)
	}

	return &svc, nil
}

// ListAvailable получает доступные услуги с локализованными именами
func (r *PgServiceRepository) ListAvailable(ctx context.Context, languageCode string) ([]*model.Service, error) {
	query := `
		SELECT s.id, s.min_price, s.max_price, s.average_time_minutes, s.required_slots,
		       s.available, s.deleted, s.created_at,
		       COALESCE(st.name, '')
		FROM services s
		LEFT JOIN service_translations st ON st.service_id = s.id
			AND st.language_id = (SELECT id FROM languages WHERE code = $1)
		WHERE s.available AND NOT s.deleted
		ORDER BY s.created_at
	`

	rows, err := r.pool.Query(ctx, query, languageCode)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []*model.Service
	for rows.Next() {
		var svc model.Service
		err := rows.Scan(
			&svc.ID,
			&svc.MinPrice,
			&svc.MaxPrice,
			&svc.AverageTimeMinutes,
			&svc.RequiredSlots,
			&svc.Available,
			&svc.Deleted,
			&svc.CreatedAt,
			&svc.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, &svc)
	}

	return services, rows.Err()
}

// NameFor получает локализованное имя услуги
func (r *PgServiceRepository) NameFor(ctx context.Context, serviceID uuid.UUID, languageCode string) (string, error) {
	query := `
		SELECT st.name
		FROM service_translations st
		JOIN languages l ON l.id = st.language_id
		WHERE st.service_id = $1 AND l.code = $2
	`

	var name string
	err := r.pool.QueryRow(ctx, query, serviceID, languageCode).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get service name: %w", err)
	}

	return name, nil
}
