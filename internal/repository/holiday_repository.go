package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HolidayRepository праздники и их переводы. Идентичность праздника
// стабильна, имена разрешаются по языку.
type HolidayRepository interface {
	// Идентификаторы праздников в порядке следования имён из конфига;
	// недостающие праздники досоздаются.
	EnsureHolidays(ctx context.Context, names []map[string]string) ([]int64, error)
	// Отображение holiday_id -> имя на языке.
	NamesByLanguage(ctx context.Context, languageCode string) (map[int64]string, error)
}

type PgHolidayRepository struct {
	pool *pgxpool.Pool
}

func NewPgHolidayRepository(pool *pgxpool.Pool) *PgHolidayRepository {
	return &PgHolidayRepository{pool: pool}
}

// EnsureHolidays гарантирует наличие праздников в БД и возвращает их ID
// в порядке конфига. Праздник опознаётся по любому из его переводов.
func (r *PgHolidayRepository) EnsureHolidays(ctx context.Context, names []map[string]string) ([]int64, error) {
	ids := make([]int64, 0, len(names))

	for _, translations := range names {
		id, err := r.findByAnyName(ctx, translations)
		if err != nil {
			return nil, err
		}

		if id == 0 {
			id, err = r.create(ctx, translations)
			if err != nil {
				return nil, err
			}
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (r *PgHolidayRepository) findByAnyName(ctx context.Context, translations map[string]string) (int64, error) {
	for _, name := range translations {
		query := `
			SELECT h.id
			FROM holidays h
			JOIN holiday_translations ht ON ht.holiday_id = h.id
			WHERE ht.name = $1
		`

		var id int64
		err := r.pool.QueryRow(ctx, query, name).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return 0, fmt.Errorf("find holiday by name: %w", err)
		}

		return id, nil
	}

	return 0, nil
}

func (r *PgHolidayRepository) create(ctx context.Context, translations map[string]string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx, `INSERT INTO holidays DEFAULT VALUES RETURNING id`).Scan(&id); err != nil {
		return 0, fmt.Errorf("create holiday: %w", err)
	}

	for langCode, name := range translations {
		query := `
			INSERT INTO holiday_translations (holiday_id, language_id, name)
			SELECT $1, id, $3 FROM languages WHERE code = $2
		`
		if _, err := tx.Exec(ctx, query, id, langCode, name); err != nil {
			return 0, fmt.Errorf("create holiday translation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit holiday: %w", err)
	}

	return id, nil
}

// NamesByLanguage получает имена всех праздников на языке
func (r *PgHolidayRepository) NamesByLanguage(ctx context.Context, languageCode string) (map[int64]string, error) {
	query := `
		SELECT ht.holiday_id, ht.name
		FROM holiday_translations ht
		JOIN languages l ON l.id = ht.language_id
		WHERE l.code = $1
	`

	rows, err := r.pool.Query(ctx, query, languageCode)
	if err != nil {
		return nil, fmt.Errorf("list holiday names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan holiday name: %w", err)
		}
		names[id] = name
	}

	return names, rows.Err()
}
