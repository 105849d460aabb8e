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

// UserRepository доступ к пользователям и их push-токенам
type UserRepository interface {
	// Пользователь по ID, nil если не найден.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// FCM-токены всех устройств пользователя.
	ListFcmTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	// Код языка пользователя из настроек, либо код по умолчанию.
	LanguageCode(ctx context.Context, userID uuid.UUID) (string, error)
}

type PgUserRepository struct {
	pool *pgxpool.Pool

	defaultLanguage string
}

func NewPgUserRepository(pool *pgxpool.Pool, defaultLanguage string) *PgUserRepository {
	return &PgUserRepository{pool: pool, defaultLanguage: defaultLanguage}
}

// GetByID получает пользователя по ID
func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, name, surname, verified, disabled, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Surname,
		&user.Verified,
		&user.Disabled,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

// ListFcmTokens получает push-токены пользователя
func (r *PgUserRepository) ListFcmTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `SELECT token FROM fcm_tokens WHERE user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list fcm tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan fcm token: %w", err)
		}
		tokens = append(tokens, token)
	}

	return tokens, rows.Err()
}

// LanguageCode получает язык пользователя из настройки preferred_language
func (r *PgUserRepository) LanguageCode(ctx context.Context, userID uuid.UUID) (string, error) {
	query := `
		SELECT current_value
		FROM settings
		WHERE user_id = $1 AND name = 'preferred_language'
	`

	var code string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.defaultLanguage, nil
		}
		return "", fmt.Errorf("get user language: %w", err)
	}

	return code, nil
}
