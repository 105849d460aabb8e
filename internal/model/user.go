package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Verified  bool      `json:"verified"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

// FcmToken push-токен устройства пользователя
type FcmToken struct {
	ID            int64     `json:"id"`
	Token         string    `json:"token"`
	UserID        uuid.UUID `json:"user_id"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}
