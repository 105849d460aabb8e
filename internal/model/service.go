package model

import (
	"time"

	"github.com/google/uuid"
)

// Service услуга из каталога. RequiredSlots — сколько подряд идущих
// обычных слотов занимает одна запись.
type Service struct {
	ID                 uuid.UUID `json:"id"`
	MinPrice           int       `json:"min_price"`
	MaxPrice           int       `json:"max_price"`
	AverageTimeMinutes int       `json:"average_time_minutes"`
	RequiredSlots      int       `json:"required_slots"`
	Available          bool      `json:"available"`
	Deleted            bool      `json:"deleted"`
	CreatedAt          time.Time `json:"created_at"`

	// Локализованное имя, подставляется из service_translations
	Name string `json:"name,omitempty"`
}

// RequiredSlotsFor считает количество слотов для услуги с округлением вверх:
// услуга на 45 минут при 30-минутных слотах занимает 2 слота
func RequiredSlotsFor(averageTimeMinutes, slotDurationMinutes int) int {
	n := (averageTimeMinutes + slotDurationMinutes - 1) / slotDurationMinutes
	if n < 1 {
		n = 1
	}
	return n
}
