package model

import (
	"time"

	"github.com/google/uuid"
)

// Appointment запись клиента на услугу. Занимает непрерывный ряд слотов
// от StartSlotID до EndSlotID включительно.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   uuid.UUID `json:"service_id"`
	UserID      uuid.UUID `json:"user_id"`
	StartSlotID uuid.UUID `json:"start_slot_id"`
	EndSlotID   uuid.UUID `json:"end_slot_id"`
	Canceled    bool      `json:"canceled"`
	CreatedAt   time.Time `json:"created_at"`

	// Дополнительные поля для удобства (не из таблицы appointments)
	StartSlot *AppointmentSlot `json:"start_slot,omitempty"`
	EndSlot   *AppointmentSlot `json:"end_slot,omitempty"`
}

// Archival проверяет прошло ли окно записи. Вычисляется на каждом чтении,
// в БД не хранится.
func (a *Appointment) Archival(now time.Time) bool {
	if a.EndSlot == nil || a.EndSlot.EndTime == nil {
		return false
	}
	return a.EndSlot.EndTime.Before(now)
}
