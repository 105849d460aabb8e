package model

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentSlot ячейка календаря. Обычный слот несёт start/end время,
// маркерный слот (праздник или воскресенье) — только дату, без времени.
type AppointmentSlot struct {
	ID               uuid.UUID  `json:"id"`
	Date             time.Time  `json:"date"`
	StartTime        *time.Time `json:"start_time"` // nil для маркерных слотов
	EndTime          *time.Time `json:"end_time"`   // nil для маркерных слотов
	Occupied         bool       `json:"occupied"`
	OccupiedBy       *uuid.UUID `json:"occupied_by_appointment"`
	Reserved         bool       `json:"reserved"`
	ReservedReason   *string    `json:"reserved_reason"`
	Holiday          bool       `json:"holiday"`
	HolidayID        *int64     `json:"holiday_id"`
	Sunday           bool       `json:"sunday"`
	BreakTime        bool       `json:"break_time"`
	TemporaryClosure bool       `json:"temporary_closure"`

	// Заполняется при выдаче наружу, не хранится в БД
	HolidayName *string `json:"holiday_name,omitempty"`
}

// IsMarker проверяет является ли слот маркером целого нерабочего дня
func (s *AppointmentSlot) IsMarker() bool {
	return s.StartTime == nil && s.EndTime == nil
}

// Bookable проверяет пригоден ли слот для записи: обычный рабочий слот,
// не занятый, не зарезервированный и не закрытый административно
func (s *AppointmentSlot) Bookable() bool {
	return !s.IsMarker() &&
		!s.Occupied &&
		!s.Reserved &&
		!s.Holiday &&
		!s.Sunday &&
		!s.BreakTime &&
		!s.TemporaryClosure
}
