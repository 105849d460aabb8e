// Package apperrors содержит клиентские ошибки ядра календаря.
// Все они детектируются на месте и не имеют смысла для ретрая
// без изменения входных данных.
package apperrors

import (
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError запрошенного слота, услуги или записи не существует
type NotFoundError struct {
	Resource string
	ID       uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InsufficientAvailabilityError свободных подряд идущих слотов меньше,
// чем требует услуга
type InsufficientAvailabilityError struct {
	FirstSlotID   uuid.UUID
	RequiredSlots int
}

func (e *InsufficientAvailabilityError) Error() string {
	return fmt.Sprintf(
		"not enough free slots from %s: %d consecutive slots required",
		e.FirstSlotID, e.RequiredSlots,
	)
}

// IneligibleSlotsError пакетная операция резервирования содержит слоты,
// не проходящие проверку. Несёт точный список нарушителей.
type IneligibleSlotsError struct {
	SlotIDs []uuid.UUID
}

func (e *IneligibleSlotsError) Error() string {
	return fmt.Sprintf("slots not eligible for this operation: %v", e.SlotIDs)
}

// OutOfHorizonError запрошенное время раньше lead time либо дальше
// максимального горизонта записи
type OutOfHorizonError struct {
	SlotID uuid.UUID
	Reason string
}

func (e *OutOfHorizonError) Error() string {
	return fmt.Sprintf("slot %s is out of booking horizon: %s", e.SlotID, e.Reason)
}

// ArchivalEditError попытка изменить запись, окно которой уже прошло
type ArchivalEditError struct {
	AppointmentID uuid.UUID
}

func (e *ArchivalEditError) Error() string {
	return fmt.Sprintf("appointment %s is archival and cannot be edited", e.AppointmentID)
}
