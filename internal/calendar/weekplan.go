// Package calendar содержит конфигурацию рабочей недели, календарь праздников
// и генератор слотов расписания.
package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Break перерыв внутри рабочего дня
type Break struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	TimeMinutes int `json:"time_minutes"`
}

// WorkHours границы рабочего дня
type WorkHours struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// DayPlan план одного дня недели
type DayPlan struct {
	WorkHours WorkHours `json:"work_hours"`
	Breaks    []Break   `json:"breaks"`
}

// Weekplan план рабочей недели: 7 дней, индекс 0 — понедельник.
// Воскресенье присутствует в конфиге, но слоты по нему не генерируются —
// воскресные дни получают маркерный слот.
type Weekplan struct {
	Days [7]DayPlan
}

// LoadWeekplan читает план недели из JSON-файла
func LoadWeekplan(path string) (*Weekplan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weekplan file: %w", err)
	}

	var days []DayPlan
	if err := json.Unmarshal(data, &days); err != nil {
		return nil, fmt.Errorf("parse weekplan file: %w", err)
	}

	if len(days) != 7 {
		return nil, fmt.Errorf("weekplan must contain 7 days, got %d", len(days))
	}

	wp := &Weekplan{}
	copy(wp.Days[:], days)

	if err := wp.validate(); err != nil {
		return nil, fmt.Errorf("validate weekplan: %w", err)
	}

	return wp, nil
}

func (wp *Weekplan) validate() error {
	for i, day := range wp.Days[:6] {
		wh := day.WorkHours
		if wh.StartHour < 0 || wh.StartHour > 23 || wh.EndHour < 0 || wh.EndHour > 23 {
			return fmt.Errorf("day %d: hours out of range", i)
		}
		if wh.StartMinute < 0 || wh.StartMinute > 59 || wh.EndMinute < 0 || wh.EndMinute > 59 {
			return fmt.Errorf("day %d: minutes out of range", i)
		}
		start := wh.StartHour*60 + wh.StartMinute
		end := wh.EndHour*60 + wh.EndMinute
		if end <= start {
			return fmt.Errorf("day %d: working day ends before it starts", i)
		}
		for j, br := range day.Breaks {
			bStart := br.StartHour*60 + br.StartMinute
			if bStart < start || bStart+br.TimeMinutes > end {
				return fmt.Errorf("day %d: break %d is outside working hours", i, j)
			}
			if br.TimeMinutes <= 0 {
				return fmt.Errorf("day %d: break %d has non-positive duration", i, j)
			}
		}
	}
	return nil
}

// EarliestOpening возвращает самое раннее время открытия за неделю.
// Час — минимум по рабочим дням; минута — максимум среди дней,
// открывающихся в этот час.
func (wp *Weekplan) EarliestOpening() (hour, minute int) {
	hour = wp.Days[0].WorkHours.StartHour
	for _, day := range wp.Days[1:6] {
		if day.WorkHours.StartHour < hour {
			hour = day.WorkHours.StartHour
		}
	}
	for _, day := range wp.Days[:6] {
		if day.WorkHours.StartHour == hour && day.WorkHours.StartMinute > minute {
			minute = day.WorkHours.StartMinute
		}
	}
	return hour, minute
}

// LatestClosing возвращает самое позднее время закрытия за неделю,
// симметрично EarliestOpening
func (wp *Weekplan) LatestClosing() (hour, minute int) {
	hour = wp.Days[0].WorkHours.EndHour
	for _, day := range wp.Days[1:6] {
		if day.WorkHours.EndHour > hour {
			hour = day.WorkHours.EndHour
		}
	}
	for _, day := range wp.Days[:6] {
		if day.WorkHours.EndHour == hour && day.WorkHours.EndMinute > minute {
			minute = day.WorkHours.EndMinute
		}
	}
	return hour, minute
}

// Opening возвращает время открытия для дня недели. Для воскресенья
// используется самое раннее открытие недели, как и в генераторе.
func (wp *Weekplan) Opening(weekday int) (hour, minute int) {
	if weekday >= 0 && weekday <= 5 {
		return wp.Days[weekday].WorkHours.StartHour, wp.Days[weekday].WorkHours.StartMinute
	}
	return wp.EarliestOpening()
}

// WeekdayIndex переводит time.Weekday в индекс плана: 0 — понедельник,
// 6 — воскресенье
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
