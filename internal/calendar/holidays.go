package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// HolidayCalendar сопоставляет даты праздникам. Даты заданы по годам
// строками "ДД.ММ", позиция даты в списке года соответствует позиции
// праздника в списке идентификаторов.
type HolidayCalendar struct {
	// year -> дата "ДД.ММ" -> индекс праздника
	byYear map[int]map[string]int
	ids    []int64
}

// NewHolidayCalendar строит календарь из сырых дат и идентификаторов
// праздников в том же порядке, что и список имён
func NewHolidayCalendar(dates map[string][]string, ids []int64) (*HolidayCalendar, error) {
	byYear := make(map[int]map[string]int, len(dates))

	for yearStr, yearDates := range dates {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return nil, fmt.Errorf("invalid year key %q: %w", yearStr, err)
		}
		if len(yearDates) != len(ids) {
			return nil, fmt.Errorf(
				"year %d has %d dates but %d holidays are known",
				year, len(yearDates), len(ids),
			)
		}

		index := make(map[string]int, len(yearDates))
		for i, d := range yearDates {
			if _, err := time.Parse("02.01", d); err != nil {
				return nil, fmt.Errorf("year %d: invalid date %q: %w", year, d, err)
			}
			index[d] = i
		}
		byYear[year] = index
	}

	return &HolidayCalendar{byYear: byYear, ids: ids}, nil
}

// LoadHolidayDates читает даты праздников из JSON-файла вида
// {"2026": ["01.01", "06.01", ...], ...}
func LoadHolidayDates(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday dates file: %w", err)
	}

	var dates map[string][]string
	if err := json.Unmarshal(data, &dates); err != nil {
		return nil, fmt.Errorf("parse holiday dates file: %w", err)
	}

	return dates, nil
}

// LoadHolidayNames читает список имён праздников: каждый элемент —
// отображение код языка -> имя. Порядок элементов задаёт идентичность.
func LoadHolidayNames(path string) ([]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday names file: %w", err)
	}

	var names []map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse holiday names file: %w", err)
	}

	return names, nil
}

// Lookup возвращает идентификатор праздника для даты
func (hc *HolidayCalendar) Lookup(t time.Time) (int64, bool) {
	yearIndex, ok := hc.byYear[t.Year()]
	if !ok {
		return 0, false
	}

	i, ok := yearIndex[t.Format("02.01")]
	if !ok {
		return 0, false
	}

	return hc.ids[i], true
}
