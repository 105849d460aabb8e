package calendar

import (
	"time"

	"github.com/google/uuid"

	"github.com/glamly/appointment_core/internal/model"
)

// Состояния курсора генерации. Каждый переход строго двигает курсор вперёд,
// поэтому цикл генерации не может зациклиться.
type cursorState int

const (
	stateWithinHours cursorState = iota
	stateAtBreak
	stateAtHolidaySkip
	stateDayRollover
)

// Generator порождает ряд слотов расписания по плану недели и календарю
// праздников. Генератор чистый: он не знает про хранилище, только про время.
type Generator struct {
	weekplan     *Weekplan
	holidays     *HolidayCalendar
	slotDuration time.Duration
	loc          *time.Location
}

func NewGenerator(wp *Weekplan, hc *HolidayCalendar, slotDurationMinutes int, loc *time.Location) *Generator {
	return &Generator{
		weekplan:     wp,
		holidays:     hc,
		slotDuration: time.Duration(slotDurationMinutes) * time.Minute,
		loc:          loc,
	}
}

// Generate выдаёт все слоты от from (включительно) до until.
// Праздники и воскресенья получают один маркерный слот на дату,
// перерывы — один слот на всю длительность перерыва.
func (g *Generator) Generate(from, until time.Time) []model.AppointmentSlot {
	var slots []model.AppointmentSlot

	cursor := from.In(g.loc)
	until = until.In(g.loc)

	for cursor.Before(until) {
		slot, next := g.advance(cursor)
		if slot != nil {
			slots = append(slots, *slot)
		}
		cursor = next
	}

	return slots
}

// advance единственная функция перехода: по состоянию курсора выдаёт
// слот (или nil) и следующее положение курсора
func (g *Generator) advance(cursor time.Time) (*model.AppointmentSlot, time.Time) {
	switch g.classify(cursor) {
	case stateAtHolidaySkip:
		slot := &model.AppointmentSlot{
			ID:     uuid.New(),
			Date:   dateOf(cursor),
			Sunday: WeekdayIndex(cursor) == 6,
		}
		if holidayID, ok := g.holidays.Lookup(cursor); ok {
			slot.Holiday = true
			slot.HolidayID = &holidayID
		}
		return slot, g.nextDayOpening(cursor)

	case stateDayRollover:
		day := g.weekplan.Days[WeekdayIndex(cursor)]
		opening := timeOfDay(cursor, day.WorkHours.StartHour, day.WorkHours.StartMinute)
		if cursor.Before(opening) {
			return nil, opening
		}
		return nil, g.nextDayOpening(cursor)

	case stateAtBreak:
		br := g.breakAt(cursor)
		start := cursor
		end := cursor.Add(time.Duration(br.TimeMinutes) * time.Minute)
		slot := &model.AppointmentSlot{
			ID:        uuid.New(),
			Date:      dateOf(cursor),
			StartTime: &start,
			EndTime:   &end,
			BreakTime: true,
		}
		return slot, end

	default: // stateWithinHours
		start := cursor
		end := cursor.Add(g.slotDuration)
		slot := &model.AppointmentSlot{
			ID:        uuid.New(),
			Date:      dateOf(cursor),
			StartTime: &start,
			EndTime:   &end,
		}
		return slot, end
	}
}

func (g *Generator) classify(cursor time.Time) cursorState {
	if _, ok := g.holidays.Lookup(cursor); ok {
		return stateAtHolidaySkip
	}

	weekday := WeekdayIndex(cursor)
	if weekday == 6 {
		return stateAtHolidaySkip
	}

	day := g.weekplan.Days[weekday]
	minutes := cursor.Hour()*60 + cursor.Minute()
	opening := day.WorkHours.StartHour*60 + day.WorkHours.StartMinute
	closing := day.WorkHours.EndHour*60 + day.WorkHours.EndMinute

	if minutes < opening || minutes >= closing {
		return stateDayRollover
	}

	if g.breakAt(cursor) != nil {
		return stateAtBreak
	}

	return stateWithinHours
}

// breakAt возвращает перерыв, начинающийся ровно в позиции курсора
func (g *Generator) breakAt(cursor time.Time) *Break {
	day := g.weekplan.Days[WeekdayIndex(cursor)]
	for i, br := range day.Breaks {
		if cursor.Hour() == br.StartHour && cursor.Minute() == br.StartMinute {
			return &day.Breaks[i]
		}
	}
	return nil
}

// nextDayOpening возвращает начало следующего дня: время открытия по плану,
// для воскресенья — самое раннее открытие недели
func (g *Generator) nextDayOpening(cursor time.Time) time.Time {
	next := dateOf(cursor).AddDate(0, 0, 1)
	hour, minute := g.weekplan.Opening(WeekdayIndex(next))
	return timeOfDay(next, hour, minute)
}

// ResumeAfterDate возвращает точку возобновления после дня date:
// открытие следующего дня по плану недели
func (g *Generator) ResumeAfterDate(date time.Time) time.Time {
	return g.nextDayOpening(date.In(g.loc))
}

// AlignToGrid округляет момент времени вверх до ближайшей границы слота.
// Используется при первой генерации, когда слотов ещё нет.
func (g *Generator) AlignToGrid(now time.Time) time.Time {
	now = now.In(g.loc)
	base := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, g.loc)

	slotMinutes := int(g.slotDuration.Minutes())
	steps := now.Minute() / slotMinutes
	if now.Minute()%slotMinutes != 0 || now.Second() > 0 || now.Nanosecond() > 0 {
		steps++
	}

	return base.Add(time.Duration(steps) * g.slotDuration)
}

// HorizonEnd возвращает конец горизонта генерации: год вперёд с учётом
// високосности, на самом позднем времени закрытия недели
func (g *Generator) HorizonEnd(now time.Time) time.Time {
	now = now.In(g.loc)

	days := 365
	if isLeap(now.Year()) {
		days = 366
	}

	end := now.AddDate(0, 0, days)
	hour, minute := g.weekplan.LatestClosing()
	return timeOfDay(end, hour, minute)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func timeOfDay(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}
