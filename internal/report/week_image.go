// Package report рисует недельную сетку слотов в PNG для админки.
package report

import (
	"bytes"
	"image/color"
	"strconv"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/glamly/appointment_core/internal/model"
)

// Константы размеров и отступов
const (
	imageWidth      = 1400
	imageHeight     = 900
	headerHeight    = 100
	leftLabelsWidth = 80
	legendWidth     = 140
	dayPaddingX     = 8
	minSlotHeight   = 8.0
	slotRadius      = 6.0
	totalDays       = 7
	hourPadding     = 1
	defaultMinHour  = 8
	defaultMaxHour  = 20
)

// Цветовая схема
var (
	bgColor        = color.RGBA{245, 246, 248, 255}
	textColor      = color.RGBA{80, 85, 90, 220}
	hourLabelColor = color.RGBA{110, 115, 120, 200}
	hourLineColor  = color.NRGBA{150, 150, 150, 255}
	evenDayColor   = color.NRGBA{240, 240, 240, 255}
	oddDayColor    = color.NRGBA{220, 220, 220, 255}
	dayOffColor    = color.NRGBA{210, 214, 220, 160}

	slotFreeColor     = color.RGBA{133, 193, 85, 220}
	slotOccupiedColor = color.RGBA{255, 182, 193, 255}
	slotReservedColor = color.RGBA{255, 200, 120, 230}
	slotBreakColor    = color.RGBA{158, 158, 158, 200}
	slotTextColor     = color.RGBA{20, 24, 28, 230}

	legendItemColor = color.RGBA{70, 74, 78, 220}
)

type weekBounds struct {
	start time.Time
	end   time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

// RenderWeek рисует неделю начиная с weekStart: колонка на день, слоты
// раскрашены по состоянию, маркерные дни затонированы целиком
func RenderWeek(slots []*model.AppointmentSlot, weekStart time.Time) ([]byte, error) {
	week := normalizeToWeekBounds(weekStart)
	slotsByDay := groupSlotsByDay(slots)
	hours := calculateHourRange(slots)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / totalDays
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, week)
	drawHourLabels(dc, hours, cellHeight)

	currentDate := week.start
	for dayIndex := 0; dayIndex < totalDays; dayIndex++ {
		x := float64(leftLabelsWidth + dayIndex*dayWidth)
		y := float64(headerHeight)

		daySlots := slotsByDay[currentDate.Format("2006-01-02")]

		drawDayBackground(dc, x, y, dayWidth, dayHeight, dayIndex, dayOff(daySlots))
		drawDayHeader(dc, currentDate, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)

		for _, slot := range daySlots {
			drawSlot(dc, slot, x, y, dayWidth, hours, cellHeight)
		}

		currentDate = currentDate.AddDate(0, 0, 1)
	}

	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeToWeekBounds нормализует дату к границам недели (Пн-Вс)
func normalizeToWeekBounds(date time.Time) weekBounds {
	normalized := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	daysSinceMonday := int(normalized.Weekday()) - 1
	if normalized.Weekday() == time.Sunday {
		daysSinceMonday = 6
	}

	start := normalized.AddDate(0, 0, -daysSinceMonday)
	return weekBounds{start: start, end: start.AddDate(0, 0, 6)}
}

func groupSlotsByDay(slots []*model.AppointmentSlot) map[string][]*model.AppointmentSlot {
	slotsByDay := make(map[string][]*model.AppointmentSlot)
	for _, slot := range slots {
		dateKey := slot.Date.Format("2006-01-02")
		slotsByDay[dateKey] = append(slotsByDay[dateKey], slot)
	}
	return slotsByDay
}

// dayOff день без единого таймированного слота: праздник, воскресенье
// или временное закрытие
func dayOff(slots []*model.AppointmentSlot) bool {
	if len(slots) == 0 {
		return false
	}
	for _, slot := range slots {
		if !slot.IsMarker() {
			return false
		}
	}
	return true
}

// calculateHourRange определяет диапазон часов для отображения
func calculateHourRange(slots []*model.AppointmentSlot) hourRange {
	minHour := 24
	maxHour := 0

	for _, slot := range slots {
		if slot.StartTime == nil || slot.EndTime == nil {
			continue
		}
		startH := slot.StartTime.Hour()
		endH := slot.EndTime.Hour()
		if slot.EndTime.Minute() > 0 {
			endH++
		}
		if startH < minHour {
			minHour = startH
		}
		if endH > maxHour {
			maxHour = endH
		}
	}

	if minHour == 24 {
		minHour = defaultMinHour
		maxHour = defaultMaxHour
	}

	startHour := minHour - hourPadding
	endHour := maxHour + hourPadding
	if startHour < 0 {
		startHour = 0
	}
	if endHour > 23 {
		endHour = 23
	}

	return hourRange{start: startHour, end: endHour, total: endHour - startHour + 1}
}

func drawHeader(dc *gg.Context, week weekBounds) {
	title := week.start.Format("02.01") + " - " + week.end.Format("02.01.2006")
	dc.SetColor(textColor)
	w, h := dc.MeasureString(title)
	dc.DrawStringAnchored(title, float64(imageWidth)/2-w/2, float64(headerHeight)/2+h/2, 0, 0)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	dc.SetColor(hourLabelColor)
	for hIdx := 0; hIdx < hours.total; hIdx++ {
		y := float64(headerHeight) + float64(hIdx)*cellHeight
		dc.DrawStringAnchored(formatHourLabel(hours.start+hIdx), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int, off bool) {
	switch {
	case off:
		dc.SetColor(dayOffColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+float64(dayWidth)/2, y-24, 0.5, 0)
	dc.DrawStringAnchored(getWeekdayShort(date.Weekday()), x+float64(dayWidth)/2, y-8, 0.5, 0)
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)

	for hIdx := 0; hIdx <= hours.total; hIdx++ {
		hy := y + float64(hIdx)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawSlot(dc *gg.Context, slot *model.AppointmentSlot, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	if slot.StartTime == nil || slot.EndTime == nil {
		return
	}

	slotStartHour := float64(slot.StartTime.Hour()) + float64(slot.StartTime.Minute())/60.0
	slotEndHour := float64(slot.EndTime.Hour()) + float64(slot.EndTime.Minute())/60.0

	slotY := y + (slotStartHour-float64(hours.start))*cellHeight
	slotHeight := (slotEndHour - slotStartHour) * cellHeight
	if slotHeight < minSlotHeight {
		slotHeight = minSlotHeight
	}

	slotWidth := float64(dayWidth) - float64(dayPaddingX*2)

	dc.SetColor(slotColor(slot))
	dc.DrawRoundedRectangle(x+float64(dayPaddingX), slotY+2, slotWidth, slotHeight-4, slotRadius)
	dc.Fill()

	dc.SetColor(slotTextColor)
	dc.DrawStringAnchored(slot.StartTime.Format("15:04"), x+float64(dayPaddingX)+8, slotY+16, 0, 0)

	if slot.Reserved && slot.ReservedReason != nil && slotHeight > 30 {
		reason := *slot.ReservedReason
		if len(reason) > 20 {
			reason = reason[:17] + "..."
		}
		dc.DrawStringAnchored(reason, x+float64(dayPaddingX)+8, slotY+32, 0, 0)
	}
}

func slotColor(slot *model.AppointmentSlot) color.RGBA {
	switch {
	case slot.BreakTime:
		return slotBreakColor
	case slot.Occupied:
		return slotOccupiedColor
	case slot.Reserved:
		return slotReservedColor
	default:
		return slotFreeColor
	}
}

func drawLegend(dc *gg.Context, dayWidth int) {
	legendX := float64(leftLabelsWidth + totalDays*dayWidth + 10)
	legendY := float64(imageHeight) - 120.0

	legendItems := []struct {
		Label string
		Clr   color.Color
	}{
		{"Свободно", slotFreeColor},
		{"Занято", slotOccupiedColor},
		{"Резерв", slotReservedColor},
		{"Перерыв", slotBreakColor},
	}

	boxW := 20.0
	boxH := 14.0
	liY := legendY

	for _, item := range legendItems {
		dc.SetColor(item.Clr)
		dc.DrawRoundedRectangle(legendX, liY, boxW, boxH, 3)
		dc.Fill()

		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.Label, legendX+boxW+8, liY+boxH/2+1, 0, 0.2)
		liY += boxH + 14
	}
}

func formatHourLabel(h int) string {
	if h < 10 {
		return "0" + strconv.Itoa(h) + ":00"
	}
	return strconv.Itoa(h) + ":00"
}

func getWeekdayShort(weekday time.Weekday) string {
	weekdays := map[time.Weekday]string{
		time.Monday:    "Пн",
		time.Tuesday:   "Вт",
		time.Wednesday: "Ср",
		time.Thursday:  "Чт",
		time.Friday:    "Пт",
		time.Saturday:  "Сб",
		time.Sunday:    "Вс",
	}
	return weekdays[weekday]
}
