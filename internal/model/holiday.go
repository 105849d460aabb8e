package model

// Holiday праздничный день. Сама сущность несёт только идентичность,
// отображаемое имя лежит в holiday_translations по языку.
type Holiday struct {
	ID int64 `json:"id"`
}

// HolidayTranslation локализованное имя праздника
type HolidayTranslation struct {
	ID         int64  `json:"id"`
	HolidayID  int64  `json:"holiday_id"`
	LanguageID int64  `json:"language_id"`
	Name       string `json:"name"`
}

// Language поддерживаемый язык переводов
type Language struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
