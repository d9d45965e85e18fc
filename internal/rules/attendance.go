package rules

import (
	"strings"
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
)

// ComposeAttendance folds an amending event into the prior day code. An empty
// prior means no record exists yet. Late and early events always imply
// presence, so a prior absent mark is overwritten.
func ComposeAttendance(prior models.AttendanceCode, event models.AttendanceEventKind) models.AttendanceCode {
	late, early := false, false
	switch prior {
	case models.AttendanceLate:
		late = true
	case models.AttendanceEarly:
		early = true
	case models.AttendanceLateEarly:
		late, early = true, true
	}

	switch event {
	case models.AttendanceEventLate:
		late = true
	case models.AttendanceEventEarly:
		early = true
	}

	switch {
	case late && early:
		return models.AttendanceLateEarly
	case late:
		return models.AttendanceLate
	case early:
		return models.AttendanceEarly
	default:
		return prior
	}
}

// IsBaseMark reports whether a code may be submitted through a roll call.
func IsBaseMark(code models.AttendanceCode) bool {
	return code == models.AttendancePresent || code == models.AttendanceAbsent
}

// ParseAttendanceCode normalises a composite code.
func ParseAttendanceCode(value string) (models.AttendanceCode, bool) {
	code := models.AttendanceCode(strings.ToUpper(strings.TrimSpace(value)))
	switch code {
	case models.AttendancePresent, models.AttendanceAbsent,
		models.AttendanceLate, models.AttendanceEarly, models.AttendanceLateEarly:
		return code, true
	default:
		return "", false
	}
}

// ValidDate reports whether value is a YYYY-MM-DD calendar date.
func ValidDate(value string) bool {
	_, err := time.Parse(models.DateLayout, value)
	return err == nil
}

// ValidClock reports whether value is an HH:MM time of day.
func ValidClock(value string) bool {
	_, err := time.Parse("15:04", value)
	return err == nil
}

// MonthRange returns the first and last calendar dates of a month.
func MonthRange(year, month int) (string, string, bool) {
	if month < 1 || month > 12 || year < 1 {
		return "", "", false
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format(models.DateLayout), last.Format(models.DateLayout), true
}
