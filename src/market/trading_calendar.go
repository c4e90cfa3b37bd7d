package market

import (
	"strings"
	"time"

	"quote-broadcaster/src/logger"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers which dates are trading days in the reference timezone.
// Without an exchange calendar every Monday to Friday is a trading day.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// NewTradingCalendar loads the exchange calendar for mic (ISO 10383, e.g. "xnys").
// An empty or unknown mic yields the weekday-only fallback.
func NewTradingCalendar(mic string, loc *time.Location, log *logger.Logger) *TradingCalendar {
	if loc == nil {
		loc = time.UTC
	}

	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		return &TradingCalendar{Fallback: true, Timezone: loc}
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		if log != nil {
			log.Warning("Failed to load holiday calendar for MIC '%s'. Using Mon-Fri fallback.", mic)
		}
		return &TradingCalendar{Fallback: true, Timezone: loc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	weekday := date.In(tc.Timezone).Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}
	return !tc.IsHoliday(date)
}

// -----------------------------------------------------------------------------

// IsHoliday reports an exchange holiday falling on a weekday. Weekends are not
// holidays; the fallback calendar has none.
func (tc *TradingCalendar) IsHoliday(date time.Time) bool {
	date = date.In(tc.Timezone)
	if tc.Fallback || date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false
	}

	// Ask the exchange about the same civil date, at midday in its own zone.
	y, m, d := date.Date()
	return !tc.Calendar.IsBusinessDay(time.Date(y, m, d, 12, 0, 0, 0, tc.Calendar.Loc))
}

// -----------------------------------------------------------------------------

// PriorClosingDay returns midnight of the latest trading day on or before now's date.
func (tc *TradingCalendar) PriorClosingDay(now time.Time) time.Time {
	day := Midnight(now.In(tc.Timezone))
	for i := 0; i < 14; i++ {
		if tc.IsTradingDay(day) {
			return day
		}
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// -----------------------------------------------------------------------------

// IsFirstTradingDay reports whether now's date is the first trading day of its week.
func (tc *TradingCalendar) IsFirstTradingDay(now time.Time) bool {
	day := Midnight(now.In(tc.Timezone))
	if !tc.IsTradingDay(day) {
		return false
	}
	for d := day.AddDate(0, 0, -1); d.Weekday() != time.Sunday; d = d.AddDate(0, 0, -1) {
		if tc.IsTradingDay(d) {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------

// Midnight truncates t to the start of its civil day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
