package market

import (
	"context"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/models"
)

// WindowClassifier marks a recurring weekly closure window as closed.
// It depends only on wall-clock time, never on the feed.
type WindowClassifier struct {
	Location *time.Location
	Weekday  time.Weekday
	Hour     int
	Minute   int
	Duration time.Duration
	Calendar *TradingCalendar
	Holidays bool
}

var _ interfaces.IMarketClassifier = (*WindowClassifier)(nil)

// -----------------------------------------------------------------------------

func (w *WindowClassifier) Status(_ context.Context, _ models.MCanonicalSymbol, now time.Time) models.MMarketStatus {
	if w.InClosure(now) {
		return models.MarketClosed
	}
	if w.Holidays && w.Calendar != nil && w.Calendar.IsHoliday(now) {
		return models.MarketClosed
	}
	return models.MarketOpen
}

// -----------------------------------------------------------------------------

// InClosure reports whether now falls in [start, start+Duration) of the closure
// window that started most recently.
func (w *WindowClassifier) InClosure(now time.Time) bool {
	local := now.In(w.Location)
	start := w.lastWindowStart(local)
	return local.Sub(start) < w.Duration
}

// lastWindowStart is the latest window start at or before local.
func (w *WindowClassifier) lastWindowStart(local time.Time) time.Time {
	back := (int(local.Weekday()) - int(w.Weekday) + 7) % 7
	day := Midnight(local).AddDate(0, 0, -back)
	start := time.Date(day.Year(), day.Month(), day.Day(), w.Hour, w.Minute, 0, 0, w.Location)
	if start.After(local) {
		start = start.AddDate(0, 0, -7)
	}
	return start
}
