// Package cache keeps per-symbol daily extremes and closing snapshots between ticks.
package cache

import (
	"context"
	"sync"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/market"
	"quote-broadcaster/src/models"
)

const dateLayout = "2006-01-02"

// RateCache never returns feed errors; a failed lookup is reported as ok == false.
type RateCache struct {
	feed     interfaces.IQuoteFeed
	calendar *market.TradingCalendar
	logger   *logger.Logger

	mu       sync.Mutex
	extremes map[models.MCanonicalSymbol]models.MDailyExtremes
	closing  map[models.MCanonicalSymbol]models.MClosingSnapshot
}

// -----------------------------------------------------------------------------

func NewRateCache(feed interfaces.IQuoteFeed, cal *market.TradingCalendar, log *logger.Logger) *RateCache {
	return &RateCache{
		feed:     feed,
		calendar: cal,
		logger:   log,
		extremes: make(map[models.MCanonicalSymbol]models.MDailyExtremes),
		closing:  make(map[models.MCanonicalSymbol]models.MClosingSnapshot),
	}
}

// -----------------------------------------------------------------------------

// GetHighLow returns today's high/low, fetching the day's range once per date.
func (c *RateCache) GetHighLow(ctx context.Context, symbol models.MCanonicalSymbol, now time.Time) (float64, float64, bool) {
	date := now.In(c.calendar.Timezone).Format(dateLayout)

	c.mu.Lock()
	ext, ok := c.extremes[symbol]
	c.mu.Unlock()
	if ok && ext.Date == date {
		return ext.High, ext.Low, true
	}

	bar, ok := c.todayBar(ctx, symbol, now)
	if !ok {
		return 0, 0, false
	}
	return bar.High, bar.Low, true
}

// -----------------------------------------------------------------------------

// GetSpecialPeriodHighLow returns the daily bar whose range is reported while
// closed: the prior closing day's bar, or today's on the first trading day of
// the week.
func (c *RateCache) GetSpecialPeriodHighLow(ctx context.Context, symbol models.MCanonicalSymbol, now time.Time) (models.MBar, bool) {
	if c.calendar.IsFirstTradingDay(now) {
		return c.todayBar(ctx, symbol, now)
	}
	return c.priorClosingBar(ctx, symbol, now)
}

// -----------------------------------------------------------------------------

func (c *RateCache) RecordClosingSnapshot(symbol models.MCanonicalSymbol, close, high, low float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closing[symbol] = models.MClosingSnapshot{Close: close, High: high, Low: low, StoredAt: now}
}

// -----------------------------------------------------------------------------

func (c *RateCache) LastClosing(symbol models.MCanonicalSymbol) (models.MClosingSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.closing[symbol]
	return snap, ok
}

// -----------------------------------------------------------------------------

// LoadClosingSnapshot fills the closing snapshot from GetSpecialPeriodHighLow's bar,
// or from the last completed daily bar when there is none.
func (c *RateCache) LoadClosingSnapshot(ctx context.Context, symbol models.MCanonicalSymbol, now time.Time) (models.MClosingSnapshot, bool) {
	bar, ok := c.GetSpecialPeriodHighLow(ctx, symbol, now)
	if !ok {
		if bar, ok = c.lastCompletedBar(ctx, symbol); !ok {
			return models.MClosingSnapshot{}, false
		}
	}

	c.RecordClosingSnapshot(symbol, bar.Close, bar.High, bar.Low, now)
	c.logger.Info("Stored last closing values for %s: Close: %v, High: %v, Low: %v", symbol, bar.Close, bar.High, bar.Low)
	return c.LastClosing(symbol)
}

// -----------------------------------------------------------------------------

// PrimeClosingSnapshots stores the last completed daily bar for every symbol.
// It runs once after login so the closed path has values from the first tick.
func (c *RateCache) PrimeClosingSnapshots(ctx context.Context, symbols []models.MCanonicalSymbol, now time.Time) int {
	stored := 0
	for _, symbol := range symbols {
		bar, ok := c.lastCompletedBar(ctx, symbol)
		if !ok {
			continue
		}
		c.RecordClosingSnapshot(symbol, bar.Close, bar.High, bar.Low, now)
		stored++
	}
	return stored
}

// -----------------------------------------------------------------------------

// todayBar fetches the day's range from local midnight to now and caches its extremes.
func (c *RateCache) todayBar(ctx context.Context, symbol models.MCanonicalSymbol, now time.Time) (models.MBar, bool) {
	local := now.In(c.calendar.Timezone)
	bars, err := c.feed.RatesRange(ctx, symbol, market.Midnight(local), local)
	if err != nil || len(bars) == 0 {
		c.logger.Warning("Failed to get high/low for %s: %v", symbol, err)
		return models.MBar{}, false
	}

	c.mu.Lock()
	c.extremes[symbol] = models.MDailyExtremes{Date: local.Format(dateLayout), High: bars[0].High, Low: bars[0].Low}
	c.mu.Unlock()
	return bars[0], true
}

func (c *RateCache) priorClosingBar(ctx context.Context, symbol models.MCanonicalSymbol, now time.Time) (models.MBar, bool) {
	day := c.calendar.PriorClosingDay(now)
	end := day.AddDate(0, 0, 1).Add(-time.Second)
	bars, err := c.feed.RatesRange(ctx, symbol, day, end)
	if err != nil || len(bars) == 0 {
		c.logger.Debug("No bar for %s on %s: %v", symbol, day.Format(dateLayout), err)
		return models.MBar{}, false
	}
	return bars[0], true
}

func (c *RateCache) lastCompletedBar(ctx context.Context, symbol models.MCanonicalSymbol) (models.MBar, bool) {
	bars, err := c.feed.RatesFrom(ctx, symbol, 1, 1)
	if err != nil || len(bars) == 0 {
		c.logger.Error("Failed to retrieve last closing values for %s: %v", symbol, err)
		return models.MBar{}, false
	}
	return bars[0], true
}
