package market

import (
	"fmt"
	"time"

	"quote-broadcaster/src/config"
	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
)

const (
	StrategyCalendar = "calendar"
	StrategyFeed     = "feed"
)

// NewClassifier builds the classifier selected by market.status_strategy.
func NewClassifier(cfg *config.Config, feed interfaces.IQuoteFeed, cal *TradingCalendar, log *logger.Logger) (interfaces.IMarketClassifier, error) {
	switch cfg.Market.StatusStrategy {
	case StrategyFeed:
		return &FeedStatusClassifier{Feed: feed, Logger: log}, nil
	case StrategyCalendar:
		weekday, err := cfg.CloseWeekday()
		if err != nil {
			return nil, err
		}
		hour, minute, err := cfg.CloseClock()
		if err != nil {
			return nil, err
		}
		return &WindowClassifier{
			Location: cfg.Location(),
			Weekday:  weekday,
			Hour:     hour,
			Minute:   minute,
			Duration: time.Duration(cfg.Market.ClosureHours) * time.Hour,
			Calendar: cal,
			Holidays: cfg.Market.HolidayCalendar != "",
		}, nil
	}
	return nil, fmt.Errorf("unknown market status strategy '%s'", cfg.Market.StatusStrategy)
}
