package market

import (
	"context"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"
)

// FeedStatusClassifier asks the terminal for the symbol's trade mode.
type FeedStatusClassifier struct {
	Feed   interfaces.IQuoteFeed
	Logger *logger.Logger
}

var _ interfaces.IMarketClassifier = (*FeedStatusClassifier)(nil)

// -----------------------------------------------------------------------------

func (f *FeedStatusClassifier) Status(ctx context.Context, symbol models.MCanonicalSymbol, _ time.Time) models.MMarketStatus {
	info, err := f.Feed.SymbolInfo(ctx, symbol)
	if err != nil {
		f.Logger.Error("Failed to get symbol info for %s: %v", symbol, err)
		return models.MarketUnknown
	}

	switch info.TradeMode {
	case models.TradeModeFull:
		return models.MarketOpen
	case models.TradeModeDisabled:
		return models.MarketClosed
	default:
		return models.MarketUnknown
	}
}
