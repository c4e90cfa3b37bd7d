package interfaces

import (
	"context"
	"time"

	"quote-broadcaster/src/models"
)

// -----------------------------------------------------------------------------
// IMarketClassifier decides whether a symbol is trading at a given instant.
// -----------------------------------------------------------------------------

type IMarketClassifier interface {
	Status(ctx context.Context, symbol models.MCanonicalSymbol, now time.Time) models.MMarketStatus
}
