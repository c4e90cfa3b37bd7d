package interfaces

import (
	"context"
	"time"

	"quote-broadcaster/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteFeed is the trading terminal the service reads prices from.
// -----------------------------------------------------------------------------

type IQuoteFeed interface {

	// Login opens the terminal session. It must succeed before any other call.
	Login(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// SelectSymbol makes the symbol visible in the terminal's market watch.
	SelectSymbol(ctx context.Context, symbol models.MCanonicalSymbol) error

	// -----------------------------------------------------------------------------

	// SymbolInfo returns the trade mode and name of a symbol.
	SymbolInfo(ctx context.Context, symbol models.MCanonicalSymbol) (*models.MSymbolInfo, error)

	// -----------------------------------------------------------------------------

	// Tick returns the latest bid/ask, or helpers.ErrNoData when there is none.
	Tick(ctx context.Context, symbol models.MCanonicalSymbol) (*models.MTick, error)

	// -----------------------------------------------------------------------------

	// RatesRange returns daily bars whose open time falls in [from, to].
	RatesRange(ctx context.Context, symbol models.MCanonicalSymbol, from, to time.Time) ([]models.MBar, error)

	// -----------------------------------------------------------------------------

	// RatesFrom returns count daily bars starting startPos bars back from the current one.
	RatesFrom(ctx context.Context, symbol models.MCanonicalSymbol, startPos, count int) ([]models.MBar, error)
}

// -----------------------------------------------------------------------------
// IFeedSession exposes the process-wide login state of the feed.
// -----------------------------------------------------------------------------

type IFeedSession interface {

	// EnsureSession logs in again if the session was lost. Concurrent calls share one attempt.
	EnsureSession(ctx context.Context) error

	// -----------------------------------------------------------------------------

	LoggedIn() bool
}
