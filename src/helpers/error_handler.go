package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quote-broadcaster/src/logger"
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotLoggedIn is returned by feed calls made before a successful login.
	ErrNotLoggedIn = errors.New("quote feed session is not logged in")
	// ErrNoData is returned when the feed answered but had nothing for the request.
	ErrNoData = errors.New("quote feed returned no data")
	// ErrSymbolUnavailable is returned when the terminal cannot select a symbol.
	ErrSymbolUnavailable = errors.New("symbol is not available on the quote feed")
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type BroadcasterError struct {
	Message string
	Cause   error
}

func (e *BroadcasterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BroadcasterError) Unwrap() error {
	return e.Cause
}

type ConfigurationError struct{ BroadcasterError }
type ValidationError struct{ BroadcasterError }

// -----------------------------------------------------------------------------

// FeedError describes a failed call against the quote feed provider.
type FeedError struct {
	Op     string
	Symbol string
	Cause  error
}

func NewFeedError(op, symbol string, cause error) *FeedError {
	return &FeedError{Op: op, Symbol: symbol, Cause: cause}
}

func (e *FeedError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("feed %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("feed %s %s: %v", e.Op, e.Symbol, e.Cause)
}

func (e *FeedError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts fn up to maxRetries times, doubling baseDelay between attempts.
// It stops early when ctx is cancelled and returns the last error seen.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &BroadcasterError{Message: fmt.Sprintf("%s cancelled", operation), Cause: ctx.Err()}
		}
	}

	return &BroadcasterError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}
}
