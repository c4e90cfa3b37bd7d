package helpers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"quote-broadcaster/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedError_WrapsCause(t *testing.T) {
	err := NewFeedError("tick", "XAUUSD", ErrNoData)

	assert.True(t, errors.Is(err, ErrNoData))
	assert.Equal(t, "feed tick XAUUSD: quote feed returned no data", err.Error())

	var fe *FeedError
	require.True(t, errors.As(error(err), &fe))
	assert.Equal(t, "XAUUSD", fe.Symbol)

	noSymbol := NewFeedError("login", "", ErrNotLoggedIn)
	assert.Equal(t, "feed login: quote feed session is not logged in", noSymbol.Error())
}

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	log := logger.NewLoggerWithWriter(io.Discard, "DEBUG", "test")
	calls := 0

	err := RetryWithBackoff(context.Background(), log, "login", 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ReturnsLastError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	err := RetryWithBackoff(context.Background(), nil, "login", 2, time.Millisecond, func(context.Context) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := RetryWithBackoff(ctx, nil, "login", 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}
