package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"quote-broadcaster/src/helpers"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(retries int) *AsyncNetworkManager {
	nm := NewAsyncNetworkManager(&models.MFeedConfig{RequestTimeout: 2, MaxRetries: retries},
		logger.NewLoggerWithWriter(io.Discard, "DEBUG", "net"))
	nm.RetryDelay = time.Millisecond
	return nm
}

func TestGet_SendsParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "D1", r.URL.Query().Get("timeframe"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := newManager(0).Get(context.Background(), srv.URL, map[string]string{"timeframe": "D1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newManager(2).Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGet_NotFoundIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newManager(3).Get(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, helpers.ErrNoData)
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newManager(3).Get(context.Background(), srv.URL, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_EncodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "demo", got["server"])
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newManager(0).PostJSON(context.Background(), srv.URL, map[string]string{"server": "demo"})
	require.NoError(t, err)
}
