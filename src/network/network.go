package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"quote-broadcaster/src/helpers"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"
)

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.Code, e.Body)
}

// -----------------------------------------------------------------------------

type AsyncNetworkManager struct {
	Config     *models.MFeedConfig
	Client     *http.Client
	Logger     *logger.Logger
	RetryDelay time.Duration
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MFeedConfig, log *logger.Logger) *AsyncNetworkManager {
	return &AsyncNetworkManager{
		Config: cfg,
		Client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		Logger:     log,
		RetryDelay: 200 * time.Millisecond,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	return nm.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	})
}

// -----------------------------------------------------------------------------

// PostJSON performs a POST with a JSON body and retries.
func (nm *AsyncNetworkManager) PostJSON(ctx context.Context, urlStr string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	return nm.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// -----------------------------------------------------------------------------

// do retries transport errors, 429 and 5xx. 404 maps to helpers.ErrNoData.
func (nm *AsyncNetworkManager) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	maxRetries := nm.Config.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(nm.RetryDelay * time.Duration(i*i)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := nm.Client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			nm.Logger.Debug("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, helpers.ErrNoData
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
			nm.Logger.Debug("Retryable status %d (attempt %d/%d)", resp.StatusCode, i+1, maxRetries+1)
			continue
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		if readErr != nil {
			lastErr = readErr
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
