package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"quote-broadcaster/src/helpers"
	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"
	"quote-broadcaster/src/network"

	"golang.org/x/sync/singleflight"
)

// Timeframe requested for every rates call; the service only works with daily bars.
const TimeframeD1 = "D1"

// -----------------------------------------------------------------------------

// Client talks to the trading terminal through its HTTP bridge.
// All calls except Login fail with helpers.ErrNotLoggedIn until a login succeeds.
type Client struct {
	cfg      *models.MFeedConfig
	net      interfaces.INetworkManager
	logger   *logger.Logger
	loggedIn atomic.Bool
	group    singleflight.Group
}

var _ interfaces.IQuoteFeed = (*Client)(nil)

// -----------------------------------------------------------------------------

func NewClient(cfg *models.MFeedConfig, nm interfaces.INetworkManager, log *logger.Logger) *Client {
	return &Client{cfg: cfg, net: nm, logger: log}
}

// -----------------------------------------------------------------------------

type loginRequest struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

type loginResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Login opens the terminal session. Concurrent callers share one in-flight attempt.
func (c *Client) Login(ctx context.Context) error {
	return c.login(ctx, false)
}

// login runs inside the singleflight group. With reuse set, a session opened by
// an attempt that finished after the caller's own check is kept.
func (c *Client) login(ctx context.Context, reuse bool) error {
	_, err, _ := c.group.Do("login", func() (interface{}, error) {
		if reuse && c.loggedIn.Load() {
			return nil, nil
		}

		body, err := c.net.PostJSON(ctx, c.endpoint("login"), loginRequest{
			Login:    c.cfg.Login,
			Password: c.cfg.Password,
			Server:   c.cfg.Server,
		})
		if err != nil {
			return nil, helpers.NewFeedError("login", "", err)
		}

		var resp loginResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, helpers.NewFeedError("login", "", fmt.Errorf("decode response: %w", err))
		}
		if !resp.OK {
			return nil, helpers.NewFeedError("login", "", fmt.Errorf("rejected: %s", resp.Message))
		}

		c.loggedIn.Store(true)
		c.logger.Info("Logged in to quote feed as %d on %s", c.cfg.Login, c.cfg.Server)
		return nil, nil
	})
	return err
}

// -----------------------------------------------------------------------------

// LoggedIn reports whether the last login succeeded and the session was not lost since.
func (c *Client) LoggedIn() bool {
	return c.loggedIn.Load()
}

// -----------------------------------------------------------------------------

// EnsureSession logs in again when the session has been lost.
func (c *Client) EnsureSession(ctx context.Context) error {
	if c.LoggedIn() {
		return nil
	}
	return c.login(ctx, true)
}

// -----------------------------------------------------------------------------

type selectResponse struct {
	Selected bool `json:"selected"`
}

func (c *Client) SelectSymbol(ctx context.Context, symbol models.MCanonicalSymbol) error {
	var resp selectResponse
	if err := c.post(ctx, "select", symbol, c.endpoint("symbols", string(symbol), "select"), &resp); err != nil {
		return err
	}
	if !resp.Selected {
		return helpers.NewFeedError("select", string(symbol), helpers.ErrSymbolUnavailable)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Client) SymbolInfo(ctx context.Context, symbol models.MCanonicalSymbol) (*models.MSymbolInfo, error) {
	var info models.MSymbolInfo
	if err := c.get(ctx, "symbol_info", symbol, c.endpoint("symbols", string(symbol)), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// -----------------------------------------------------------------------------

type tickResponse struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Time int64   `json:"time"`
}

func (c *Client) Tick(ctx context.Context, symbol models.MCanonicalSymbol) (*models.MTick, error) {
	var resp *tickResponse
	if err := c.get(ctx, "tick", symbol, c.endpoint("symbols", string(symbol), "tick"), nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, helpers.NewFeedError("tick", string(symbol), helpers.ErrNoData)
	}
	return &models.MTick{Bid: resp.Bid, Ask: resp.Ask, Time: time.Unix(resp.Time, 0).UTC()}, nil
}

// -----------------------------------------------------------------------------

type barResponse struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func (c *Client) RatesRange(ctx context.Context, symbol models.MCanonicalSymbol, from, to time.Time) ([]models.MBar, error) {
	params := map[string]string{
		"timeframe": TimeframeD1,
		"from":      strconv.FormatInt(from.Unix(), 10),
		"to":        strconv.FormatInt(to.Unix(), 10),
	}
	return c.rates(ctx, "rates_range", symbol, params)
}

func (c *Client) RatesFrom(ctx context.Context, symbol models.MCanonicalSymbol, startPos, count int) ([]models.MBar, error) {
	params := map[string]string{
		"timeframe": TimeframeD1,
		"start_pos": strconv.Itoa(startPos),
		"count":     strconv.Itoa(count),
	}
	return c.rates(ctx, "rates_from", symbol, params)
}

func (c *Client) rates(ctx context.Context, op string, symbol models.MCanonicalSymbol, params map[string]string) ([]models.MBar, error) {
	var resp []barResponse
	if err := c.get(ctx, op, symbol, c.endpoint("symbols", string(symbol), "rates"), params, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, helpers.NewFeedError(op, string(symbol), helpers.ErrNoData)
	}

	bars := make([]models.MBar, 0, len(resp))
	for _, b := range resp {
		bars = append(bars, models.MBar{
			Time:  time.Unix(b.Time, 0).UTC(),
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		})
	}
	return bars, nil
}

// -----------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, op string, symbol models.MCanonicalSymbol, u string, params map[string]string, out interface{}) error {
	if !c.LoggedIn() {
		return helpers.NewFeedError(op, string(symbol), helpers.ErrNotLoggedIn)
	}
	body, err := c.net.Get(ctx, u, params)
	return c.decode(op, symbol, body, err, out)
}

func (c *Client) post(ctx context.Context, op string, symbol models.MCanonicalSymbol, u string, out interface{}) error {
	if !c.LoggedIn() {
		return helpers.NewFeedError(op, string(symbol), helpers.ErrNotLoggedIn)
	}
	body, err := c.net.PostJSON(ctx, u, struct{}{})
	return c.decode(op, symbol, body, err, out)
}

func (c *Client) decode(op string, symbol models.MCanonicalSymbol, body []byte, err error, out interface{}) error {
	if err != nil {
		var se *network.StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			// Terminal dropped the session; next EnsureSession logs in again.
			if c.loggedIn.CompareAndSwap(true, false) {
				c.logger.Warning("Quote feed session lost during %s", op)
			}
			err = helpers.ErrNotLoggedIn
		}
		return helpers.NewFeedError(op, string(symbol), err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return helpers.NewFeedError(op, string(symbol), fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}
