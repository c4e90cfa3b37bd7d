// Package feedtest provides an in-memory quote feed for tests.
package feedtest

import (
	"context"
	"sync"
	"time"

	"quote-broadcaster/src/helpers"
	"quote-broadcaster/src/models"
)

// Feed is a scriptable IQuoteFeed. The zero value is not usable; call New.
type Feed struct {
	mu sync.Mutex

	Session   bool
	LoginErr  error
	Ticks     map[models.MCanonicalSymbol]*models.MTick
	Infos     map[models.MCanonicalSymbol]*models.MSymbolInfo
	Daily     map[models.MCanonicalSymbol][]models.MBar
	Prior     map[models.MCanonicalSymbol]models.MBar
	SelectErr map[models.MCanonicalSymbol]error
	PanicOn   map[models.MCanonicalSymbol]bool

	Calls map[string]int
}

func New() *Feed {
	return &Feed{
		Session:   true,
		Ticks:     map[models.MCanonicalSymbol]*models.MTick{},
		Infos:     map[models.MCanonicalSymbol]*models.MSymbolInfo{},
		Daily:     map[models.MCanonicalSymbol][]models.MBar{},
		Prior:     map[models.MCanonicalSymbol]models.MBar{},
		SelectErr: map[models.MCanonicalSymbol]error{},
		PanicOn:   map[models.MCanonicalSymbol]bool{},
		Calls:     map[string]int{},
	}
}

// -----------------------------------------------------------------------------

func (f *Feed) SetTick(symbol models.MCanonicalSymbol, bid float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ticks[symbol] = &models.MTick{Bid: bid, Ask: bid, Time: time.Now()}
}

func (f *Feed) SetTradeMode(symbol models.MCanonicalSymbol, mode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Infos[symbol] = &models.MSymbolInfo{Name: string(symbol), TradeMode: mode}
}

// AddDaily appends a daily bar opening at the given instant.
func (f *Feed) AddDaily(symbol models.MCanonicalSymbol, open time.Time, high, low, close float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Daily[symbol] = append(f.Daily[symbol], models.MBar{Time: open, Open: close, High: high, Low: low, Close: close})
}

func (f *Feed) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *Feed) record(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[op]++
	return f.Session
}

// -----------------------------------------------------------------------------

func (f *Feed) Login(ctx context.Context) error {
	f.record("login")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoginErr != nil {
		return f.LoginErr
	}
	f.Session = true
	return nil
}

func (f *Feed) LoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Session
}

func (f *Feed) EnsureSession(ctx context.Context) error {
	f.mu.Lock()
	ok := f.Session
	f.mu.Unlock()
	if ok {
		return nil
	}
	return f.Login(ctx)
}

func (f *Feed) SelectSymbol(ctx context.Context, symbol models.MCanonicalSymbol) error {
	if !f.record("select") {
		return helpers.ErrNotLoggedIn
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PanicOn[symbol] {
		panic("feed exploded on " + string(symbol))
	}
	return f.SelectErr[symbol]
}

func (f *Feed) SymbolInfo(ctx context.Context, symbol models.MCanonicalSymbol) (*models.MSymbolInfo, error) {
	if !f.record("symbol_info") {
		return nil, helpers.ErrNotLoggedIn
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.Infos[symbol]
	if !ok {
		return nil, helpers.ErrNoData
	}
	cp := *info
	return &cp, nil
}

func (f *Feed) Tick(ctx context.Context, symbol models.MCanonicalSymbol) (*models.MTick, error) {
	if !f.record("tick") {
		return nil, helpers.ErrNotLoggedIn
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.Ticks[symbol]
	if !ok {
		return nil, helpers.NewFeedError("tick", string(symbol), helpers.ErrNoData)
	}
	cp := *t
	return &cp, nil
}

func (f *Feed) RatesRange(ctx context.Context, symbol models.MCanonicalSymbol, from, to time.Time) ([]models.MBar, error) {
	if !f.record("rates_range") {
		return nil, helpers.ErrNotLoggedIn
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MBar
	for _, b := range f.Daily[symbol] {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, helpers.NewFeedError("rates_range", string(symbol), helpers.ErrNoData)
	}
	return out, nil
}

func (f *Feed) RatesFrom(ctx context.Context, symbol models.MCanonicalSymbol, startPos, count int) ([]models.MBar, error) {
	if !f.record("rates_from") {
		return nil, helpers.ErrNotLoggedIn
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.Prior[symbol]
	if !ok {
		return nil, helpers.NewFeedError("rates_from", string(symbol), helpers.ErrNoData)
	}
	return []models.MBar{b}, nil
}
