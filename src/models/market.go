package models

import "time"

// MCanonicalSymbol is the code an instrument is keyed by inside the service (e.g. "XAUUSD").
type MCanonicalSymbol string

// -----------------------------------------------------------------------------

// MMarketStatus is derived on every tick and never stored.
type MMarketStatus string

const (
	MarketOpen    MMarketStatus = "open"
	MarketClosed  MMarketStatus = "closed"
	MarketUnknown MMarketStatus = "unknown"
)

// -----------------------------------------------------------------------------

// MTick is a single bid/ask observation.
type MTick struct {
	Bid  float64   `json:"bid"`
	Ask  float64   `json:"ask"`
	Time time.Time `json:"time"`
}

// MBar is an aggregated OHLC observation over one timeframe period.
type MBar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// -----------------------------------------------------------------------------

// Trade modes reported by the terminal for a symbol.
const (
	TradeModeDisabled  = 0
	TradeModeLongOnly  = 1
	TradeModeShortOnly = 2
	TradeModeCloseOnly = 3
	TradeModeFull      = 4
)

// MSymbolInfo is the subset of terminal symbol metadata the service needs.
type MSymbolInfo struct {
	Name      string `json:"name"`
	TradeMode int    `json:"trade_mode"`
}

// -----------------------------------------------------------------------------

// MDailyExtremes holds the high/low of one symbol for one calendar date.
type MDailyExtremes struct {
	Date string // 2006-01-02 in the reference timezone
	High float64
	Low  float64
}

// MClosingSnapshot is the most recent observation captured while the market was open.
type MClosingSnapshot struct {
	Close    float64   `json:"close"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	StoredAt time.Time `json:"stored_at"`
}

// -----------------------------------------------------------------------------

// MOutboundSnapshot is the market-data payload pushed to clients.
type MOutboundSnapshot struct {
	Symbol       string        `json:"symbol"`
	Bid          float64       `json:"bid"`
	High         float64       `json:"high"`
	Low          float64       `json:"low"`
	MarketStatus MMarketStatus `json:"marketStatus"`
}
