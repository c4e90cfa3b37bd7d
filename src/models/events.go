package models

import (
	"encoding/json"
	"time"
)

// Event names of the real-time channel.
const (
	EventConnected   = "connected"
	EventMarketData  = "market-data"
	EventError       = "error"
	EventRequestData = "request-data"
	EventStopData    = "stop-data"
)

// -----------------------------------------------------------------------------

// MClientEvent is the envelope exchanged over the websocket in both directions.
type MClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MServerEvent is an outbound envelope whose payload is marshalled lazily by the write pump.
type MServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// MMessage is the payload of connected / error events.
type MMessage struct {
	Message string `json:"message"`
}

// -----------------------------------------------------------------------------

// MConnectionState tracks a gateway connection through its lifecycle.
type MConnectionState int

const (
	StateUnauthenticated MConnectionState = iota
	StateAuthenticated
	StateClosed
)

func (s MConnectionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateClosed:
		return "CLOSED"
	}
	return "INVALID"
}

// -----------------------------------------------------------------------------

// MSessionEvent is one audit row describing gateway activity.
type MSessionEvent struct {
	ConnectionID string    `json:"connection_id"`
	Kind         string    `json:"kind"` // connected, rejected, subscribed, unsubscribed, disconnected
	Symbols      []string  `json:"symbols,omitempty"`
	RemoteAddr   string    `json:"remote_addr"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	SessionConnected    = "connected"
	SessionRejected     = "rejected"
	SessionSubscribed   = "subscribed"
	SessionUnsubscribed = "unsubscribed"
	SessionDisconnected = "disconnected"
)
