package server

import (
	"sync/atomic"
	"time"

	"quote-broadcaster/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var timeNow = time.Now

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	id         string
	hub        *FastAPIServer
	conn       *websocket.Conn
	remoteAddr string
	send       chan models.MServerEvent
	state      atomic.Int32
}

// State is the connection's position in UNAUTHENTICATED -> AUTHENTICATED -> CLOSED.
func (c *Client) State() models.MConnectionState {
	return models.MConnectionState(c.state.Load())
}

func (c *Client) setState(state models.MConnectionState) {
	c.state.Store(int32(state))
}

// -----------------------------------------------------------------------------
// readPump - handles incoming events from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		// Stop future deliveries before anything else
		c.hub.Registry.Drop(c.id)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.setState(models.StateClosed)
		c.conn.Close()
		c.hub.record(c.id, models.SessionDisconnected, c.remoteAddr, nil)
		c.hub.Logger.Info("Client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(timeNow().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(timeNow().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends events to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(timeNow().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(timeNow().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
