package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"quote-broadcaster/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type outbound struct {
	connID string
	event  models.MServerEvent
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *FastAPIServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client.id] = client
			s.connections.Store(int64(len(s.clients)))

		case client := <-s.unregister:
			if current, ok := s.clients[client.id]; ok && current == client {
				delete(s.clients, client.id)
				close(client.send)
				s.connections.Store(int64(len(s.clients)))
			}

		case message := <-s.deliver:
			client, ok := s.clients[message.connID]
			if !ok {
				// Dropped between the registry snapshot and delivery
				continue
			}
			select {
			case client.send <- message.event:
			default:
				// Client too slow, disconnect to prevent Hub blocking
				s.Logger.Warning("Dropping slow client %s", client.id)
				delete(s.clients, client.id)
				close(client.send)
				s.connections.Store(int64(len(s.clients)))
			}

		case <-s.quit:
			for id, client := range s.clients {
				delete(s.clients, id)
				close(client.send)
			}
			s.connections.Store(0)
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Deliver queues an event for one connection. Unknown ids are silently ignored.
func (s *FastAPIServer) Deliver(connID string, event string, payload interface{}) {
	select {
	case s.deliver <- outbound{connID: connID, event: models.MServerEvent{Event: event, Data: payload}}:
	case <-s.quit:
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	if !s.secretMatches(c.Query("secret")) {
		s.rejectConnection(conn, c.ClientIP())
		return
	}

	client := &Client{
		id:         uuid.NewString(),
		hub:        s,
		conn:       conn,
		remoteAddr: c.ClientIP(),
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan models.MServerEvent, 256),
	}
	client.setState(models.StateAuthenticated)
	client.send <- models.MServerEvent{
		Event: models.EventConnected,
		Data:  models.MMessage{Message: "Connection established with valid secret key."},
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}
	s.Registry.Register(client.id)
	s.record(client.id, models.SessionConnected, client.remoteAddr, nil)
	s.Logger.Info("Client %s connected from %s", client.id, client.remoteAddr)

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------

// rejectConnection emits the error event, then closes with a policy violation.
// No registry entry is ever created for a rejected connection.
func (s *FastAPIServer) rejectConnection(conn *websocket.Conn, remoteAddr string) {
	defer conn.Close()

	s.Logger.Warning("Unauthorized connection attempt from %s", remoteAddr)
	s.record("", models.SessionRejected, remoteAddr, nil)

	conn.SetWriteDeadline(timeNow().Add(writeWait))
	_ = conn.WriteJSON(models.MServerEvent{
		Event: models.EventError,
		Data:  models.MMessage{Message: "Unauthorized: Invalid secret key."},
	})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid secret"))
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage runs on the client's read pump, so events of one
// connection are applied in arrival order.
func (s *FastAPIServer) HandleClientMessage(client *Client, message []byte) {
	if client.State() != models.StateAuthenticated {
		s.Logger.Debug("Ignoring message from %s in state %v", client.id, client.State())
		return
	}

	var evt models.MClientEvent
	if err := json.Unmarshal(message, &evt); err != nil {
		s.Logger.Warning("Ignoring malformed message from %s: %v", client.id, err)
		return
	}

	switch evt.Event {
	case models.EventRequestData:
		syms := s.Normalizer.NormalizeAll(parseSymbols(evt.Data))
		if len(syms) == 0 {
			s.Logger.Warning("Ignoring %s without symbols from %s", evt.Event, client.id)
			return
		}
		s.Registry.Subscribe(client.id, syms)
		s.record(client.id, models.SessionSubscribed, client.remoteAddr, syms)
		s.Logger.Info("Client %s requested data for %v", client.id, syms)

	case models.EventStopData:
		syms := s.Normalizer.NormalizeAll(parseSymbols(evt.Data))
		if len(syms) == 0 {
			return
		}
		s.Registry.Unsubscribe(client.id, syms)
		s.record(client.id, models.SessionUnsubscribed, client.remoteAddr, syms)
		s.Logger.Info("Client %s stopped data for %v", client.id, syms)

	case "disconnect":
		client.setState(models.StateClosed)
		client.conn.Close()

	default:
		s.Logger.Debug("Ignoring unknown event '%s' from %s", evt.Event, client.id)
	}
}

// -----------------------------------------------------------------------------

// parseSymbols accepts a single string, a comma separated string or an array.
// Non-string array elements are skipped.
func parseSymbols(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.Split(single, ",")
	}

	var many []interface{}
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil
	}
	out := make([]string, 0, len(many))
	for _, v := range many {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
