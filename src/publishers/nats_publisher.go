package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quote-broadcaster/src/interfaces"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"

	"github.com/nats-io/nats.go"
)

// -----------------------------------------------------------------------------
// NATSPublisher mirrors every resolved snapshot to NATS core subjects
// -----------------------------------------------------------------------------

type NATSPublisher struct {
	name   string
	config *models.MNATSConfig
	logger *logger.Logger

	mu        sync.RWMutex
	nc        *nats.Conn
	connected bool
}

var _ interfaces.ISnapshotPublisher = (*NATSPublisher)(nil)

// -----------------------------------------------------------------------------

func NewNATSPublisher(config *models.MNATSConfig, logger *logger.Logger) *NATSPublisher {
	return &NATSPublisher{
		name:   config.ClientID,
		config: config,
		logger: logger,
	}
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) Name() string {
	return "nats"
}

// -----------------------------------------------------------------------------

// Connect establishes the NATS connection. Reconnects are handled by the client library.
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc != nil && np.nc.IsConnected() {
		return nil
	}

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(time.Duration(np.config.ConnectTimeout) * time.Second),
		nats.MaxReconnects(np.config.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS connected to %s", np.name, nc.ConnectedUrl())
			np.setConnected(true)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Warning("%s : NATS connection closed", np.name)
			np.setConnected(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
			np.setConnected(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS reconnected to %s", np.name, nc.ConnectedUrl())
			np.setConnected(true)
		}),
	}

	nc, err := nats.Connect(np.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	np.nc = nc
	np.connected = nc.IsConnected()
	np.logger.Info("%s : NATS mirror ready at %s", np.name, np.config.URL)
	return nil
}

// -----------------------------------------------------------------------------

// Publish sends one message per snapshot to <prefix>.<symbol>. Fire-and-forget.
func (np *NATSPublisher) Publish(_ context.Context, snapshots []models.MOutboundSnapshot) error {
	if !np.IsConnected() {
		return fmt.Errorf("nats client not connected")
	}

	for _, snap := range snapshots {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to serialize snapshot for %s: %w", snap.Symbol, err)
		}
		if err := np.nc.Publish(np.Subject(snap.Symbol), data); err != nil {
			return fmt.Errorf("nats publish %s: %w", snap.Symbol, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close closes the NATS connection
func (np *NATSPublisher) Close() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil || np.nc.IsClosed() {
		return nil
	}
	np.nc.Close()
	np.connected = false
	np.logger.Info("%s : NATS connection closed successfully", np.name)
	return nil
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) IsConnected() bool {
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.connected
}

func (np *NATSPublisher) setConnected(status bool) {
	np.mu.Lock()
	np.connected = status
	np.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Subject prepends the configured prefix to the symbol.
func (np *NATSPublisher) Subject(symbol string) string {
	symbol = safe(symbol)
	if np.config.SubjectPrefix != "" {
		return fmt.Sprintf("%s.%s", np.config.SubjectPrefix, symbol)
	}
	return symbol
}
