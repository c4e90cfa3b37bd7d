package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gold = models.MOutboundSnapshot{Symbol: "Gold", Bid: 2345.5, High: 2350, Low: 2330, MarketStatus: models.MarketOpen}

func TestNewRedisPublisher_Defaults(t *testing.T) {
	p := NewRedisPublisher(nil, 0, "")
	assert.Equal(t, time.Minute, p.ttl)
	assert.Equal(t, "quotes:GOLD", p.Key("Gold"))
	assert.Equal(t, "quotes:A_B", p.Key("a:b"))

	// A publisher without a client is a no-op.
	assert.NoError(t, p.Publish(context.Background(), []models.MOutboundSnapshot{gold}))
}

func TestRedisPublisher_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewRedisPublisher(db, 30*time.Second, "metals")

	b, err := json.Marshal(gold)
	require.NoError(t, err)
	mock.ExpectSet("metals:GOLD", b, 30*time.Second).SetVal("OK")

	require.NoError(t, p.Publish(context.Background(), []models.MOutboundSnapshot{gold}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_PublishContinuesPastErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewRedisPublisher(db, time.Minute, "quotes")

	silver := models.MOutboundSnapshot{Symbol: "Silver", Bid: 30, MarketStatus: models.MarketClosed}
	bg, _ := json.Marshal(gold)
	bs, _ := json.Marshal(silver)
	mock.ExpectSet("quotes:GOLD", bg, time.Minute).SetErr(errors.New("connection refused"))
	mock.ExpectSet("quotes:SILVER", bs, time.Minute).SetVal("OK")

	err := p.Publish(context.Background(), []models.MOutboundSnapshot{gold, silver})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gold")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNATSPublisher_Subject(t *testing.T) {
	log := logger.NewLoggerWithWriter(io.Discard, "DEBUG", "nats")

	p := NewNATSPublisher(&models.MNATSConfig{SubjectPrefix: "quotes"}, log)
	assert.Equal(t, "quotes.Gold", p.Subject("Gold"))
	assert.Equal(t, "quotes.EUR_USD", p.Subject("EUR.USD"))

	bare := NewNATSPublisher(&models.MNATSConfig{}, log)
	assert.Equal(t, "Gold", bare.Subject("Gold"))
}

func TestNATSPublisher_PublishRequiresConnection(t *testing.T) {
	p := NewNATSPublisher(&models.MNATSConfig{ClientID: "test"}, logger.NewLoggerWithWriter(io.Discard, "DEBUG", "nats"))

	assert.False(t, p.IsConnected())
	assert.Error(t, p.Publish(context.Background(), []models.MOutboundSnapshot{gold}))
	assert.NoError(t, p.Close())
}
