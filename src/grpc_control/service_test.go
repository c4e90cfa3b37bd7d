package grpc_control

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"quote-broadcaster/src/config"
	"quote-broadcaster/src/logger"
	"quote-broadcaster/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newTestService(t *testing.T) (*ControlService, healthpb.HealthClient) {
	t.Helper()
	cfg := &config.Config{MConfig: &models.MConfig{Name: "quotes-test"}}
	svc := NewControlService(cfg, logger.NewLoggerWithWriter(io.Discard, "DEBUG", "grpc"))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = svc.Serve(lis) }()
	t.Cleanup(svc.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return svc, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestControlService_OverallServing(t *testing.T) {
	_, client := newTestService(t)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
}

func TestControlService_FeedStatusFollowsSession(t *testing.T) {
	svc, client := newTestService(t)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, FeedService))

	svc.SetFeedServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, FeedService))

	svc.SetFeedServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, FeedService))
}

func TestControlService_HealthServerDirect(t *testing.T) {
	cfg := &config.Config{MConfig: &models.MConfig{}}
	svc := NewControlService(cfg, nil)
	svc.SetFeedServing(true)

	resp, err := svc.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: FeedService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
