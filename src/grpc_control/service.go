package grpc_control

import (
	"fmt"
	"net"
	"sync"

	"quote-broadcaster/src/config"
	"quote-broadcaster/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// FeedService is the health service name reflecting the quote feed session.
const FeedService = "quotes.Feed"

// -----------------------------------------------------------------------------

// ControlService exposes grpc.health.v1 for orchestrators probing the broadcaster.
type ControlService struct {
	Config *config.Config
	Logger *logger.Logger

	health *health.Server
	server *grpc.Server

	mu       sync.Mutex
	listener net.Listener
}

// -----------------------------------------------------------------------------

func NewControlService(cfg *config.Config, log *logger.Logger) *ControlService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(FeedService, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &ControlService{
		Config: cfg,
		Logger: log,
		health: hs,
		server: srv,
	}
}

// -----------------------------------------------------------------------------

// SetFeedServing flips the quotes.Feed status after a login or a lost session.
func (s *ControlService) SetFeedServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(FeedService, status)
}

// -----------------------------------------------------------------------------

// Start listens on grpc_host:grpc_port and blocks serving requests.
func (s *ControlService) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve blocks serving on an existing listener.
func (s *ControlService) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.listener = lis
	s.mu.Unlock()

	if s.Logger != nil {
		s.Logger.Info("Starting gRPC health endpoint on %s", lis.Addr())
	}
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *ControlService) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
	if s.Logger != nil {
		s.Logger.Info("gRPC health endpoint stopped")
	}
}
