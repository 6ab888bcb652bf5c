package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// StoreService is the health service name reported for the booking store.
const StoreService = "winetour.BookingStore"

const checkTimeout = 2 * time.Second

type Checker interface {
	Available(ctx context.Context) bool
}

// Server exposes the standard gRPC health service. Both the overall status
// and StoreService follow the result of the last store check.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checker  Checker
	interval time.Duration
	log      *zap.Logger
}

func NewServer(checker Checker, interval time.Duration, log *zap.Logger) *Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s := &Server{
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		checker:  checker,
		interval: interval,
		log:      log.Named("grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.log.Info("grpc server starting", zap.String("addr", addr))
	return s.Serve(ctx, lis)
}

// Serve checks the store once, keeps checking every interval until ctx is
// done and serves on lis until Shutdown.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)
	go s.checkLoop(ctx)

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) checkLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check checks the store and publishes the result.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if !s.checker.Available(ctx) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn("booking store unavailable")
	}
	s.setStatus(status)
	return status
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(StoreService, status)
}

// Shutdown waits for in-flight calls and forces the stop once ctx expires.
func (s *Server) Shutdown(ctx context.Context) {
	s.log.Info("shutting down grpc server")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("grpc graceful stop timed out")
		s.grpc.Stop()
	}
	s.log.Info("grpc server stopped")
}
