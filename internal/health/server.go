// Package health exposes the simulation run state over the standard gRPC
// health checking protocol.
package health

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/orbit-attitude-sim/internal/logging"
	"github.com/signalsfoundry/orbit-attitude-sim/internal/observability"
)

// ServiceName is the health service name reporting the simulation loop.
const ServiceName = "orbitsim.Simulation"

// Server reports NOT_SERVING until a run starts ticking, SERVING while it
// ticks, and NOT_SERVING again once it finishes.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	log    logging.Logger

	mu      sync.Mutex
	serving bool
}

// Option configures a Server.
type Option func(*options)

type options struct {
	log     logging.Logger
	metrics *observability.RPCCollector
}

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRPCMetrics records request counts and durations on c.
func WithRPCMetrics(c *observability.RPCCollector) Option {
	return func(o *options) { o.metrics = c }
}

// NewServer constructs a health server. It does not listen until Serve.
func NewServer(opts ...Option) *Server {
	o := options{log: logging.Noop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Noop()
	}

	interceptors := []grpc.UnaryServerInterceptor{loggingUnaryServerInterceptor(o.log)}
	if o.metrics != nil {
		interceptors = append(interceptors, o.metrics.UnaryServerInterceptor())
	}
	serverOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	}

	hs := grpchealth.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer(serverOpts...)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpc: gs, health: hs, log: o.log}
}

// SetServing marks the simulation loop as ticking.
func (s *Server) SetServing() { s.set(true) }

// SetNotServing marks the simulation loop as idle or finished.
func (s *Server) SetNotServing() { s.set(false) }

// Serving reports the last status set.
func (s *Server) Serving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serving
}

func (s *Server) set(serving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.serving == serving {
		return
	}
	s.serving = serving

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.log.Debug(context.Background(), "health status changed",
		logging.String("service", ServiceName),
		logging.String("status", status.String()),
		logging.Bool("serving", serving),
	)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "starting health gRPC server", logging.String("addr", lis.Addr().String()))
	err := s.grpc.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop marks every service NOT_SERVING and stops the gRPC server gracefully.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
