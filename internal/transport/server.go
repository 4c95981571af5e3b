// Package transport is the gRPC front end and client of the Transformer
// service.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	pb "modelwrap/api/proto/v1"
	"modelwrap/internal/apierr"
	"modelwrap/internal/config"
	"modelwrap/internal/logging"
	"modelwrap/internal/message"
	"modelwrap/internal/reqlog"
	"modelwrap/internal/telemetry"
	"modelwrap/internal/transform"
)

const protocol = "grpc"

// DefaultWorkers is the worker pool size when Options.Workers is unset.
const DefaultWorkers = 10

type Options struct {
	Workers int
	// MaxMessageSize sets both receive and send limits in bytes; 0 keeps the
	// grpc defaults.
	MaxMessageSize int
	RequestLog     *reqlog.Logger
}

type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	limiter *Limiter
}

func NewServer(p *transform.Pipeline, opts Options) *Server {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	lim := NewLimiter(opts.Workers)

	sopts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(StatusInterceptor, RecoveryInterceptor, lim.UnaryInterceptor),
	}
	if opts.MaxMessageSize > 0 {
		logging.L().Info("grpc: max message size", "bytes", opts.MaxMessageSize)
		sopts = append(sopts, grpc.MaxRecvMsgSize(opts.MaxMessageSize), grpc.MaxSendMsgSize(opts.MaxMessageSize))
	}

	s := &Server{grpc: grpc.NewServer(sopts...), health: health.NewServer(), limiter: lim}
	pb.RegisterTransformerServer(s.grpc, &service{pipeline: p, reqlog: opts.RequestLog})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s.grpc)
	return s
}

func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Stop drains in-flight calls, or cuts them off once ctx ends.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}
}

// ResolveMaxMessageSize prefers the pod annotation over the configured
// fallback.
func ResolveMaxMessageSize(ann config.Annotations, fallback int) (int, error) {
	n, ok, err := ann.Int(config.AnnotationGRPCMaxMsgSize)
	if err != nil {
		return 0, fmt.Errorf("grpc: %w", err)
	}
	if !ok {
		return fallback, nil
	}
	if n <= 0 {
		return 0, fmt.Errorf("grpc: %s must be positive, got %d", config.AnnotationGRPCMaxMsgSize, n)
	}
	return n, nil
}

// ----- service ------------------------------------------------------------

type service struct {
	pb.UnimplementedTransformerServer
	pipeline *transform.Pipeline
	reqlog   *reqlog.Logger
}

func (s *service) TransformInput(ctx context.Context, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	return s.run(ctx, transform.Input, in)
}

func (s *service) TransformOutput(ctx context.Context, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	return s.run(ctx, transform.Output, in)
}

func (s *service) run(ctx context.Context, d transform.Direction, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	req, err := message.FromProto(in)
	if err != nil {
		err = apierr.Wrap(apierr.MalformedRequest, err, "decode request")
	}
	var resp *message.Message
	if err == nil {
		resp, err = s.pipeline.Run(ctx, d, req)
	}
	s.reqlog.Log(protocol, d.String(), req, resp, err)
	if err != nil {
		return nil, err
	}
	out, err := message.ToProto(resp)
	if err != nil {
		return nil, apierr.Wrap(apierr.InternalInconsistency, err, "encode response")
	}
	return out, nil
}

// ----- interceptors -------------------------------------------------------

// StatusInterceptor is the outermost boundary: it classifies errors into
// gRPC statuses and records the call.
func StatusInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		err = apierr.GRPCStatus(err).Err()
	}
	code := status.Code(err)
	direction := methodDirection(info.FullMethod)
	telemetry.ObserveRequest(protocol, direction, code.String(), time.Since(start))
	if err != nil {
		logging.L().Warn("grpc: call failed", "method", info.FullMethod, "code", code.String(), "err", err)
	} else {
		logging.L().Debug("grpc: call", "method", info.FullMethod, "elapsed", time.Since(start))
	}
	return resp, err
}

func RecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error("grpc: panic recovered", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Errorf(codes.Internal, "panic recovered: %v", r)
		}
	}()
	return handler(ctx, req)
}

func methodDirection(fullMethod string) string {
	switch fullMethod {
	case pb.Transformer_TransformInput_FullMethodName:
		return transform.Input.String()
	case pb.Transformer_TransformOutput_FullMethodName:
		return transform.Output.String()
	default:
		return "other"
	}
}
