package transport

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/dynamicpb"

	pb "modelwrap/api/proto/v1"
	"modelwrap/internal/message"
	"modelwrap/internal/transform"
)

// Client calls a remote Transformer service with plain envelopes.
type Client struct {
	conn *grpc.ClientConn
	svc  pb.TransformerClient
}

// Dial connects to target. Without options the connection is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", target, err)
	}
	return &Client{conn: conn, svc: pb.NewTransformerClient(conn)}, nil
}

func (c *Client) Transform(ctx context.Context, d transform.Direction, m *message.Message, opts ...grpc.CallOption) (*message.Message, error) {
	in, err := message.ToProto(m)
	if err != nil {
		return nil, err
	}
	var out *dynamicpb.Message
	switch d {
	case transform.Input:
		out, err = c.svc.TransformInput(ctx, in, opts...)
	case transform.Output:
		out, err = c.svc.TransformOutput(ctx, in, opts...)
	default:
		return nil, fmt.Errorf("grpc client: %s", d)
	}
	if err != nil {
		return nil, err
	}
	return message.FromProto(out)
}

// Healthy asks the standard health service whether the Transformer is
// serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: pb.ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
