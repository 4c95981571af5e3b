package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ServiceName is the fully qualified Transformer service name.
const ServiceName = "seldon.protos.Transformer"

const (
	Transformer_TransformInput_FullMethodName  = "/seldon.protos.Transformer/TransformInput"
	Transformer_TransformOutput_FullMethodName = "/seldon.protos.Transformer/TransformOutput"
)

// TransformerClient is the client API for the Transformer service.
type TransformerClient interface {
	TransformInput(ctx context.Context, in *dynamicpb.Message, opts ...grpc.CallOption) (*dynamicpb.Message, error)
	TransformOutput(ctx context.Context, in *dynamicpb.Message, opts ...grpc.CallOption) (*dynamicpb.Message, error)
}

type transformerClient struct {
	cc grpc.ClientConnInterface
}

func NewTransformerClient(cc grpc.ClientConnInterface) TransformerClient {
	return &transformerClient{cc}
}

func (c *transformerClient) TransformInput(ctx context.Context, in *dynamicpb.Message, opts ...grpc.CallOption) (*dynamicpb.Message, error) {
	out := NewSeldonMessage()
	if err := c.cc.Invoke(ctx, Transformer_TransformInput_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transformerClient) TransformOutput(ctx context.Context, in *dynamicpb.Message, opts ...grpc.CallOption) (*dynamicpb.Message, error) {
	out := NewSeldonMessage()
	if err := c.cc.Invoke(ctx, Transformer_TransformOutput_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TransformerServer is the server API for the Transformer service.
type TransformerServer interface {
	TransformInput(context.Context, *dynamicpb.Message) (*dynamicpb.Message, error)
	TransformOutput(context.Context, *dynamicpb.Message) (*dynamicpb.Message, error)
}

// UnimplementedTransformerServer can be embedded to stay forward compatible.
type UnimplementedTransformerServer struct{}

func (UnimplementedTransformerServer) TransformInput(context.Context, *dynamicpb.Message) (*dynamicpb.Message, error) {
	return nil, status.Errorf(codes.Unimplemented, "method TransformInput not implemented")
}
func (UnimplementedTransformerServer) TransformOutput(context.Context, *dynamicpb.Message) (*dynamicpb.Message, error) {
	return nil, status.Errorf(codes.Unimplemented, "method TransformOutput not implemented")
}

func RegisterTransformerServer(s grpc.ServiceRegistrar, srv TransformerServer) {
	s.RegisterService(&Transformer_ServiceDesc, srv)
}

func _Transformer_TransformInput_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := NewSeldonMessage()
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransformerServer).TransformInput(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Transformer_TransformInput_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransformerServer).TransformInput(ctx, req.(*dynamicpb.Message))
	}
	return interceptor(ctx, in, info, handler)
}

func _Transformer_TransformOutput_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := NewSeldonMessage()
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransformerServer).TransformOutput(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Transformer_TransformOutput_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransformerServer).TransformOutput(ctx, req.(*dynamicpb.Message))
	}
	return interceptor(ctx, in, info, handler)
}

// Transformer_ServiceDesc is the grpc.ServiceDesc for the Transformer service.
var Transformer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransformerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "TransformInput",
			Handler:    _Transformer_TransformInput_Handler,
		},
		{
			MethodName: "TransformOutput",
			Handler:    _Transformer_TransformOutput_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: FileName,
}
