// Package llmrpc is the LLM Executor's transport layer (spec.md §4.E). It
// keeps the teacher's shape — a gRPC client talking to an "LLM service" —
// but carries the payload as google.golang.org/protobuf/types/known/structpb.Struct
// instead of a protoc-generated message type, since no .proto source for
// the teacher's sidecar was available to regenerate. The service contract
// below (ServiceDesc, client, handler) is hand-written the way protoc-gen-go-grpc
// output would look, wired to an in-process server that fans out to the
// real vendor SDKs per provider.
package llmrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "tracepilot.llmrpc.LLMService"
const executeMethod = "/" + serviceName + "/Execute"

// LLMServiceServer is implemented by the in-process fan-out server.
type LLMServiceServer interface {
	Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// LLMServiceClient is the generated-style client stub.
type LLMServiceClient interface {
	Execute(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type llmServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLLMServiceClient wraps a gRPC connection as an LLMServiceClient.
func NewLLMServiceClient(cc grpc.ClientConnInterface) LLMServiceClient {
	return &llmServiceClient{cc: cc}
}

func (c *llmServiceClient) Execute(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, executeMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func executeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LLMServiceServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LLMServiceServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a single-method LLMService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LLMServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "llmrpc.proto",
}

// RegisterLLMServiceServer registers srv with a grpc.Server the way
// generated code would.
func RegisterLLMServiceServer(s grpc.ServiceRegistrar, srv LLMServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
