package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tallyhq/tally/pkg/types"
)

const (
	serviceName = "tally.v1.RollupService"

	// SendRollupMethod is the full method name of the unary SendRollup RPC.
	SendRollupMethod = "/" + serviceName + "/SendRollup"

	// RunIDMetadataKey carries the rollup run id in request metadata so it
	// can be logged before the body is decoded.
	RunIDMetadataKey = "x-tally-run-id"
)

// SendRollupRequest carries one rollup from an agent.
type SendRollupRequest struct {
	Rollup *types.Rollup `json:"rollup"`
}

// SendRollupResponse acknowledges a rollup.
type SendRollupResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// RollupServiceServer is implemented by the server-side receiver.
type RollupServiceServer interface {
	SendRollup(context.Context, *SendRollupRequest) (*SendRollupResponse, error)
}

// UnimplementedRollupServiceServer can be embedded for forward compatibility.
type UnimplementedRollupServiceServer struct{}

func (UnimplementedRollupServiceServer) SendRollup(context.Context, *SendRollupRequest) (*SendRollupResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendRollup not implemented")
}

// RegisterRollupServiceServer registers srv on s.
func RegisterRollupServiceServer(s grpc.ServiceRegistrar, srv RollupServiceServer) {
	s.RegisterService(&RollupServiceDesc, srv)
}

func sendRollupHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SendRollupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RollupServiceServer).SendRollup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendRollupMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RollupServiceServer).SendRollup(ctx, req.(*SendRollupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RollupServiceDesc describes RollupService for grpc.Server.RegisterService.
var RollupServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RollupServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendRollup",
			Handler:    sendRollupHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tally/v1/rollup",
}

// RollupServiceClient is the agent-side stub.
type RollupServiceClient interface {
	SendRollup(ctx context.Context, in *SendRollupRequest, opts ...grpc.CallOption) (*SendRollupResponse, error)
}

type rollupServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRollupServiceClient returns a client that speaks the JSON codec over cc.
func NewRollupServiceClient(cc grpc.ClientConnInterface) RollupServiceClient {
	return &rollupServiceClient{cc: cc}
}

func (c *rollupServiceClient) SendRollup(ctx context.Context, in *SendRollupRequest, opts ...grpc.CallOption) (*SendRollupResponse, error) {
	out := new(SendRollupResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SendRollupMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
