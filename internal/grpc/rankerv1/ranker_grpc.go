// Package rankerv1 holds the slo.ranker.v1 gRPC service contract. Requests and responses are
// google.protobuf.Struct messages carrying the JSON documents described in api.
package rankerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "slo.ranker.v1.RootCauseRanker"

	RootCauseRanker_Analyze_FullMethodName = "/" + ServiceName + "/Analyze"
)

// RootCauseRankerClient is the client API for the RootCauseRanker service.
type RootCauseRankerClient interface {
	Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type rootCauseRankerClient struct {
	cc grpc.ClientConnInterface
}

// NewRootCauseRankerClient wraps a connection.
func NewRootCauseRankerClient(cc grpc.ClientConnInterface) RootCauseRankerClient {
	return &rootCauseRankerClient{cc}
}

func (c *rootCauseRankerClient) Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RootCauseRanker_Analyze_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RootCauseRankerServer is the server API for the RootCauseRanker service. Implementations
// must embed UnimplementedRootCauseRankerServer.
type RootCauseRankerServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	mustEmbedUnimplementedRootCauseRankerServer()
}

// UnimplementedRootCauseRankerServer must be embedded to have forward compatible implementations.
type UnimplementedRootCauseRankerServer struct{}

func (UnimplementedRootCauseRankerServer) Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Analyze not implemented")
}

func (UnimplementedRootCauseRankerServer) mustEmbedUnimplementedRootCauseRankerServer() {}

// RegisterRootCauseRankerServer attaches srv to s.
func RegisterRootCauseRankerServer(s grpc.ServiceRegistrar, srv RootCauseRankerServer) {
	s.RegisterService(&RootCauseRanker_ServiceDesc, srv)
}

func _RootCauseRanker_Analyze_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RootCauseRankerServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RootCauseRanker_Analyze_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RootCauseRankerServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RootCauseRanker_ServiceDesc is the grpc.ServiceDesc for the RootCauseRanker service.
var RootCauseRanker_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RootCauseRankerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Analyze",
			Handler:    _RootCauseRanker_Analyze_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slo/ranker/v1/ranker.proto",
}
