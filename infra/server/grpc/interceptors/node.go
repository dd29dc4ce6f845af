package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// NodeHeader is the response header naming the instance that served a call.
const NodeHeader = "x-relay-node"

// NewUnaryNodeInterceptor stamps every unary response with the instance id.
func NewUnaryNodeInterceptor(serviceID string) grpc.UnaryServerInterceptor {
	md := metadata.Pairs(NodeHeader, serviceID)
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		_ = grpc.SetHeader(ctx, md)
		return handler(ctx, req)
	}
}

// NewStreamNodeInterceptor does the same for streams, before the first message.
func NewStreamNodeInterceptor(serviceID string) grpc.StreamServerInterceptor {
	md := metadata.Pairs(NodeHeader, serviceID)
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		_ = ss.SetHeader(md)
		return handler(srv, ss)
	}
}
