// Package grpc exposes a kvcache.KeyValueCache over gRPC and provides a
// client that is itself a kvcache.KeyValueCache.
//
// The service is registered from a hand written grpc.ServiceDesc and carries
// protobuf well-known types, so no code generation is needed:
//
//	Get(StringValue key)       -> StringValue value, NotFound on miss
//	Set(Struct{key,value,ttl}) -> Empty
//	Delete(StringValue key)    -> BoolValue removed
//	Flush(Empty)               -> Empty
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "kvcache.v1.Cache"

// Set request fields.
const (
	fieldKey   = "key"
	fieldValue = "value"
	fieldTTL   = "ttl_seconds" // absent => server default
)

// Handler is the interface a Cache service implementation must satisfy.
type Handler interface {
	Get(ctx context.Context, key *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Delete(ctx context.Context, key *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	Flush(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		unary("Get", Handler.Get),
		unary("Set", Handler.Set),
		unary("Delete", Handler.Delete),
		unary("Flush", Handler.Flush),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kvcache/v1/cache.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(Handler, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Handler), ctx, req)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, r any) (any, error) {
				return call(srv.(Handler), ctx, r.(*Req))
			}
			return interceptor(ctx, req, info, handler)
		},
	}
}
