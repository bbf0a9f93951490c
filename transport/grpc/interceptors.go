package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eaglemoor/kvcache"
)

// RecoveryUnary turns a panic in a handler into codes.Internal.
func RecoveryUnary(log kvcache.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc handler panic", kvcache.Fields{"method": info.FullMethod, "panic": r})
				resp = nil
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingUnary logs every call at Debug, and Unavailable/Internal failures at Warn.
func LoggingUnary(log kvcache.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		f := kvcache.Fields{"method": info.FullMethod, "code": code.String(), "took": time.Since(start).String()}
		switch code {
		case codes.Unavailable, codes.Internal:
			f["err"] = err
			log.Warn("grpc call failed", f)
		default:
			log.Debug("grpc call", f)
		}

		return resp, err
	}
}
