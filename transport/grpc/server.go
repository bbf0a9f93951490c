package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/eaglemoor/kvcache"
)

// Server serves a KeyValueCache.
type Server struct {
	cache kvcache.KeyValueCache
}

var _ Handler = (*Server)(nil)

func NewServer(cache kvcache.KeyValueCache) *Server {
	return &Server{cache: cache}
}

// Register registers cache on s.
func Register(s *grpc.Server, cache kvcache.KeyValueCache) {
	s.RegisterService(&ServiceDesc, NewServer(cache))
}

func (s *Server) Get(ctx context.Context, key *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	v, ok, err := s.cache.Get(ctx, key.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "key %q not found", key.GetValue())
	}

	return wrapperspb.String(v), nil
}

func (s *Server) Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	fields := req.GetFields()

	var opts []kvcache.SetOption
	if ttl, ok := fields[fieldTTL]; ok {
		secs := ttl.GetNumberValue()
		if secs < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "negative %s", fieldTTL)
		}
		opts = append(opts, kvcache.WithTTL(time.Duration(secs*float64(time.Second))))
	}

	err := s.cache.Set(ctx, fields[fieldKey].GetStringValue(), fields[fieldValue].GetStringValue(), opts...)
	if err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

func (s *Server) Delete(ctx context.Context, key *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	removed, err := s.cache.Delete(ctx, key.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Bool(removed), nil
}

func (s *Server) Flush(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.cache.Flush(ctx); err != nil {
		return nil, toStatus(err)
	}

	return &emptypb.Empty{}, nil
}

func toStatus(err error) error {
	var (
		rerr *kvcache.StoreReadError
		werr *kvcache.StoreWriteError
		aerr *kvcache.StoreAdminError
	)

	switch {
	case errors.Is(err, kvcache.ErrEmptyKey):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, kvcache.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.As(err, &rerr), errors.As(err, &werr), errors.As(err, &aerr):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
