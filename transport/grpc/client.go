package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/eaglemoor/kvcache"
)

// Client is a KeyValueCache backed by a remote Cache service. Batching
// happens on the server side.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ kvcache.KeyValueCache = (*Client)(nil)

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Set(ctx context.Context, key, value string, opts ...kvcache.SetOption) error {
	if key == "" {
		return kvcache.ErrEmptyKey
	}

	fields := map[string]*structpb.Value{
		fieldKey:   structpb.NewStringValue(key),
		fieldValue: structpb.NewStringValue(value),
	}
	// -1 is never a valid TTL, so it marks "no WithTTL" and lets the server default apply
	if ttl := kvcache.ResolveTTL(-1, opts...); ttl >= 0 {
		fields[fieldTTL] = structpb.NewNumberValue(ttl.Seconds())
	}

	err := c.conn.Invoke(ctx, fullMethod("Set"), &structpb.Struct{Fields: fields}, new(emptypb.Empty))
	if err != nil {
		return fromStatus(err, func(err error) error {
			return &kvcache.StoreWriteError{Op: "set", Key: key, Err: err}
		})
	}

	return nil
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, kvcache.ErrEmptyKey
	}

	resp := new(wrapperspb.StringValue)
	err := c.conn.Invoke(ctx, fullMethod("Get"), wrapperspb.String(key), resp)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", false, nil
		}
		return "", false, fromStatus(err, func(err error) error {
			return &kvcache.StoreReadError{Key: key, Err: err}
		})
	}

	return resp.GetValue(), true, nil
}

func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, kvcache.ErrEmptyKey
	}

	resp := new(wrapperspb.BoolValue)
	err := c.conn.Invoke(ctx, fullMethod("Delete"), wrapperspb.String(key), resp)
	if err != nil {
		return false, fromStatus(err, func(err error) error {
			return &kvcache.StoreWriteError{Op: "delete", Key: key, Err: err}
		})
	}

	return resp.GetValue(), nil
}

func (c *Client) Flush(ctx context.Context) error {
	err := c.conn.Invoke(ctx, fullMethod("Flush"), &emptypb.Empty{}, new(emptypb.Empty))
	if err != nil {
		return fromStatus(err, func(err error) error {
			return &kvcache.StoreAdminError{Op: "flush", Err: err}
		})
	}

	return nil
}

// fromStatus maps a call error back to the kvcache errors. Everything that is
// not a caller mistake or a caller context error is wrapped by wrap.
func fromStatus(err error, wrap func(error) error) error {
	switch status.Code(err) {
	case codes.InvalidArgument:
		return kvcache.ErrEmptyKey
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	default:
		return wrap(err)
	}
}
