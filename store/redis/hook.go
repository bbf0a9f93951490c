package redis

import (
	"context"
	"net"

	gredis "github.com/redis/go-redis/v9"

	"github.com/eaglemoor/kvcache/store"
)

// stateHook reports dial outcomes as connectivity transitions.
type stateHook struct {
	s *Store
}

var _ gredis.Hook = stateHook{}

func (h stateHook) DialHook(next gredis.DialHook) gredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.s.setState(store.StateErrored, err)
			return nil, err
		}

		h.s.setState(store.StateConnected, nil)

		return conn, nil
	}
}

func (h stateHook) ProcessHook(next gredis.ProcessHook) gredis.ProcessHook {
	return next
}

func (h stateHook) ProcessPipelineHook(next gredis.ProcessPipelineHook) gredis.ProcessPipelineHook {
	return next
}
