// Package kvcache is a key-value cache adapter over an external store with a
// coalescing read path.
//
// Components:
//   - store.Client: connection to the store (memory, redis, couchbase, bolt).
//   - batcher.Batcher: collects Get calls issued within one window and
//     resolves them with a single multi-key fetch.
//   - Cache: the Set/Get/Delete/Flush contract. Get goes through the batcher,
//     everything else hits the store directly.
//
// Usage:
//
//	st, _ := redis.New(redis.Config{Addr: "localhost:6379"})
//	c, _ := kvcache.New(st, kvcache.TTL(5*time.Minute))
//	defer c.Close(ctx)
//
//	_ = c.Set(ctx, "user:1", payload)                         // default TTL
//	_ = c.Set(ctx, "user:2", payload, kvcache.WithTTL(0))     // no expiry, this call only
//	v, ok, err := c.Get(ctx, "user:1")                        // ok=false on miss
//
// The cache never waits for the store to connect. Calls made before the store
// reports StateConnected go straight to the store client, which queues them at
// its transport or fails them; see the store subpackages.
package kvcache
