package batcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// recorder is a fetch func that remembers every call.
type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(ctx context.Context, keys []string) (map[string]string, error)
}

func (r *recorder) fetch(ctx context.Context, keys []string) (map[string]string, error) {
	r.mu.Lock()
	cp := append([]string(nil), keys...)
	sort.Strings(cp)
	r.calls = append(r.calls, cp)
	r.mu.Unlock()

	if r.fn != nil {
		return r.fn(ctx, keys)
	}

	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, "miss") {
			continue
		}
		result[key] = "value_" + key
	}

	return result, nil
}

func (r *recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([][]string(nil), r.calls...)
}

// loadConcurrently starts one Load per key at the same moment and waits for all.
func loadConcurrently(b *Batcher[string, string], keys ...string) ([]string, []bool, []error) {
	values := make([]string, len(keys))
	found := make([]bool, len(keys))
	errs := make([]error, len(keys))

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(keys))
	for i, key := range keys {
		go func(i int, key string) {
			defer wg.Done()
			<-start
			values[i], found[i], errs[i] = b.Load(context.Background(), key)
		}(i, key)
	}
	close(start)
	wg.Wait()

	return values, found, errs
}

func TestBatchLoad_Ok(t *testing.T) {
	r := &recorder{}
	batcher := New(r.fetch)
	defer batcher.Shutdown()

	item, found, err := batcher.Load(context.Background(), "val1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value_val1", item)
}

func TestBatchLoad_Miss(t *testing.T) {
	r := &recorder{}
	batcher := New(r.fetch)
	defer batcher.Shutdown()

	item, found, err := batcher.Load(context.Background(), "miss1")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "", item)
}

func TestBatchLoad_PanicRecover(t *testing.T) {
	batcher := New(func(ctx context.Context, keys []string) (map[string]string, error) {
		panic(123)
	})
	defer batcher.Shutdown()

	item, found, err := batcher.Load(context.Background(), "val1")
	assert.ErrorIs(t, err, ErrPanicRecover)
	assert.False(t, found)
	assert.Equal(t, "", item)
}

func TestBatchLoad_Coalesce(t *testing.T) {
	r := &recorder{}
	batcher := New(r.fetch, Window(50*time.Millisecond))
	defer batcher.Shutdown()

	keys := []string{"a", "b", "a", "c", "miss1", "b", "a"}
	values, found, errs := loadConcurrently(batcher, keys...)

	for i, key := range keys {
		require.NoError(t, errs[i], key)
		if strings.HasPrefix(key, "miss") {
			assert.False(t, found[i], key)
			assert.Equal(t, "", values[i], key)
			continue
		}
		assert.True(t, found[i], key)
		assert.Equal(t, "value_"+key, values[i], key)
	}

	// one fetch, every distinct key once
	assert.Equal(t, [][]string{{"a", "b", "c", "miss1"}}, r.Calls())
}

func TestBatchLoad_ErrorFansOut(t *testing.T) {
	storeErr := errors.New("connection refused")
	r := &recorder{fn: func(ctx context.Context, keys []string) (map[string]string, error) {
		return map[string]string{"a": "partial"}, storeErr
	}}
	batcher := New(r.fetch, Window(50*time.Millisecond))
	defer batcher.Shutdown()

	values, found, errs := loadConcurrently(batcher, "a", "b", "c")

	for i := range errs {
		assert.Same(t, storeErr, errs[i])
		assert.False(t, found[i])
		assert.Equal(t, "", values[i])
	}
	assert.Len(t, r.Calls(), 1)
}

func TestBatchLoad_NoCachingAcrossWindows(t *testing.T) {
	r := &recorder{}
	batcher := New(r.fetch)
	defer batcher.Shutdown()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		item, _, err := batcher.Load(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "value_a", item)
	}

	assert.Equal(t, [][]string{{"a"}, {"a"}, {"a"}}, r.Calls())
}

func TestBatchLoadMany_Ok(t *testing.T) {
	r := &recorder{fn: func(ctx context.Context, keys []string) (map[string]string, error) {
		result := make(map[string]string, len(keys))
		for _, key := range keys {
			if !strings.HasPrefix(key, "miss") {
				result[key] = "value_" + key
			}
		}
		return result, nil
	}}

	batcher := New(r.fetch)
	defer batcher.Shutdown()

	t.Run("simple", func(t *testing.T) {
		items, errs := batcher.LoadMany(context.Background(), "val1", "val2", "val3")
		assert.Empty(t, errs)
		assert.Equal(t, map[string]string{"val1": "value_val1", "val2": "value_val2", "val3": "value_val3"}, items)
		assert.Equal(t, [][]string{{"val1", "val2", "val3"}}, r.Calls())
	})

	t.Run("double keys and miss", func(t *testing.T) {
		items, errs := batcher.LoadMany(context.Background(), "val2", "val2", "miss1")
		assert.Empty(t, errs)
		assert.Equal(t, map[string]string{"val2": "value_val2"}, items)
		assert.Equal(t, [][]string{{"val1", "val2", "val3"}, {"miss1", "val2"}}, r.Calls())
	})

	t.Run("empty", func(t *testing.T) {
		items, errs := batcher.LoadMany(context.Background())
		assert.Empty(t, errs)
		assert.Empty(t, items)
		assert.Len(t, r.Calls(), 2)
	})
}

func TestBatchLoadMany_Error(t *testing.T) {
	storeErr := errors.New("auth failed")
	batcher := New(func(ctx context.Context, keys []string) (map[string]string, error) {
		return nil, storeErr
	})
	defer batcher.Shutdown()

	items, errs := batcher.LoadMany(context.Background(), "a", "b")
	assert.Empty(t, items)
	assert.Equal(t, map[string]error{"a": storeErr, "b": storeErr}, errs)
}

func TestBatch_Timeout_ContextDeadlineExceeded(t *testing.T) {
	batcher := New(func(ctx context.Context, keys []string) (map[string]string, error) {
		select {
		case <-time.After(time.Second):
			return map[string]string{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, Timeout(50*time.Millisecond))
	defer batcher.Shutdown()

	start := time.Now()
	data, _, err := batcher.Load(context.Background(), "test1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "", data)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestBatch_CallerCancelDoesNotWithdrawKey(t *testing.T) {
	release := make(chan struct{})
	fetched := make(chan error, 1)

	r := &recorder{fn: func(ctx context.Context, keys []string) (map[string]string, error) {
		<-release
		fetched <- ctx.Err()
		return map[string]string{"a": "1"}, nil
	}}
	batcher := New(r.fetch)
	defer batcher.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, _, err := batcher.Load(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.NoError(t, <-fetched, "fetch context must not follow caller cancellation")
	assert.Equal(t, [][]string{{"a"}}, r.Calls())
}

type ctxTestKey string

func TestBatch_ContextValue(t *testing.T) {
	batcher := New(func(ctx context.Context, keys []string) (map[string]string, error) {
		ctxValue := ctx.Value(ctxTestKey("test"))

		result := make(map[string]string, len(keys))
		for _, key := range keys {
			result[key] = fmt.Sprintf("value_%s_%v", key, ctxValue)
		}

		return result, nil
	})
	defer batcher.Shutdown()

	ctx := context.WithValue(context.Background(), ctxTestKey("test"), "ctxvar")
	data, _, err := batcher.Load(ctx, "test1")
	assert.NoError(t, err)
	assert.Equal(t, "value_test1_ctxvar", data)
}

func TestBatch_DispatchLimit(t *testing.T) {
	r := &recorder{}
	batcher := New(r.fetch, Window(5*time.Millisecond), DispatchLimit(rate.Every(150*time.Millisecond)))
	defer batcher.Shutdown()

	ctx := context.Background()

	_, _, err := batcher.Load(ctx, "a")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := batcher.Load(ctx, "b")
		assert.NoError(t, err)
	}()

	// the second window is held back by the limiter and keeps collecting
	time.Sleep(50 * time.Millisecond)
	_, _, err = batcher.Load(ctx, "c")
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, [][]string{{"a"}, {"b", "c"}}, r.Calls())
}

func TestBatch_OnDispatch(t *testing.T) {
	var mu sync.Mutex
	sizes := make([]int, 0, 2)

	storeErr := errors.New("boom")
	batcher := New(func(ctx context.Context, keys []string) (map[string]string, error) {
		if keys[0] == "err" {
			return nil, storeErr
		}
		return map[string]string{}, nil
	}, Window(30*time.Millisecond), OnDispatch(func(keys int, took time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()

		sizes = append(sizes, keys)
		if keys == 1 {
			assert.ErrorIs(t, err, storeErr)
		} else {
			assert.NoError(t, err)
		}
		assert.GreaterOrEqual(t, took, time.Duration(0))
	}))
	defer batcher.Shutdown()

	batcher.LoadMany(context.Background(), "x", "y")
	_, _, _ = batcher.Load(context.Background(), "err")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1}, sizes)
}

func TestNotInitBatch(t *testing.T) {
	b := &Batcher[string, string]{}

	ctx := context.Background()
	var1, found, err1 := b.Load(ctx, "key1")
	assert.ErrorIs(t, err1, ErrBatcherNotInit)
	assert.False(t, found)
	assert.Empty(t, var1)

	var2, err2 := b.LoadMany(ctx, "key1", "key2")
	for _, key := range []string{"key1", "key2"} {
		assert.ErrorIs(t, err2[key], ErrBatcherNotInit)
	}
	assert.Empty(t, var2)

	b.Shutdown()
	assert.False(t, b.shutdown)
	assert.Nil(t, b.window)
}

func TestShutdown_DispatchesOpenWindow(t *testing.T) {
	r := &recorder{}
	b := New(r.fetch, Window(time.Hour))

	var wg sync.WaitGroup
	wg.Add(1)

	var (
		val1 string
		err1 error
	)
	go func() {
		defer wg.Done()
		val1, _, err1 = b.Load(context.Background(), "test1")
	}()

	// let the Load open the window
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.window != nil
	}, time.Second, time.Millisecond)

	start := time.Now()
	b.Shutdown()
	wg.Wait()

	assert.NoError(t, err1)
	assert.Equal(t, "value_test1", val1)
	assert.Less(t, time.Since(start), time.Second)

	val2, _, err2 := b.Load(context.Background(), "test2")
	assert.ErrorIs(t, err2, ErrShutdown)
	assert.Empty(t, val2)

	_, errs := b.LoadMany(context.Background(), "test3")
	assert.ErrorIs(t, errs["test3"], ErrShutdown)
}

// ---- Bench -----

func BenchmarkBatcher_Load(b *testing.B) {
	calls := make(map[int]int, 100)
	var m sync.Mutex

	batcher := New(func(ctx context.Context, keys []string) (map[string]string, error) {
		m.Lock()
		calls[len(keys)]++
		m.Unlock()

		result := make(map[string]string, len(keys))
		for _, key := range keys {
			result[key] = "value_" + key
		}

		return result, nil
	})
	ctx := context.Background()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _, _ = batcher.Load(ctx, strconv.Itoa(i%1000))
			i++
		}
	})

	batcher.Shutdown()
}
