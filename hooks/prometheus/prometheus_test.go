package prometheus

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eaglemoor/kvcache/store"
)

func TestHooks_BatchDispatched(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg)
	require.NoError(t, err)

	h.BatchDispatched(3, 2*time.Millisecond, nil)
	h.BatchDispatched(1, time.Millisecond, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.batchErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(h.batchKeys))

	expected := `
# HELP kvcache_batch_keys Distinct keys per batched fetch.
# TYPE kvcache_batch_keys histogram
kvcache_batch_keys_bucket{le="1"} 1
kvcache_batch_keys_bucket{le="2"} 1
kvcache_batch_keys_bucket{le="4"} 2
kvcache_batch_keys_bucket{le="8"} 2
kvcache_batch_keys_bucket{le="16"} 2
kvcache_batch_keys_bucket{le="32"} 2
kvcache_batch_keys_bucket{le="64"} 2
kvcache_batch_keys_bucket{le="128"} 2
kvcache_batch_keys_bucket{le="256"} 2
kvcache_batch_keys_bucket{le="512"} 2
kvcache_batch_keys_bucket{le="+Inf"} 2
kvcache_batch_keys_sum 4
kvcache_batch_keys_count 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kvcache_batch_keys"))
}

func TestHooks_StateChanged(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg)
	require.NoError(t, err)

	h.StateChanged(store.StateConnecting, store.StateErrored, errors.New("refused"))
	h.StateChanged(store.StateErrored, store.StateConnected, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.state.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.state.WithLabelValues("errored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.transitions.WithLabelValues("errored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.transitions.WithLabelValues("connected")))
}

func TestNew_DuplicateRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := New(reg)
	require.NoError(t, err)

	h.BatchDispatched(2, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "kvcache_batch_keys_count 1")
}
