// Package prometheus exports kvcache.Hooks events as Prometheus metrics.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eaglemoor/kvcache"
	"github.com/eaglemoor/kvcache/store"
)

const namespace = "kvcache"

// Hooks implements kvcache.Hooks.
type Hooks struct {
	batchKeys     prometheus.Histogram
	batchDuration prometheus.Histogram
	batchErrors   prometheus.Counter
	state         *prometheus.GaugeVec
	transitions   *prometheus.CounterVec
}

var _ kvcache.Hooks = (*Hooks)(nil)

var states = []store.ConnState{
	store.StateConnecting,
	store.StateConnected,
	store.StateErrored,
	store.StateDisconnected,
}

// New registers the collectors on reg. A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Hooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &Hooks{
		batchKeys: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_keys",
			Help:      "Distinct keys per batched fetch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of batched fetches against the store.",
			Buckets:   prometheus.DefBuckets,
		}),
		batchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_errors_total",
			Help:      "Batched fetches that failed.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_state",
			Help:      "1 for the current store connectivity state, 0 otherwise.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_state_transitions_total",
			Help:      "Store connectivity transitions by target state.",
		}, []string{"to"}),
	}

	for _, c := range []prometheus.Collector{h.batchKeys, h.batchDuration, h.batchErrors, h.state, h.transitions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return h, nil
}

func (h *Hooks) BatchDispatched(keys int, took time.Duration, err error) {
	h.batchKeys.Observe(float64(keys))
	h.batchDuration.Observe(took.Seconds())
	if err != nil {
		h.batchErrors.Inc()
	}
}

func (h *Hooks) StateChanged(_, to store.ConnState, _ error) {
	for _, s := range states {
		v := 0.0
		if s == to {
			v = 1
		}
		h.state.WithLabelValues(s.String()).Set(v)
	}
	h.transitions.WithLabelValues(to.String()).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
