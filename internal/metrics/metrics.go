// Package metrics exposes Prometheus instruments for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hydrator"

// Operations recorded by the pipeline.
const (
	OpIngest = "ingest"
	OpIndex  = "index"
)

// Recorder holds the pipeline's instruments. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    prometheus.Counter
	inflight prometheus.Gauge
}

// NewRecorder creates the instruments and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items processed, by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Per-item processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"op"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Normalized text bytes written to the object store.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_in_flight",
			Help:      "Items currently being processed.",
		}),
	}

	for _, c := range []prometheus.Collector{r.items, r.duration, r.bytes, r.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one finished item. result is "ok" or an error kind.
func (r *Recorder) Observe(op, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.items.WithLabelValues(op, result).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}

// AddStoredBytes counts bytes written to the object store.
func (r *Recorder) AddStoredBytes(n int) {
	if r == nil {
		return
	}
	r.bytes.Add(float64(n))
}

// Start marks an item as in flight and returns a func that clears it.
func (r *Recorder) Start() func() {
	if r == nil {
		return func() {}
	}
	r.inflight.Inc()
	return r.inflight.Dec
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
