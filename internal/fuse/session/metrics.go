package session

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rfratto/asyncfuse/internal/fuse"
	"github.com/rfratto/asyncfuse/internal/fuse/wire"
)

type metrics struct {
	requests     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	interrupts   prometheus.Counter
	decodeErrors *prometheus.CounterVec
}

// newMetrics creates metrics for a session. Metrics are only registered when
// reg is non-nil.
func newMetrics(reg prometheus.Registerer, registry *Registry) *metrics {
	f := promauto.With(reg)

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "asyncfuse",
		Subsystem: "session",
		Name:      "inflight_requests",
		Help:      "Number of requests currently being handled.",
	}, func() float64 { return float64(registry.Len()) })

	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asyncfuse",
			Subsystem: "session",
			Name:      "requests_total",
			Help:      "Total number of requests handled, by operation.",
		}, []string{"op"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asyncfuse",
			Subsystem: "session",
			Name:      "request_failures_total",
			Help:      "Total number of requests answered with an error, by operation.",
		}, []string{"op"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "asyncfuse",
			Subsystem: "session",
			Name:      "request_duration_seconds",
			Help:      "Time spent in the handler for a request.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		interrupts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "asyncfuse",
			Subsystem: "session",
			Name:      "interrupts_total",
			Help:      "Total number of interrupts delivered to in-flight requests.",
		}),
		decodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asyncfuse",
			Subsystem: "session",
			Name:      "decode_errors_total",
			Help:      "Total number of frames from the kernel which failed to decode.",
		}, []string{"reason"}),
	}
}

func (m *metrics) observeRequest(op fuse.Op, took time.Duration, errno fuse.Error) {
	m.requests.WithLabelValues(op.String()).Inc()
	m.duration.WithLabelValues(op.String()).Observe(took.Seconds())
	if errno != 0 {
		m.failures.WithLabelValues(op.String()).Inc()
	}
}

func (m *metrics) observeDecodeError(err error) {
	reason := "other"
	switch {
	case errors.Is(err, wire.ErrTruncatedFrame):
		reason = "truncated"
	case errors.Is(err, wire.ErrFrameLength):
		reason = "length_mismatch"
	case errors.Is(err, wire.ErrMalformedHeader):
		reason = "unknown_op"
	case errors.Is(err, wire.ErrInsufficientData):
		reason = "short_payload"
	}
	m.decodeErrors.WithLabelValues(reason).Inc()
}
