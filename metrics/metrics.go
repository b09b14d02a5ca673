package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/overlay-provisioning-backend/interfaces"
)

// Outcome labels of provisioning_requests_total.
const (
	OutcomeSuccess        = "success"
	OutcomeInvalidName    = "invalid_name"
	OutcomeExhausted      = "pool_exhausted"
	OutcomeIssuanceFailed = "issuance_failed"
	OutcomeUnavailable    = "unavailable"
	OutcomeCancelled      = "cancelled"
	OutcomeError          = "error"
)

// Outcome classifies the result of a provisioning request.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, interfaces.ErrInvalidNodeName):
		return OutcomeInvalidName
	case errors.Is(err, interfaces.ErrAddressPoolExhausted):
		return OutcomeExhausted
	case errors.Is(err, interfaces.ErrIssuanceFailed):
		return OutcomeIssuanceFailed
	case errors.Is(err, interfaces.ErrPipelineUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}

// PoolStats is the view of an address pool exported as gauges.
type PoolStats interface {
	Available() uint64
	Outstanding() int
}

// Provisioning holds the provisioning pipeline metrics. It implements
// pipeline.Observer.
type Provisioning struct {
	requests   *prometheus.CounterVec
	duration   prometheus.Histogram
	queueDepth prometheus.Gauge
}

func NewProvisioning(namespace string, reg prometheus.Registerer) *Provisioning {
	m := &Provisioning{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "requests_total",
				Help:      "Total number of provisioning requests by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "duration_seconds",
				Help:      "Duration of provisioning requests handled by the worker",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "provisioning",
				Name:      "queue_depth",
				Help:      "Number of provisioning requests waiting for the worker",
			},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.queueDepth)
	return m
}

func (m *Provisioning) ObserveQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *Provisioning) ObserveResult(err error, duration time.Duration) {
	m.requests.WithLabelValues(Outcome(err)).Inc()
	m.duration.Observe(duration.Seconds())
}

// ObserveRejected counts a request that never reached the provisioner.
func (m *Provisioning) ObserveRejected(err error) {
	m.requests.WithLabelValues(Outcome(err)).Inc()
}

// RegisterPool exports the free and outstanding address counts of pool.
func RegisterPool(namespace string, reg prometheus.Registerer, pool PoolStats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "available_addresses",
				Help:      "Number of addresses that can still be allocated",
			},
			func() float64 { return float64(pool.Available()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "outstanding_addresses",
				Help:      "Number of addresses currently handed out",
			},
			func() float64 { return float64(pool.Outstanding()) },
		),
	)
}
