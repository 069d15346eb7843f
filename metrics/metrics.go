// Package metrics exposes Prometheus collectors for billing passes.
// A Collector is built per registry and handed to the engine; a nil
// *Collector records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "cobranza_"

	ResultSuccess = "success"
	ResultError   = "error"
)

// Collector implements cobranza.Recorder.
type Collector struct {
	receiptsGenerated prometheus.Counter
	receiptsPaid      prometheus.Counter
	receiptsCancelled prometheus.Counter
	policiesSkipped   *prometheus.CounterVec
	storeErrors       *prometheus.CounterVec
	passLatency       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. It panics if
// they are already registered there.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		receiptsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "receipts_generated_total",
			Help: "Receipts added to the ledger by schedule generation",
		}),
		receiptsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "receipts_paid_total",
			Help: "Receipts settled by a registered payment",
		}),
		receiptsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "receipts_cancelled_total",
			Help: "Receipts voided by a policy cancellation",
		}),
		policiesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "policies_skipped_total",
				Help: "Policies skipped during generation by reason",
			},
			[]string{"reason"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_errors_total",
				Help: "Persistence failures by operation",
			},
			[]string{"op"},
		),
		passLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pass_duration_seconds",
				Help:    "Billing pass latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action", "result"},
		),
	}

	reg.MustRegister(
		c.receiptsGenerated,
		c.receiptsPaid,
		c.receiptsCancelled,
		c.policiesSkipped,
		c.storeErrors,
		c.passLatency,
	)
	return c
}

func (c *Collector) AddGenerated(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.receiptsGenerated.Add(float64(n))
}

func (c *Collector) AddPaid(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.receiptsPaid.Add(float64(n))
}

func (c *Collector) AddCancelled(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.receiptsCancelled.Add(float64(n))
}

func (c *Collector) IncSkipped(reason string) {
	if c == nil {
		return
	}
	c.policiesSkipped.WithLabelValues(reason).Inc()
}

func (c *Collector) IncStoreError(op string) {
	if c == nil {
		return
	}
	c.storeErrors.WithLabelValues(op).Inc()
}

// ObservePass records the latency of one pass.
func (c *Collector) ObservePass(action string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	c.passLatency.WithLabelValues(action, result).Observe(elapsed.Seconds())
}
