package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signals     *prometheus.CounterVec
	reconciled  prometheus.Counter
	dispatch    *prometheus.CounterVec
	invoices    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	relayConns  prometheus.Gauge
	latency     *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrelay_signals_ingested_total",
				Help: "Signals ingested, by outcome (new, updated, failed)",
			},
			[]string{"outcome"},
		),
		reconciled: f.NewCounter(
			prometheus.CounterOpts{
				Name: "signalrelay_signals_reconciled_total",
				Help: "Signals deleted by snapshot reconciliation",
			},
		),
		dispatch: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrelay_dispatch_total",
				Help: "Fan-out deliveries by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		invoices: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrelay_invoice_transitions_total",
				Help: "Invoice state transitions",
			},
			[]string{"transition"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrelay_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		relayConns: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalrelay_relay_connections",
				Help: "Live relay channels",
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalrelay_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSignal(outcome string) {
	r.signals.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordReconciled(deleted int64) {
	r.reconciled.Add(float64(deleted))
}

func (r *Recorder) RecordDispatch(channel, outcome string) {
	r.dispatch.WithLabelValues(channel, outcome).Inc()
}

func (r *Recorder) RecordInvoice(transition string) {
	r.invoices.WithLabelValues(transition).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) SetRelayConnections(n int) {
	r.relayConns.Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSignal(string) {}
func (Nop) RecordReconciled(int64) {}
func (Nop) RecordDispatch(string, string) {}
func (Nop) RecordInvoice(string) {}
func (Nop) RecordError(string) {}
func (Nop) SetRelayConnections(int) {}
func (Nop) RecordLatency(string, float64) {}
