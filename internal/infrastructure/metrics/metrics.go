package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Loans records engine operations on a private registry.
type Loans struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	overdue  prometheus.Gauge
}

func NewLoans(namespace string) *Loans {
	if namespace == "" {
		namespace = "loan_engine"
	}
	registry := prometheus.NewRegistry()
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Loan engine operations by outcome.",
	}, []string{"op", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of loan engine operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	overdue := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "overdue_loans",
		Help:      "Active loans with an overdue installment at the last scan.",
	})
	registry.MustRegister(ops, latency, overdue,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Loans{registry: registry, ops: ops, latency: latency, overdue: overdue}
}

func (m *Loans) ObserveOp(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Loans) SetOverdue(n int) {
	if m == nil {
		return
	}
	m.overdue.Set(float64(n))
}

func (m *Loans) Registry() *prometheus.Registry { return m.registry }

func (m *Loans) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
