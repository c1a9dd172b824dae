// Package metrics provides Prometheus metrics for blogpipe
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blogpipe"

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	DiagnosticTotal *prometheus.CounterVec
	Documents       prometheus.Gauge
	ReloadsTotal    *prometheus.CounterVec
	PagesWritten    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg gets a
// private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Pipeline queries by operation and status",
		}, []string{"op", "status"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of pipeline queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		DiagnosticTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Non-fatal content diagnostics by kind",
		}, []string{"kind"}),
		Documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents",
			Help:      "Documents in the current store snapshot",
		}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Store reloads by result",
		}, []string{"result"}),
		PagesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_pages_total",
			Help:      "Static pages by outcome (written, skipped)",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.QueriesTotal, m.QueryDuration, m.DiagnosticTotal, m.Documents, m.ReloadsTotal, m.PagesWritten)
	return m
}

func (m *Metrics) ObserveQuery(op, status string, start time.Time) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(op, status).Inc()
	m.QueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.DiagnosticTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetDocuments(n int) {
	if m == nil {
		return
	}
	m.Documents.Set(float64(n))
}

func (m *Metrics) Reload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ReloadsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Page(written bool) {
	if m == nil {
		return
	}
	outcome := "written"
	if !written {
		outcome = "skipped"
	}
	m.PagesWritten.WithLabelValues(outcome).Inc()
}
