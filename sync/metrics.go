// ABOUTME: Prometheus metrics for tier resolution and writes
// ABOUTME: Registered on a caller-supplied registry so tests stay isolated
package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks how reads were served and how writes went.
type Metrics struct {
	// ResolveTotal counts resolver outcomes by tier and result
	ResolveTotal *prometheus.CounterVec

	// FetchDuration tracks remote fetch latency by tier
	FetchDuration *prometheus.HistogramVec

	// WritesTotal counts writes by op, target and result
	WritesTotal *prometheus.CounterVec

	// LeadsServed is the lead count of the last snapshot handed out
	LeadsServed prometheus.Gauge
}

// NewMetrics registers the engine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResolveTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "leadsheet",
				Subsystem: "resolver",
				Name:      "resolve_total",
				Help:      "Total number of tier attempts by tier and result",
			},
			[]string{"tier", "result"},
		),
		FetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "leadsheet",
				Subsystem: "resolver",
				Name:      "fetch_duration_seconds",
				Help:      "Duration of remote spreadsheet fetches in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"tier"},
		),
		WritesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "leadsheet",
				Subsystem: "writer",
				Name:      "writes_total",
				Help:      "Total number of writes by op, target and result",
			},
			[]string{"op", "target", "result"},
		),
		LeadsServed: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "leadsheet",
				Subsystem: "resolver",
				Name:      "leads_served",
				Help:      "Number of leads in the last snapshot served",
			},
		),
	}
}

func (m *Metrics) resolve(tier, result string) {
	if m == nil {
		return
	}
	m.ResolveTotal.WithLabelValues(tier, result).Inc()
}

func (m *Metrics) fetched(tier string, start time.Time) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(tier).Observe(time.Since(start).Seconds())
}

func (m *Metrics) wrote(op, target string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.WritesTotal.WithLabelValues(op, target, result).Inc()
}

func (m *Metrics) served(n int) {
	if m == nil {
		return
	}
	m.LeadsServed.Set(float64(n))
}
