package reconciler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the reconciler's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	handler      http.Handler
	passes       *prometheus.CounterVec
	records      *prometheus.CounterVec
	errors       *prometheus.CounterVec
	failed       *prometheus.GaugeVec
	passDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolkeeper_sync_passes_total",
		Help: "Reconciliation passes by outcome",
	}, []string{"outcome"})

	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolkeeper_sync_records_total",
		Help: "Replayed records by kind and result",
	}, []string{"kind", "result"})

	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schoolkeeper_sync_errors_total",
		Help: "Transport and iteration faults by kind",
	}, []string{"kind"})

	failed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "schoolkeeper_sync_failed_records",
		Help: "Records whose replay failed in the last pass",
	}, []string{"kind"})

	passDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schoolkeeper_sync_pass_duration_seconds",
		Help:    "Duration of reconciliation passes",
		Buckets: prometheus.DefBuckets,
	})

	registry.MustRegister(passes, records, errs, failed, passDuration)

	return &Metrics{
		handler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		passes:       passes,
		records:      records,
		errors:       errs,
		failed:       failed,
		passDuration: passDuration,
	}
}

// Handler exposes the collectors over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) observeSkipped() {
	if m == nil {
		return
	}
	m.passes.WithLabelValues("skipped").Inc()
}

func (m *Metrics) observePass(res Result, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !res.Success {
		outcome = "partial"
	}
	m.passes.WithLabelValues(outcome).Inc()
	m.passDuration.Observe(d.Seconds())

	for kind, kr := range res.Kinds {
		k := string(kind)
		m.records.WithLabelValues(k, "synced").Add(float64(kr.Synced))
		m.records.WithLabelValues(k, "failed").Add(float64(kr.Failed))
		m.errors.WithLabelValues(k).Add(float64(kr.Errors))
		m.failed.WithLabelValues(k).Set(float64(kr.Failed))
	}
}
