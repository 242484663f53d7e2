// Package metrics exposes ingestion and mail-scan counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ExtractionSeconds prometheus.Histogram
	ExtractionErrors  prometheus.Counter
	Payloads          prometheus.Counter
	Reservations      *prometheus.CounterVec
	MessagesScanned   *prometheus.CounterVec
}

// New registers the collectors under namespace. Each call gets its own
// registry so tests can build as many as they like.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ExtractionSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent waiting for the extraction model",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90},
		}),
		ExtractionErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Extractions that failed closed",
		}),
		Payloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_payloads_total",
			Help:      "Reservation payloads returned by the model",
		}),
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_reservations_total",
			Help:      "Ingestion outcomes per reservation",
		}, []string{"outcome"}),
		MessagesScanned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_messages_total",
			Help:      "Mailbox messages seen by the scanner",
		}, []string{"outcome"}),
	}
}

// ExtractionDone records one extraction call.
func (m *Metrics) ExtractionDone(d time.Duration, payloads int, err error) {
	m.ExtractionSeconds.Observe(d.Seconds())
	if err != nil {
		m.ExtractionErrors.Inc()
		return
	}
	m.Payloads.Add(float64(payloads))
}

// IngestDone records the outcome counts of one document.
func (m *Metrics) IngestDone(created, duplicates, updated, skipped int) {
	m.Reservations.WithLabelValues("created").Add(float64(created))
	m.Reservations.WithLabelValues("duplicate").Add(float64(duplicates))
	m.Reservations.WithLabelValues("updated").Add(float64(updated))
	m.Reservations.WithLabelValues("skipped").Add(float64(skipped))
}

// MessageSeen records one mailbox message by outcome: ingested, processed
// (seen before), rejected (sender not allowed), or failed.
func (m *Metrics) MessageSeen(outcome string) {
	m.MessagesScanned.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
