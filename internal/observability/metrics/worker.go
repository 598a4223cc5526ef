package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	embedTotal    *prometheus.CounterVec
	embedDuration *prometheus.HistogramVec
	embedInFlight prometheus.Gauge
	queueLag      prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	embedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "resource_embed_total",
			Help:      "Total embedding pipeline runs by outcome.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	embedDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "resource_embed_duration_seconds",
			Help:      "Embedding pipeline duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	embedInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "resource_embed_in_flight",
			Help:      "Number of resources currently in the embedding pipeline.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between resource registration and pipeline start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(embedTotal, embedDuration, embedInFlight, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		embedTotal:    embedTotal,
		embedDuration: embedDuration,
		embedInFlight: embedInFlight,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartResource() {
	m.embedInFlight.Inc()
}

func (m *WorkerMetrics) FinishResource(duration time.Duration, err error) {
	m.embedInFlight.Dec()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.embedTotal.WithLabelValues(outcome).Inc()
	m.embedDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
