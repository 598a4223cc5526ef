package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal   *prometheus.CounterVec
	queryResults *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpus",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpus",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "corpus",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpus",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total retrieval queries by strategy.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"strategy"},
	)
	queryResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpus",
			Subsystem: "retrieval",
			Name:      "query_results",
			Help:      "Number of results returned per retrieval query.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"strategy"},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight, queryTotal, queryResults)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		queryTotal:      queryTotal,
		queryResults:    queryResults,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RequestStarted() {
	m.requestInFlight.Inc()
}

func (m *HTTPServerMetrics) RequestFinished() {
	m.requestInFlight.Dec()
}

func (m *HTTPServerMetrics) ObserveQuery(strategy string, resultCount int) {
	m.queryTotal.WithLabelValues(strategy).Inc()
	m.queryResults.WithLabelValues(strategy).Observe(float64(resultCount))
}
