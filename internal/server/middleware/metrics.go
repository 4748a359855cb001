package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP метрики прокси. Метка path содержит шаблон роута (не реальный путь),
// чтобы не раздувать кардинальность slug'ами и payment id.
type Metrics struct {
	inFlight        prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registry        *prometheus.Registry
}

// NewMetrics создает и регистрирует метрики в собственном registry
func NewMetrics() *Metrics {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portalkeeper_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalkeeper_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portalkeeper_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(m.inFlight, m.requestsTotal, m.requestDuration)
	return m
}

// Handler возвращает HTTP handler для /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument — обертка для измерения RPS/latency/in-flight
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		start := time.Now()

		sw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.statusCode)
		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}

		m.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		m.requestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.inFlight.Dec()
	})
}
