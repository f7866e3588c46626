package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meetnotes"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	segmentsTotal      *prometheus.CounterVec
	ingestIgnoredTotal *prometheus.CounterVec
	finalizeTotal      *prometheus.CounterVec
	exportRetries      *prometheus.HistogramVec
	liveSubscribers    prometheus.Gauge
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	segmentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "meeting",
			Name:      "segments_total",
			Help:      "Stored transcript segments by attribution source.",
		},
		[]string{"service", "source"},
	)
	ingestIgnoredTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "meeting",
			Name:      "ingest_ignored_total",
			Help:      "Chunks acknowledged without storing a segment, by reason.",
		},
		[]string{"service", "reason"},
	)
	finalizeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "meeting",
			Name:      "finalize_total",
			Help:      "Finalized meetings by export outcome.",
		},
		[]string{"service", "export_status"},
	)
	exportRetries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "retries",
			Help:      "Retries spent per export operation.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		},
		[]string{"service", "status"},
	)
	liveSubscribers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "subscribers",
			Help:      "Open live event streams.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		segmentsTotal,
		ingestIgnoredTotal,
		finalizeTotal,
		exportRetries,
		liveSubscribers,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		segmentsTotal:      segmentsTotal,
		ingestIgnoredTotal: ingestIgnoredTotal,
		finalizeTotal:      finalizeTotal,
		exportRetries:      exportRetries,
		liveSubscribers:    liveSubscribers,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses ids so label cardinality stays bounded.
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "meetings":
		parts[2] = "{meeting_id}"
	case "participants":
		parts[2] = "{participant_id}"
	default:
		return path
	}
	return "/" + strings.Join(parts, "/")
}

func (m *HTTPServerMetrics) RecordSegment(service, source string) {
	if source == "" {
		source = "unknown"
	}
	m.segmentsTotal.WithLabelValues(service, source).Inc()
}

func (m *HTTPServerMetrics) RecordIngestIgnored(service, reason string) {
	m.ingestIgnoredTotal.WithLabelValues(service, reason).Inc()
}

func (m *HTTPServerMetrics) RecordFinalize(service, exportStatus string) {
	if exportStatus == "" {
		exportStatus = "none"
	}
	m.finalizeTotal.WithLabelValues(service, exportStatus).Inc()
}

func (m *HTTPServerMetrics) RecordExport(service, status string, retries int) {
	m.exportRetries.WithLabelValues(service, status).Observe(float64(retries))
}

func (m *HTTPServerMetrics) LiveSubscriberOpened() {
	m.liveSubscribers.Inc()
}

func (m *HTTPServerMetrics) LiveSubscriberClosed() {
	m.liveSubscribers.Dec()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
