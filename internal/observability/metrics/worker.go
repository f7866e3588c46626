package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobOutcome describes how one export job ended. Status is the export
// status (success, failed) or "error" when no record was produced.
type JobOutcome struct {
	Provider string
	Status   string
	Retries  int
}

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobRetries  *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	queueLag    *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "export_jobs_total",
			Help:      "Export jobs handled by the worker, by provider and status.",
		}, []string{"service", "provider", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "export_job_duration_seconds",
			Help:      "Wall time of one export job, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service", "status"}),
		jobRetries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "export_job_retries",
			Help:      "Retries spent by the exporter before the job settled.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		}, []string{"service", "provider"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "export_jobs_in_flight",
			Help:        "Export jobs currently running.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		queueLag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between an export request and the worker picking it up.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service"}),
	}
	m.registry.MustRegister(m.jobsTotal, m.jobDuration, m.jobRetries, m.inFlight, m.queueLag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.inFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, outcome JobOutcome) {
	m.inFlight.Dec()

	status := strings.TrimSpace(outcome.Status)
	if status == "" {
		status = "error"
	}
	provider := strings.TrimSpace(outcome.Provider)
	if provider == "" {
		provider = "unknown"
	}

	m.jobsTotal.WithLabelValues(service, provider, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if status != "error" {
		m.jobRetries.WithLabelValues(service, provider).Observe(float64(outcome.Retries))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
