package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dev server's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	apiInflight  prometheus.Gauge
	jobsCreated  *prometheus.CounterVec
	jobsFinished *prometheus.CounterVec
	jobSteps     *prometheus.CounterVec
	streams      prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studygen_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studygen_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studygen_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		jobsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studygen_jobs_created_total",
			Help: "Generation jobs created by type.",
		}, []string{"type"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studygen_jobs_finished_total",
			Help: "Generation jobs that reached a terminal status.",
		}, []string{"type", "status"}),
		jobSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studygen_job_steps_total",
			Help: "Simulated pipeline steps started by job type and step.",
		}, []string{"type", "step"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studygen_realtime_streams",
			Help: "Open SSE and WebSocket streams.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.jobsCreated,
		m.jobsFinished,
		m.jobSteps,
		m.streams,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncJobCreated(jobType string) {
	if m == nil {
		return
	}
	m.jobsCreated.WithLabelValues(labelOr(jobType)).Inc()
}

func (m *Metrics) IncJobFinished(jobType, status string) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(labelOr(jobType), labelOr(status)).Inc()
}

func (m *Metrics) IncJobStep(jobType, step string) {
	if m == nil {
		return
	}
	m.jobSteps.WithLabelValues(labelOr(jobType), labelOr(step)).Inc()
}

// StreamGauge is handed to the realtime hub to count open streams.
func (m *Metrics) StreamGauge() prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.streams
}

func labelOr(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
