package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpattn/crmimport/internal/domain"
)

// Registry holds all Prometheus metrics for the importer. A nil *Registry is valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	// Import metrics
	RowsTotal   *prometheus.CounterVec
	RunsTotal   prometheus.Counter
	RunDuration prometheus.Histogram

	// Remote CRM metrics
	RemoteCallsTotal   *prometheus.CounterVec
	RemoteCallDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewRegistry creates a registry with process and Go collectors plus the importer metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmimport_rows_total",
				Help: "Imported rows by outcome",
			},
			[]string{"result"},
		),
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crmimport_runs_total",
			Help: "Completed import runs",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crmimport_run_duration_seconds",
			Help:    "Wall time of complete import runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		RemoteCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmimport_remote_calls_total",
				Help: "Calls to the CRM REST API by method and status",
			},
			[]string{"method", "status"},
		),
		RemoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crmimport_remote_call_duration_seconds",
				Help:    "CRM REST API latency distribution in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmimport_http_requests_total",
				Help: "HTTP requests served by route, method and status code",
			},
			[]string{"route", "method", "status_code"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRow counts one row outcome.
func (r *Registry) ObserveRow(kind domain.ResultKind) {
	if r == nil {
		return
	}
	r.RowsTotal.WithLabelValues(string(kind)).Inc()
}

// ObserveRun records a finished run.
func (r *Registry) ObserveRun(d time.Duration) {
	if r == nil {
		return
	}
	r.RunsTotal.Inc()
	r.RunDuration.Observe(d.Seconds())
}

// ObserveRemoteCall records one CRM API call. status is the HTTP status or "error".
func (r *Registry) ObserveRemoteCall(method, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.RemoteCallsTotal.WithLabelValues(method, status).Inc()
	r.RemoteCallDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveHTTPRequest counts one served HTTP request.
func (r *Registry) ObserveHTTPRequest(route, method, statusCode string) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(route, method, statusCode).Inc()
}
