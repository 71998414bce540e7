// Package metrics exposes Prometheus collectors for the statusbar poller.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll outcomes used as the "result" label.
const (
	ResultSuccess = "success"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Collector holds every statusbar metric, registered on one registry.
type Collector struct {
	gatherer prometheus.Gatherer

	pollsTotal          *prometheus.CounterVec
	pollDuration        prometheus.Histogram
	jobPercentage       *prometheus.GaugeVec
	jobFailures         *prometheus.GaugeVec
	reloadsTotal        prometheus.Counter
	jobsDiscovered      prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		pollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statusbar_polls_total",
				Help: "Total number of job status polls, labeled by result.",
			},
			[]string{"result"},
		),
		pollDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "statusbar_poll_duration_seconds",
				Help:    "Histogram of job status request latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		jobPercentage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "statusbar_job_percentage",
				Help: "Last reported completion percentage, labeled by job id.",
			},
			[]string{"job"},
		),
		jobFailures: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "statusbar_job_consecutive_failures",
				Help: "Consecutive failed polls, labeled by job id.",
			},
			[]string{"job"},
		),
		reloadsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "statusbar_reloads_total",
				Help: "Total number of page reloads triggered by completed jobs.",
			},
		),
		jobsDiscovered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "statusbar_jobs_discovered",
				Help: "Number of jobs discovered on the current page.",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statusbar_http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statusbar_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		),
	}
}

// Handler returns an http.Handler exposing the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObservePoll records one poll outcome and its latency.
func (c *Collector) ObservePoll(result string, latency time.Duration) {
	c.pollsTotal.WithLabelValues(result).Inc()
	if latency > 0 {
		c.pollDuration.Observe(latency.Seconds())
	}
}

// SetPercentage records a job's latest percentage.
func (c *Collector) SetPercentage(job string, percentage float64) {
	c.jobPercentage.WithLabelValues(job).Set(percentage)
}

// SetFailures records a job's consecutive failure count.
func (c *Collector) SetFailures(job string, failures int) {
	c.jobFailures.WithLabelValues(job).Set(float64(failures))
}

// ObserveReload counts a page reload.
func (c *Collector) ObserveReload() {
	c.reloadsTotal.Inc()
}

// SetJobs replaces the per-job series with a fresh page of n jobs.
func (c *Collector) SetJobs(n int) {
	c.jobPercentage.Reset()
	c.jobFailures.Reset()
	c.jobsDiscovered.Set(float64(n))
}

// Middleware is a chi middleware that records HTTP request metrics.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}
