// Package metrics wires github.com/prometheus/client_golang the way the
// teacher's own internal/metrics package is called from main.go
// (metrics.InitBuildInfo, metrics.InstrumentHandler,
// metrics.RegisterMetricsEndpoint), plus counters/gauges specific to the
// reconciliation tick.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_build_info",
		Help: "Build metadata for the running orchestrator binary, always 1.",
	}, []string{"version", "commit", "date"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "orchestrator_http_request_duration_seconds",
		Help: "HTTP request latency by route, method, and status.",
	}, []string{"route", "method", "status"})

	// TasksEnqueued counts tasks handed to the task queue by the
	// reconciliation tick, labeled by task kind.
	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_tasks_enqueued_total",
		Help: "Tasks enqueued by the reconciliation tick, by kind.",
	}, []string{"kind"})

	// TicksRun counts every GenerateTasks invocation.
	TicksRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_ticks_total",
		Help: "Reconciliation ticks executed.",
	})

	// TicksFailed counts GenerateTasks invocations that returned an
	// error, labeled by status code.
	TicksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_ticks_failed_total",
		Help: "Reconciliation ticks that returned an error, by status code.",
	}, []string{"code"})

	// ActivePipelines tracks the current count of NEW/RUNNING pipeline
	// executions, sampled once per tick.
	ActivePipelines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orchestrator_active_pipelines",
		Help: "Pipelines with an active (NEW or RUNNING) execution.",
	})
)

// InitBuildInfo sets the build info gauge once at startup.
func InitBuildInfo(version, commit, date string) {
	buildInfo.WithLabelValues(version, commit, date).Set(1)
}

// InstrumentHandler records request latency for every routed request. It
// is mounted as chi middleware ahead of route matching, matching the
// teacher's r.Use(metrics.InstrumentHandler) ordering.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		requestDuration.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// RegisterMetricsEndpoint mounts the Prometheus scrape endpoint.
func RegisterMetricsEndpoint(r chi.Router) {
	r.Handle("/metrics", promhttp.Handler())
}
