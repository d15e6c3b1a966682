package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// DaySolveDuration tracks per-day solver wall time in seconds
	DaySolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "plan_day_solve_duration_seconds", Help: "Per-day VRP solve duration in seconds.", Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60}},
		[]string{"outcome"}, // solved, infeasible
	)
	// PlanJobsUnassigned counts jobs that ended a plan unassigned
	PlanJobsUnassigned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "plan_jobs_unassigned_total", Help: "Jobs left unassigned across completed plans."},
	)
	// PlanRoutes counts routes produced by completed plans
	PlanRoutes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "plan_routes_total", Help: "Routes produced across completed plans."},
	)
	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(DaySolveDuration)
		Registry.MustRegister(PlanJobsUnassigned)
		Registry.MustRegister(PlanRoutes)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
