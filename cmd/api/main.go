package main

import (
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courieropt/internal/api"
	"courieropt/internal/buildinfo"
	"courieropt/internal/config"
	"courieropt/internal/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Optimization
	mux.HandleFunc("/optimize", srvDeps.OptimizeHandler)
	mux.HandleFunc("/api/optimize", srvDeps.OptimizeHandler)

	// Jobs and drivers
	mux.HandleFunc("/api/jobs", srvDeps.JobsHandler)
	mux.HandleFunc("/api/jobs/", srvDeps.JobByIDHandler)
	mux.HandleFunc("/api/drivers", srvDeps.DriversHandler)
	mux.HandleFunc("/api/drivers/", srvDeps.DriverByIDHandler)

	// Plans (includes /api/plans/{id}/events/stream SSE)
	mux.HandleFunc("/api/plans", srvDeps.PlansHandler)
	mux.HandleFunc("/api/plans/", srvDeps.PlanByIDHandler)
	mux.HandleFunc("/api/plans/ws", srvDeps.PlanWSHandler)

	// Webhook subscriptions
	mux.HandleFunc("/api/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/api/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Health and metrics
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	handler := logMiddleware(api.MetricsMiddleware(srvDeps.RequireKey(
		api.RateLimitMiddleware(cfg.Rate.RPS, cfg.Rate.Burst, mux))))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	worker := srvDeps.NewWebhookWorker()
	worker.Start()

	log.Printf("courieropt %s listening on %s", buildinfo.Version, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, time.Since(start))
	})
}
