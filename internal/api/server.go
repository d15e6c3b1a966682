// Package api implements the HTTP surface of the route optimization
// service.
package api

import (
	"log"
	"os"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"courieropt/internal/auth"
	"courieropt/internal/config"
	"courieropt/internal/planner"
	"courieropt/internal/store"
	"courieropt/internal/travel"
	"courieropt/internal/webhooks"
)

type Server struct {
	Store   store.Store
	Travel  travel.Provider
	Planner *planner.Planner
	Auth    *auth.Verifier
	Broker  EventBroker
	Pub     *webhooks.Publisher

	cfg *config.Config
}

// NewServer wires storage, travel provider, broker and planner from the
// config. No DATABASE_URL means the in-memory store; no REDIS_URL means
// the in-process broker and no matrix cache.
func NewServer(cfg *config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.MigrateDir("db/migrations")
		}
		s = sp
	}

	tp := newTravelProvider(cfg)

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		if opt, err := redis.ParseURL(cfg.RedisURL); err == nil {
			rdb := redis.NewClient(opt)
			broker = NewRedisBroker(rdb)
			tp = travel.NewCache(rdb, tp, cfg.Travel.CacheTTLDuration)
		} else {
			log.Printf("invalid REDIS_URL, falling back to in-memory broker: %v", err)
		}
	}

	pl := &planner.Planner{
		Travel:          tp,
		Depot:           cfg.Depot,
		Budget:          cfg.Solver.TimeBudgetDuration,
		DefaultMaxHours: cfg.Solver.MaxHoursPerDriver,
	}

	return &Server{
		Store:   s,
		Travel:  tp,
		Planner: pl,
		Auth:    auth.New(cfg.APIKey),
		Broker:  broker,
		Pub:     webhooks.NewPublisher(s),
		cfg:     cfg,
	}, nil
}

func newTravelProvider(cfg *config.Config) travel.Provider {
	if cfg.Travel.Mode == "estimate" {
		return travel.Estimate{}
	}
	if cfg.Travel.APIKey == "" {
		log.Printf("no Google Maps API key configured, using estimated travel times")
		return travel.Estimate{}
	}
	return travel.NewGoogle(cfg.Travel.APIKey)
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.cfg.Webhooks.MaxAttempts)
}
