package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type TravelConfig struct {
	Mode     string `yaml:"mode"` // google or estimate
	APIKey   string `yaml:"api_key"`
	CacheTTL string `yaml:"cache_ttl"`

	CacheTTLDuration time.Duration
}

type SolverConfig struct {
	TimeBudget        string `yaml:"time_budget"`
	MaxHoursPerDriver int    `yaml:"max_hours_per_driver"`

	TimeBudgetDuration time.Duration
}

type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type WebhooksConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Depot    string         `yaml:"depot"`
	Travel   TravelConfig   `yaml:"travel"`
	Solver   SolverConfig   `yaml:"solver"`
	Rate     RateConfig     `yaml:"rate"`
	Webhooks WebhooksConfig `yaml:"webhooks"`

	// Env-only settings, never read from the file.
	DatabaseURL string
	RedisURL    string
	APIKey      string
}

// Load reads the optional YAML config file and applies environment
// overrides. Environment variables always win over file values.
func Load() (*Config, error) {
	cfg := &Config{
		Server:   ServerConfig{Port: "8080"},
		Depot:    "Birmingham, UK",
		Travel:   TravelConfig{Mode: "google", CacheTTL: "24h"},
		Solver:   SolverConfig{TimeBudget: "30s", MaxHoursPerDriver: 9},
		Webhooks: WebhooksConfig{MaxAttempts: 10},
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.Getenv("CONFIG_PATH") != "" {
		// An explicitly named file must exist.
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	var err error
	cfg.Travel.CacheTTLDuration, err = time.ParseDuration(cfg.Travel.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("travel.cache_ttl: %w", err)
	}
	cfg.Solver.TimeBudgetDuration, err = time.ParseDuration(cfg.Solver.TimeBudget)
	if err != nil {
		return nil, fmt.Errorf("solver.time_budget: %w", err)
	}
	if cfg.Solver.MaxHoursPerDriver <= 0 {
		cfg.Solver.MaxHoursPerDriver = 9
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DEPOT_LOCATION"); v != "" {
		cfg.Depot = v
	}
	if v := os.Getenv("TRAVEL_MODE"); v != "" {
		cfg.Travel.Mode = v
	}
	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		cfg.Travel.APIKey = v
	}
	if v := os.Getenv("SOLVER_TIME_BUDGET"); v != "" {
		cfg.Solver.TimeBudget = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Rate.RPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rate.Burst = n
		}
	}
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Webhooks.MaxAttempts = n
		}
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.APIKey = os.Getenv("API_KEY")
}
