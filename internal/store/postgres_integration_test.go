//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"courieropt/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	ctx := context.Background()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}

	job, err := p.CreateJob(ctx, model.Job{Location: "Solihull, UK", Type: model.JobTypeDelivery})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	defer func() { _ = p.DeleteJob(ctx, job.ID) }()
	if _, err := p.GetJob(ctx, job.ID); err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if _, err := p.ListJobs(ctx); err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
}
