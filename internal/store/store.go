package store

import (
	"context"
	"errors"
	"time"

	"courieropt/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Jobs
	GetJob(ctx context.Context, id string) (model.Job, error)
	ListJobs(ctx context.Context) ([]model.Job, error)
	CreateJob(ctx context.Context, job model.Job) (model.Job, error)
	UpdateJob(ctx context.Context, id string, upd model.JobUpdate) (model.Job, error)
	DeleteJob(ctx context.Context, id string) error

	// Drivers
	GetDriver(ctx context.Context, id string) (model.Driver, error)
	ListDrivers(ctx context.Context) ([]model.Driver, error)
	CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error)
	UpdateDriver(ctx context.Context, id string, upd model.DriverUpdate) (model.Driver, error)
	DeleteDriver(ctx context.Context, id string) error

	// Plans
	SavePlan(ctx context.Context, plan model.Plan) error
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	ListPlans(ctx context.Context, limit int) ([]model.Plan, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivered(ctx context.Context, id string) error
	RescheduleWebhook(ctx context.Context, id string, nextAttemptAt time.Time, lastError string) error
	FailWebhookDelivery(ctx context.Context, id, lastError string) error
}

var ErrNotFound = errors.New("not found")
