package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"courieropt/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	jobs       map[string]model.Job
	jobIDs     []string // insertion order
	drivers    map[string]model.Driver
	drvIDs     []string
	plans      map[string]model.Plan
	planIDs    []string
	subs       map[string]model.Subscription
	subIDs     []string
	deliveries map[string]*memDelivery
	delIDs     []string
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
}

func NewMemory() *Memory {
	return &Memory{
		jobs:       map[string]model.Job{},
		drivers:    map[string]model.Driver{},
		plans:      map[string]model.Plan{},
		subs:       map[string]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) GetJob(ctx context.Context, id string) (model.Job, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok { return model.Job{}, ErrNotFound }
	return j, nil
}

func (m *Memory) ListJobs(ctx context.Context) ([]model.Job, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := make([]model.Job, 0, len(m.jobIDs))
	for _, id := range m.jobIDs {
		out = append(out, m.jobs[id])
	}
	return out, nil
}

func (m *Memory) CreateJob(ctx context.Context, job model.Job) (model.Job, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if job.ID == "" { job.ID = uuid.New().String() }
	if _, exists := m.jobs[job.ID]; !exists {
		m.jobIDs = append(m.jobIDs, job.ID)
	}
	m.jobs[job.ID] = job
	return job, nil
}

func (m *Memory) UpdateJob(ctx context.Context, id string, upd model.JobUpdate) (model.Job, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok { return model.Job{}, ErrNotFound }
	if upd.Location != nil { j.Location = *upd.Location }
	if upd.Type != nil { j.Type = *upd.Type }
	if upd.RelatedJobID != nil { j.RelatedJobID = *upd.RelatedJobID }
	if upd.PreferredDates != nil { j.PreferredDates = *upd.PreferredDates }
	m.jobs[id] = j
	return j, nil
}

func (m *Memory) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok { return ErrNotFound }
	delete(m.jobs, id)
	m.jobIDs = removeID(m.jobIDs, id)
	return nil
}

func (m *Memory) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok { return model.Driver{}, ErrNotFound }
	return d, nil
}

func (m *Memory) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := make([]model.Driver, 0, len(m.drvIDs))
	for _, id := range m.drvIDs {
		out = append(out, m.drivers[id])
	}
	return out, nil
}

func (m *Memory) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if d.ID == "" { d.ID = uuid.New().String() }
	if d.AvailableHours <= 0 { d.AvailableHours = model.DefaultAvailableHours }
	if _, exists := m.drivers[d.ID]; !exists {
		m.drvIDs = append(m.drvIDs, d.ID)
	}
	m.drivers[d.ID] = d
	return d, nil
}

func (m *Memory) UpdateDriver(ctx context.Context, id string, upd model.DriverUpdate) (model.Driver, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok { return model.Driver{}, ErrNotFound }
	if upd.AvailableHours != nil { d.AvailableHours = *upd.AvailableHours }
	if upd.Name != nil { d.Name = *upd.Name }
	if upd.Email != nil { d.Email = *upd.Email }
	if upd.Phone != nil { d.Phone = *upd.Phone }
	m.drivers[id] = d
	return d, nil
}

func (m *Memory) DeleteDriver(ctx context.Context, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	if _, ok := m.drivers[id]; !ok { return ErrNotFound }
	delete(m.drivers, id)
	m.drvIDs = removeID(m.drvIDs, id)
	return nil
}

func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) error {
	m.mu.Lock(); defer m.mu.Unlock()
	if _, exists := m.plans[plan.ID]; !exists {
		m.planIDs = append(m.planIDs, plan.ID)
	}
	m.plans[plan.ID] = plan
	return nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok { return model.Plan{}, ErrNotFound }
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, limit int) ([]model.Plan, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 50 }
	out := []model.Plan{}
	// newest first
	for i := len(m.planIDs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.plans[m.planIDs[i]])
	}
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	sub := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[sub.ID] = sub
	m.subIDs = append(m.subIDs, sub.ID)
	return sub, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subIDs))
	for _, id := range m.subIDs {
		out = append(out, m.subs[id])
	}
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok { return ErrNotFound }
	delete(m.subs, id)
	m.subIDs = removeID(m.subIDs, id)
	return nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, id := range m.subIDs {
		sub := m.subs[id]
		for _, ev := range sub.Events {
			if ev == eventType || ev == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID: id, SubscriptionID: subscriptionID, EventType: eventType,
			URL: url, Secret: secret, Payload: payload, Status: "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.delIDs = append(m.delIDs, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	now := time.Now()
	due := []*memDelivery{}
	for _, id := range m.delIDs {
		d := m.deliveries[id]
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if limit > 0 && len(due) > limit { due = due[:limit] }
	out := make([]WebhookDelivery, len(due))
	for i, d := range due {
		out[i] = d.WebhookDelivery
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivered(ctx context.Context, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok { return ErrNotFound }
	d.Status = "delivered"
	return nil
}

func (m *Memory) RescheduleWebhook(ctx context.Context, id string, nextAttemptAt time.Time, lastError string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok { return ErrNotFound }
	d.Status = "retry"
	d.Attempts++
	d.NextAttemptAt = nextAttemptAt
	d.LastError = lastError
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id, lastError string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok { return ErrNotFound }
	d.Status = "failed"
	d.LastError = lastError
	return nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
