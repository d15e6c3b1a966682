package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"courieropt/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in lexical order. Statements
// must be idempotent (CREATE TABLE IF NOT EXISTS and friends).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(data)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) GetJob(ctx context.Context, id string) (model.Job, error) {
	var j model.Job
	var dates []byte
	err := p.db.QueryRowContext(ctx, `SELECT id, location, type, COALESCE(related_job_id,''), preferred_dates FROM jobs WHERE id=$1`, id).
		Scan(&j.ID, &j.Location, &j.Type, &j.RelatedJobID, &dates)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Job{}, ErrNotFound
	}
	if err != nil {
		return model.Job{}, err
	}
	j.PreferredDates = fromJSONStrings(dates)
	return j, nil
}

func (p *Postgres) ListJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, location, type, COALESCE(related_job_id,''), preferred_dates FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Job{}
	for rows.Next() {
		var j model.Job
		var dates []byte
		if err := rows.Scan(&j.ID, &j.Location, &j.Type, &j.RelatedJobID, &dates); err != nil {
			return nil, err
		}
		j.PreferredDates = fromJSONStrings(dates)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateJob(ctx context.Context, job model.Job) (model.Job, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO jobs (id, location, type, related_job_id, preferred_dates)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET location=EXCLUDED.location, type=EXCLUDED.type,
			related_job_id=EXCLUDED.related_job_id, preferred_dates=EXCLUDED.preferred_dates`,
		job.ID, job.Location, job.Type, nullIfEmpty(job.RelatedJobID), toJSON(job.PreferredDates))
	return job, err
}

func (p *Postgres) UpdateJob(ctx context.Context, id string, upd model.JobUpdate) (model.Job, error) {
	j, err := p.GetJob(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	if upd.Location != nil {
		j.Location = *upd.Location
	}
	if upd.Type != nil {
		j.Type = *upd.Type
	}
	if upd.RelatedJobID != nil {
		j.RelatedJobID = *upd.RelatedJobID
	}
	if upd.PreferredDates != nil {
		j.PreferredDates = *upd.PreferredDates
	}
	_, err = p.db.ExecContext(ctx, `UPDATE jobs SET location=$2, type=$3, related_job_id=$4, preferred_dates=$5 WHERE id=$1`,
		id, j.Location, j.Type, nullIfEmpty(j.RelatedJobID), toJSON(j.PreferredDates))
	return j, err
}

func (p *Postgres) DeleteJob(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM jobs WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	var d model.Driver
	err := p.db.QueryRowContext(ctx, `SELECT id, available_hours, COALESCE(name,''), COALESCE(email,''), COALESCE(phone,'') FROM drivers WHERE id=$1`, id).
		Scan(&d.ID, &d.AvailableHours, &d.Name, &d.Email, &d.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Driver{}, ErrNotFound
	}
	return d, err
}

func (p *Postgres) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, available_hours, COALESCE(name,''), COALESCE(email,''), COALESCE(phone,'') FROM drivers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Driver{}
	for rows.Next() {
		var d model.Driver
		if err := rows.Scan(&d.ID, &d.AvailableHours, &d.Name, &d.Email, &d.Phone); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateDriver(ctx context.Context, d model.Driver) (model.Driver, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.AvailableHours <= 0 {
		d.AvailableHours = model.DefaultAvailableHours
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO drivers (id, available_hours, name, email, phone)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET available_hours=EXCLUDED.available_hours, name=EXCLUDED.name,
			email=EXCLUDED.email, phone=EXCLUDED.phone`,
		d.ID, d.AvailableHours, nullIfEmpty(d.Name), nullIfEmpty(d.Email), nullIfEmpty(d.Phone))
	return d, err
}

func (p *Postgres) UpdateDriver(ctx context.Context, id string, upd model.DriverUpdate) (model.Driver, error) {
	d, err := p.GetDriver(ctx, id)
	if err != nil {
		return model.Driver{}, err
	}
	if upd.AvailableHours != nil {
		d.AvailableHours = *upd.AvailableHours
	}
	if upd.Name != nil {
		d.Name = *upd.Name
	}
	if upd.Email != nil {
		d.Email = *upd.Email
	}
	if upd.Phone != nil {
		d.Phone = *upd.Phone
	}
	_, err = p.db.ExecContext(ctx, `UPDATE drivers SET available_hours=$2, name=$3, email=$4, phone=$5 WHERE id=$1`,
		id, d.AvailableHours, nullIfEmpty(d.Name), nullIfEmpty(d.Email), nullIfEmpty(d.Phone))
	return d, err
}

func (p *Postgres) DeleteDriver(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM drivers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO plans (id, created_at, routes, unassigned)
		VALUES ($1, now(), $2, $3)
		ON CONFLICT (id) DO UPDATE SET routes=EXCLUDED.routes, unassigned=EXCLUDED.unassigned`,
		plan.ID, toJSON(plan.Routes), toJSON(plan.Unassigned))
	return err
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	var plan model.Plan
	var routes, unassigned []byte
	err := p.db.QueryRowContext(ctx, `SELECT id, created_at::text, routes, unassigned FROM plans WHERE id=$1`, id).
		Scan(&plan.ID, &plan.CreatedAt, &routes, &unassigned)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	_ = json.Unmarshal(routes, &plan.Routes)
	_ = json.Unmarshal(unassigned, &plan.Unassigned)
	return plan, nil
}

func (p *Postgres) ListPlans(ctx context.Context, limit int) ([]model.Plan, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id, created_at::text, routes, unassigned FROM plans ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Plan{}
	for rows.Next() {
		var plan model.Plan
		var routes, unassigned []byte
		if err := rows.Scan(&plan.ID, &plan.CreatedAt, &routes, &unassigned); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(routes, &plan.Routes)
		_ = json.Unmarshal(unassigned, &plan.Unassigned)
		out = append(out, plan)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	sub := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		sub.ID, sub.URL, toJSON(sub.Events), nullIfEmpty(sub.Secret))
	return sub, err
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, events, COALESCE(secret,'') FROM subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var sub model.Subscription
		var events []byte
		if err := rows.Scan(&sub.ID, &sub.URL, &events, &sub.Secret); err != nil {
			return nil, err
		}
		sub.Events = fromJSONStrings(events)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	subs, err := p.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.Subscription{}
	for _, sub := range subs {
		for _, ev := range sub.Events {
			if ev == eventType || ev == "*" {
				out = append(out, sub)
				break
			}
		}
	}
	return out, nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, COALESCE(subscription_id,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivered(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), updated_at=now() WHERE id=$1`, id)
	return err
}

func (p *Postgres) RescheduleWebhook(ctx context.Context, id string, nextAttemptAt time.Time, lastError string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3, updated_at=now() WHERE id=$1`,
		id, nextAttemptAt, nullIfEmpty(lastError))
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id, lastError string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now() WHERE id=$1`,
		id, nullIfEmpty(lastError))
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

func fromJSONStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
