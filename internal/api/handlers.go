package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"courieropt/internal/model"
	"courieropt/internal/planner"
	"courieropt/internal/store"
	"courieropt/internal/travel"
)

// JobsHandler handles GET/POST /api/jobs.
func (s *Server) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs, err := s.Store.ListJobs(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List jobs failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	case http.MethodPost:
		var job model.Job
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		created, err := s.Store.CreateJob(r.Context(), job)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create job failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// JobByIDHandler handles GET/PUT/DELETE /api/jobs/{id}.
func (s *Server) JobByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		job, err := s.Store.GetJob(r.Context(), id)
		if err != nil {
			s.storeError(w, r, err, "Job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodPut:
		var upd model.JobUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		job, err := s.Store.UpdateJob(r.Context(), id, upd)
		if err != nil {
			s.storeError(w, r, err, "Job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.Store.DeleteJob(r.Context(), id); err != nil {
			s.storeError(w, r, err, "Job not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DriversHandler handles GET/POST /api/drivers.
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		drivers, err := s.Store.ListDrivers(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List drivers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, drivers)
	case http.MethodPost:
		var d model.Driver
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		created, err := s.Store.CreateDriver(r.Context(), d)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create driver failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DriverByIDHandler handles GET/PUT/DELETE /api/drivers/{id}.
func (s *Server) DriverByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/drivers/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		d, err := s.Store.GetDriver(r.Context(), id)
		if err != nil {
			s.storeError(w, r, err, "Driver not found")
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPut:
		var upd model.DriverUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		d, err := s.Store.UpdateDriver(r.Context(), id, upd)
		if err != nil {
			s.storeError(w, r, err, "Driver not found")
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodDelete:
		if err := s.Store.DeleteDriver(r.Context(), id); err != nil {
			s.storeError(w, r, err, "Driver not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OptimizeHandler handles POST /optimize and /api/optimize: one weekly
// plan per call, solved synchronously.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}

	planID := req.PlanID
	if planID == "" {
		planID = uuid.New().String()
	}
	w.Header().Set("X-Plan-Id", planID)

	s.Broker.Publish(planID, Event{Type: "plan.started", Data: map[string]any{
		"planId": planID, "jobs": len(req.Jobs), "driversPerDay": req.NumDriversPerDay,
	}})

	// Per-request planner copy so the day hook can close over this plan.
	pl := *s.Planner
	pl.OnDaySolved = func(d planner.DaySummary) {
		s.Broker.Publish(planID, Event{Type: "day.solved", Data: map[string]any{
			"planId": planID, "day": d.Day, "routes": d.Routes, "unassigned": d.Unassigned,
		}})
	}

	result, err := pl.PlanWeek(r.Context(), req)
	if err != nil {
		detail := fmt.Sprintf("Route optimization failed: %v", err)
		status := http.StatusInternalServerError
		title := "Route optimization failed"
		if errors.Is(err, travel.ErrUnavailable) {
			status = http.StatusServiceUnavailable
			title = "Travel time service unavailable"
		}
		s.Broker.Publish(planID, Event{Type: "plan.failed", Data: map[string]any{"planId": planID, "error": err.Error()}})
		s.Pub.Emit(r.Context(), "plan.failed", map[string]any{"planId": planID, "error": err.Error()})
		writeProblem(w, status, title, detail, r.URL.Path)
		return
	}

	plan := model.Plan{
		ID:         planID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Routes:     result.Routes,
		Unassigned: result.Unassigned,
	}
	if err := s.Store.SavePlan(r.Context(), plan); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
		return
	}

	s.Broker.Publish(planID, Event{Type: "plan.completed", Data: map[string]any{
		"planId": planID, "routes": len(result.Routes), "unassigned": len(result.Unassigned),
	}})
	s.Pub.Emit(r.Context(), "plan.completed", map[string]any{
		"planId": planID, "routes": len(result.Routes), "unassigned": result.Unassigned,
	})

	writeJSON(w, http.StatusOK, result)
}

// PlansHandler handles GET /api/plans.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	plans, err := s.Store.ListPlans(r.Context(), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// PlanByIDHandler handles /api/plans/{id} and /api/plans/{id}/events/stream.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/plans/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}

	if len(parts) == 3 && parts[1] == "events" && parts[2] == "stream" {
		s.planEventsStream(w, r, id)
		return
	}
	if len(parts) != 1 || r.Method != http.MethodGet {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err, "Plan not found")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// planEventsStream streams plan events over SSE with heartbeats.
func (s *Server) planEventsStream(w http.ResponseWriter, r *http.Request, planID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(planID)
	defer s.Broker.Unsubscribe(planID, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", planID, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// SubscriptionsHandler handles GET/POST /api/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		subs, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /api/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/subscriptions/")
	if id == "" || r.Method != http.MethodDelete {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		s.storeError(w, r, err, "Subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler reports process liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

// ReadyHandler reports dependency readiness: a Postgres-backed store
// must answer a ping.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.Store.(*store.Postgres); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error, notFoundTitle string) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, notFoundTitle, "", r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Storage error", err.Error(), r.URL.Path)
}
