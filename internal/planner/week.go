package planner

import (
	"context"
	"fmt"
	"log"
	"time"

	"courieropt/internal/metrics"
	"courieropt/internal/model"
	"courieropt/internal/travel"
)

// DaySummary is handed to the OnDaySolved hook after each day completes.
type DaySummary struct {
	Day        int // 1..5
	Routes     int
	Unassigned int
}

// Planner builds the weekly plan: one independent solve per working day
// over that day's eligible jobs, then aggregation of routes and
// unassigned ids.
type Planner struct {
	Travel          travel.Provider
	Depot           string
	Budget          time.Duration // per-day solver budget
	DefaultMaxHours int
	Seed            int64 // 0 means time-seeded

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time

	// OnDaySolved, when set, is called after each day's solve.
	OnDaySolved func(DaySummary)
}

// PlanWeek solves all five days and aggregates the result. The caller
// validates the request; an empty job list here yields an empty plan.
// Travel matrix failures abort the whole plan.
func (p *Planner) PlanWeek(ctx context.Context, req model.OptimizeRequest) (model.OptimizeResponse, error) {
	out := model.OptimizeResponse{Routes: []model.Route{}, Unassigned: []string{}}
	if len(req.Jobs) == 0 {
		return out, nil
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}
	// The cap is the longest declared driver day; a driver that omits
	// available_hours counts as 9. The configured default applies only
	// when the request names no drivers at all.
	maxHours := 0
	for _, d := range req.Drivers {
		h := d.AvailableHours
		if h <= 0 {
			h = model.DefaultAvailableHours
		}
		if h > maxHours {
			maxHours = h
		}
	}
	if maxHours == 0 {
		maxHours = p.DefaultMaxHours
		if maxHours <= 0 {
			maxHours = model.DefaultAvailableHours
		}
	}

	started := time.Now()
	log.Printf("optimize: building data model for %d jobs, %d vehicles/day", len(req.Jobs), req.NumDriversPerDay)
	dm, err := buildDataModel(ctx, p.Travel, p.Depot, req.Jobs, req.NumDriversPerDay, maxHours, now)
	if err != nil {
		return model.OptimizeResponse{}, err
	}

	driverIDs := make([]string, len(req.Drivers))
	for i, d := range req.Drivers {
		driverIDs[i] = d.ID
	}

	seenUnassigned := map[string]bool{}
	for day := 0; day < WorkingDays; day++ {
		if err := ctx.Err(); err != nil {
			return model.OptimizeResponse{}, err
		}
		routes, unassigned := dm.solveDay(day, p.Seed, p.Budget)
		for i, r := range routes {
			id := ""
			if i < len(driverIDs) {
				id = driverIDs[i]
			} else {
				id = fmt.Sprintf("additional-driver-%d", i-len(driverIDs)+1)
			}
			out.Routes = append(out.Routes, model.Route{
				DriverID:  id,
				Day:       day + 1,
				Stops:     r.stops,
				TotalTime: r.totalTime,
			})
		}
		for _, id := range unassigned {
			if !seenUnassigned[id] {
				seenUnassigned[id] = true
				out.Unassigned = append(out.Unassigned, id)
			}
		}
		if p.OnDaySolved != nil {
			p.OnDaySolved(DaySummary{Day: day + 1, Routes: len(routes), Unassigned: len(unassigned)})
		}
	}

	metrics.PlanRoutes.Add(float64(len(out.Routes)))
	metrics.PlanJobsUnassigned.Add(float64(len(out.Unassigned)))
	log.Printf("optimize: completed in %.2fs, %d routes, %d unassigned", time.Since(started).Seconds(), len(out.Routes), len(out.Unassigned))
	return out, nil
}
