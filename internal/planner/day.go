package planner

import (
	"time"

	"courieropt/internal/metrics"
	"courieropt/internal/model"
	"courieropt/internal/solver"
)

// dayRoute is one vehicle's solved day before a driver id is attached.
type dayRoute struct {
	stops     []model.JobStop
	totalTime int
}

// solveDay routes one day's eligible entries. An infeasible day is not an
// error: every entry eligible that day is reported unassigned and other
// days proceed independently.
func (dm *dataModel) solveDay(day int, seed int64, budget time.Duration) ([]dayRoute, []string) {
	eligible := dm.byDay[day]
	allowed := map[int]bool{}
	for _, ei := range eligible {
		allowed[dm.entries[ei].node] = true
	}
	pairs := make([][2]int, 0, len(dm.pairs))
	for _, pr := range dm.pairs {
		pairs = append(pairs, [2]int{dm.entries[pr[0]].node, dm.entries[pr[1]].node})
	}

	started := time.Now()
	sol, _, err := solver.Solve(solver.Problem{
		Matrix:          dm.matrix,
		Vehicles:        dm.vehicles,
		Depot:           0,
		Pairs:           pairs,
		MaxRouteMinutes: dm.maxMinutes,
		SlackMinutes:    slackMinutes,
		Allowed:         allowed,
	}, seed, budget)
	outcome := "solved"
	if err != nil {
		outcome = "infeasible"
	}
	metrics.DaySolveDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())

	if err != nil {
		return nil, dm.eligibleIDs(day)
	}

	reported := map[int]bool{}
	var routes []dayRoute
	for _, v := range sol.Vehicles {
		if len(v.Visits) == 0 {
			continue
		}
		stops := make([]model.JobStop, 0, len(v.Visits))
		for _, visit := range v.Visits {
			ei := dm.firstUnreported(visit.Node, reported)
			if ei < 0 {
				continue
			}
			reported[ei] = true
			end := visit.Arrival + windowWidth
			if end > dm.maxMinutes {
				end = dm.maxMinutes
			}
			stops = append(stops, model.JobStop{
				JobID:  dm.entries[ei].job.ID,
				Window: [2]int{visit.Arrival, end},
			})
		}
		if len(stops) == 0 {
			continue
		}
		last := v.Visits[len(v.Visits)-1]
		routes = append(routes, dayRoute{
			stops:     stops,
			totalTime: last.Arrival + dm.matrix[last.Node][0],
		})
	}

	assigned := map[string]bool{}
	for _, r := range routes {
		for _, s := range r.stops {
			assigned[s.JobID] = true
		}
	}
	var unassigned []string
	seen := map[string]bool{}
	for _, ei := range append(append([]int(nil), eligible...), dm.neverEligible...) {
		id := dm.entries[ei].job.ID
		if !assigned[id] && !seen[id] {
			seen[id] = true
			unassigned = append(unassigned, id)
		}
	}
	return routes, unassigned
}

// firstUnreported returns the lowest-index entry at node not yet attached
// to a stop. When several jobs share one location, a single physical
// visit reports only one of them.
func (dm *dataModel) firstUnreported(node int, reported map[int]bool) int {
	for i, e := range dm.entries {
		if e.node == node && !reported[i] {
			return i
		}
	}
	return -1
}

func (dm *dataModel) eligibleIDs(day int) []string {
	seen := map[string]bool{}
	var out []string
	for _, ei := range append(append([]int(nil), dm.byDay[day]...), dm.neverEligible...) {
		id := dm.entries[ei].job.ID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
