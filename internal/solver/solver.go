// Package solver provides a time-budgeted VRP solve over a minute matrix.
package solver

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrInfeasible reports that no assignment visiting every allowed node
// within the per-vehicle cap was found inside the budget.
var ErrInfeasible = errors.New("no feasible assignment")

// Problem is one day's routing input. Every node in Allowed (minus the
// depot) must be visited exactly once across all vehicles.
type Problem struct {
	Matrix          [][]int // minutes, N×N, not necessarily symmetric
	Vehicles        int
	Depot           int
	Pairs           [][2]int // [pickup node, delivery node]
	MaxRouteMinutes int
	SlackMinutes    int          // model-only: permitted waiting between stops; with no time windows it never binds
	Allowed         map[int]bool // nodes visitable this solve
}

// Visit is a solved stop: node index and earliest arrival minute
// (cumulative arc sum from the depot).
type Visit struct {
	Node    int
	Arrival int
}

type VehicleRoute struct {
	Visits []Visit
}

type Solution struct {
	Vehicles []VehicleRoute
	Cost     int // total arc minutes including depot legs
}

type Metrics struct {
	Iterations    int
	Improvements  int
	AcceptedWorse int
	SeedCost      int
	BestCost      int
}

// Solve runs a cheapest-insertion construction followed by a
// remove-and-reinsert local search with simulated-annealing acceptance,
// bounded by the wall-clock budget. Results are near-optimal at best and
// deterministic only for a fixed non-zero seed.
func Solve(p Problem, seed int64, budget time.Duration) (Solution, Metrics, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	required := requiredNodes(p)
	if len(required) == 0 {
		return emptySolution(p), Metrics{}, nil
	}

	curr, ok := construct(p, required)
	if !ok {
		return Solution{}, Metrics{}, ErrInfeasible
	}
	best := clonePlans(curr)
	bestCost := planCost(p, best)
	m := Metrics{SeedCost: bestCost, BestCost: bestCost}

	currCost := bestCost
	temp := 1.0
	const cooling = 0.995
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		m.Iterations++
		cand := clonePlans(curr)
		k := 1 + rng.Intn(3)
		removed := removeRandom(cand, k, rng)
		if !reinsertCheapest(p, cand, removed) {
			continue
		}
		twoOptSweep(p, cand)
		candCost := planCost(p, cand)

		delta := float64(candCost - currCost)
		if delta < 0 || rng.Float64() < math.Exp(-delta/(temp*float64(bestCost)+1e-9)) {
			curr = cand
			currCost = candCost
			if candCost < bestCost {
				best = clonePlans(cand)
				bestCost = candCost
				m.Improvements++
				m.BestCost = bestCost
			} else if delta > 0 {
				m.AcceptedWorse++
			}
		}
		temp *= cooling
	}
	return buildSolution(p, best, bestCost), m, nil
}

func requiredNodes(p Problem) []int {
	out := []int{}
	for n := 0; n < len(p.Matrix); n++ {
		if n == p.Depot {
			continue
		}
		if p.Allowed[n] {
			out = append(out, n)
		}
	}
	return out
}

func emptySolution(p Problem) Solution {
	return Solution{Vehicles: make([]VehicleRoute, p.Vehicles)}
}

// activePairs filters to pairs whose nodes are both in play and distinct.
// Equal-node pairs are trivially satisfied by a single visit.
func activePairs(p Problem) [][2]int {
	out := [][2]int{}
	for _, pr := range p.Pairs {
		if pr[0] == pr[1] {
			continue
		}
		if p.Allowed[pr[0]] && p.Allowed[pr[1]] {
			out = append(out, pr)
		}
	}
	return out
}

// construct builds an initial assignment by cheapest feasible insertion.
// Pickups are placed before their deliveries so pair order can always be
// satisfied by position.
func construct(p Problem, required []int) ([][]int, bool) {
	plans := make([][]int, p.Vehicles)
	order := insertionOrder(p, required)
	for _, node := range order {
		vi, pos, ok := cheapestInsertion(p, plans, node)
		if !ok {
			return nil, false
		}
		plans[vi] = insertAt(plans[vi], node, pos)
	}
	return plans, true
}

// insertionOrder returns the required nodes with every delivery moved
// after its pickup.
func insertionOrder(p Problem, required []int) []int {
	deliveryOf := map[int]int{}
	for _, pr := range activePairs(p) {
		deliveryOf[pr[1]] = pr[0]
	}
	placed := map[int]bool{}
	out := make([]int, 0, len(required))
	var deferred []int
	for _, n := range required {
		if pu, isDelivery := deliveryOf[n]; isDelivery && !placed[pu] {
			deferred = append(deferred, n)
			continue
		}
		out = append(out, n)
		placed[n] = true
	}
	// Deliveries whose pickup appears later in the input order.
	for len(deferred) > 0 {
		progress := false
		rest := deferred[:0]
		for _, n := range deferred {
			if placed[deliveryOf[n]] {
				out = append(out, n)
				placed[n] = true
				progress = true
			} else {
				rest = append(rest, n)
			}
		}
		deferred = rest
		if !progress {
			// Pickup is not a required node this day; place as-is.
			out = append(out, deferred...)
			break
		}
	}
	return out
}

// cheapestInsertion scans all vehicles and positions for the minimum
// arc-delta feasible slot.
func cheapestInsertion(p Problem, plans [][]int, node int) (int, int, bool) {
	bestV, bestPos, bestDelta := -1, -1, math.MaxInt
	for vi := range plans {
		for pos := 0; pos <= len(plans[vi]); pos++ {
			cand := insertAt(append([]int(nil), plans[vi]...), node, pos)
			if routeMinutes(p, cand) > p.MaxRouteMinutes {
				continue
			}
			if !pairsSatisfied(p, plans, vi, cand) {
				continue
			}
			d := insertionDelta(p, plans[vi], node, pos)
			if d < bestDelta {
				bestDelta = d
				bestV = vi
				bestPos = pos
			}
		}
	}
	if bestV < 0 {
		return 0, 0, false
	}
	return bestV, bestPos, true
}

func insertionDelta(p Problem, route []int, node, pos int) int {
	prev := p.Depot
	if pos > 0 {
		prev = route[pos-1]
	}
	next := p.Depot
	if pos < len(route) {
		next = route[pos]
	}
	return p.Matrix[prev][node] + p.Matrix[node][next] - p.Matrix[prev][next]
}

func insertAt(route []int, node, pos int) []int {
	route = append(route, 0)
	copy(route[pos+1:], route[pos:])
	route[pos] = node
	return route
}

// routeMinutes is the arc sum depot → stops → depot.
func routeMinutes(p Problem, route []int) int {
	if len(route) == 0 {
		return 0
	}
	total := 0
	prev := p.Depot
	for _, n := range route {
		total += p.Matrix[prev][n]
		prev = n
	}
	total += p.Matrix[prev][p.Depot]
	return total
}

// pairsSatisfied validates pair constraints for the full plan set where
// vehicle vi's route is replaced by cand: pickup and delivery on the same
// vehicle, pickup strictly before the delivery.
func pairsSatisfied(p Problem, plans [][]int, vi int, cand []int) bool {
	pos := func(route []int, node int) int {
		for i, n := range route {
			if n == node {
				return i
			}
		}
		return -1
	}
	routeOf := func(node int) (int, int) {
		for ri := range plans {
			r := plans[ri]
			if ri == vi {
				r = cand
			}
			if i := pos(r, node); i >= 0 {
				return ri, i
			}
		}
		return -1, -1
	}
	for _, pr := range activePairs(p) {
		pv, pi := routeOf(pr[0])
		dv, di := routeOf(pr[1])
		if pv < 0 || dv < 0 {
			continue // not placed yet; checked again once both are in
		}
		if pv != dv || pi >= di {
			return false
		}
	}
	return true
}

func planCost(p Problem, plans [][]int) int {
	total := 0
	for _, r := range plans {
		total += routeMinutes(p, r)
	}
	return total
}

func clonePlans(plans [][]int) [][]int {
	out := make([][]int, len(plans))
	for i := range plans {
		out[i] = append([]int(nil), plans[i]...)
	}
	return out
}

// removeRandom strips up to k random nodes from the plan set.
func removeRandom(plans [][]int, k int, rng *rand.Rand) []int {
	all := []int{}
	for _, r := range plans {
		all = append(all, r...)
	}
	if len(all) == 0 {
		return nil
	}
	removed := []int{}
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	rm := map[int]bool{}
	for _, n := range removed {
		rm[n] = true
	}
	for vi := range plans {
		keep := plans[vi][:0]
		for _, n := range plans[vi] {
			if !rm[n] {
				keep = append(keep, n)
			}
		}
		plans[vi] = keep
	}
	return removed
}

// reinsertCheapest places removed nodes back at their cheapest feasible
// slots, pickups first.
func reinsertCheapest(p Problem, plans [][]int, removed []int) bool {
	for _, node := range insertionOrder(p, removed) {
		vi, pos, ok := cheapestInsertion(p, plans, node)
		if !ok {
			return false
		}
		plans[vi] = insertAt(plans[vi], node, pos)
	}
	return true
}

// twoOptSweep applies first-improvement segment reversals within each
// route while they remain feasible.
func twoOptSweep(p Problem, plans [][]int) {
	for vi := range plans {
		route := plans[vi]
		n := len(route)
		improved := true
		for improved {
			improved = false
			for i := 0; i < n-1; i++ {
				for k := i + 1; k < n; k++ {
					cand := append([]int(nil), route...)
					for a, b := i, k; a < b; a, b = a+1, b-1 {
						cand[a], cand[b] = cand[b], cand[a]
					}
					if routeMinutes(p, cand) >= routeMinutes(p, route) {
						continue
					}
					if !pairsSatisfied(p, plans, vi, cand) {
						continue
					}
					route = cand
					improved = true
				}
			}
		}
		plans[vi] = route
	}
}

func buildSolution(p Problem, plans [][]int, cost int) Solution {
	out := Solution{Vehicles: make([]VehicleRoute, len(plans)), Cost: cost}
	for vi, route := range plans {
		t := 0
		prev := p.Depot
		visits := make([]Visit, 0, len(route))
		for _, n := range route {
			t += p.Matrix[prev][n]
			visits = append(visits, Visit{Node: n, Arrival: t})
			prev = n
		}
		out.Vehicles[vi] = VehicleRoute{Visits: visits}
	}
	return out
}
