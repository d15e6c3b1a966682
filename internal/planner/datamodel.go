// Package planner turns a week's job list into per-day routing problems
// and aggregates the solved days into a weekly plan.
package planner

import (
	"context"
	"fmt"
	"time"

	"courieropt/internal/model"
	"courieropt/internal/travel"
)

const (
	// WorkingDays is the planning horizon: today plus the next four days.
	WorkingDays = 5

	// windowWidth is the reported arrival window in minutes. It is a
	// reporting convention, not a solver constraint.
	windowWidth = 180

	slackMinutes = 60
)

// dateLayouts are tried in order when reading a preferred date string.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// jobEntry ties a job to its node in the deduplicated location list.
type jobEntry struct {
	job  model.Job
	node int
}

// dataModel is everything one week's solves share: the minute matrix over
// deduplicated locations, the job entries, pickup-delivery pairs by entry
// index, and per-day eligibility.
type dataModel struct {
	locations []string
	matrix    [][]int
	entries   []jobEntry
	pairs     [][2]int
	byDay     [WorkingDays][]int

	// neverEligible holds entries whose preferred dates all fall outside
	// the horizon. They cannot be routed, so every day reports them
	// unassigned.
	neverEligible []int
	vehicles      int
	maxMinutes    int
}

// indexLocations returns the deduplicated location list with the depot
// first, plus a lookup from location string to node index.
func indexLocations(depot string, jobs []model.Job) ([]string, map[string]int) {
	locations := []string{depot}
	index := map[string]int{depot: 0}
	for _, j := range jobs {
		if _, ok := index[j.Location]; ok {
			continue
		}
		index[j.Location] = len(locations)
		locations = append(locations, j.Location)
	}
	return locations, index
}

// buildDataModel resolves the travel matrix and derives entries, pairs and
// day eligibility for the request.
func buildDataModel(ctx context.Context, tp travel.Provider, depot string, jobs []model.Job, vehicles, maxHours int, now func() time.Time) (*dataModel, error) {
	locations, index := indexLocations(depot, jobs)
	matrix, err := tp.Matrix(ctx, locations)
	if err != nil {
		return nil, err
	}
	if len(matrix) != len(locations) {
		return nil, fmt.Errorf("matrix has %d rows for %d locations", len(matrix), len(locations))
	}

	dm := &dataModel{
		locations:  locations,
		matrix:     matrix,
		vehicles:   vehicles,
		maxMinutes: maxHours * 60,
	}
	for _, j := range jobs {
		dm.entries = append(dm.entries, jobEntry{job: j, node: index[j.Location]})
	}

	// Collection jobs link to their partner by id. The partner's type is
	// not checked; an unresolvable id simply forms no pair.
	byID := map[string]int{}
	for i, e := range dm.entries {
		byID[e.job.ID] = i
	}
	for i, e := range dm.entries {
		if e.job.Type != model.JobTypeCollection || e.job.RelatedJobID == "" {
			continue
		}
		if partner, ok := byID[e.job.RelatedJobID]; ok {
			dm.pairs = append(dm.pairs, [2]int{i, partner})
		}
	}

	today := truncateToDate(now())
	for i, e := range dm.entries {
		days := eligibleDays(e.job.PreferredDates, today)
		if len(days) == 0 {
			dm.neverEligible = append(dm.neverEligible, i)
			continue
		}
		for _, d := range days {
			dm.byDay[d] = append(dm.byDay[d], i)
		}
	}
	return dm, nil
}

// eligibleDays maps a job's preferred date strings to day offsets 0..4.
// No dates means every day. Each date that parses contributes its offset
// when it falls inside the horizon and nothing otherwise. A date that
// fails to parse grants every day.
func eligibleDays(dates []string, today time.Time) []int {
	if len(dates) == 0 {
		return allDays()
	}
	seen := map[int]bool{}
	var out []int
	add := func(d int) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, s := range dates {
		t, err := parseDate(s)
		if err != nil {
			for _, d := range allDays() {
				add(d)
			}
			continue
		}
		diff := int(truncateToDate(t).Sub(today).Hours() / 24)
		if diff >= 0 && diff < WorkingDays {
			add(diff)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func allDays() []int {
	out := make([]int, WorkingDays)
	for i := range out {
		out[i] = i
	}
	return out
}
