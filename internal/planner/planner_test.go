package planner

import (
	"context"
	"strings"
	"testing"
	"time"

	"courieropt/internal/model"
)

// fixedMatrix serves a uniform off-diagonal minute matrix.
type fixedMatrix struct {
	minutes int
}

func (f fixedMatrix) Matrix(_ context.Context, locations []string) ([][]int, error) {
	n := len(locations)
	out := make([][]int, n)
	for i := range out {
		out[i] = make([]int, n)
		for j := range out[i] {
			if i != j {
				out[i][j] = f.minutes
			}
		}
	}
	return out, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
}

func newTestPlanner(minutes int) *Planner {
	return &Planner{
		Travel:          fixedMatrix{minutes: minutes},
		Depot:           "Birmingham, UK",
		Budget:          20 * time.Millisecond,
		DefaultMaxHours: 9,
		Seed:            1,
		Now:             fixedNow,
	}
}

func TestPlanWeekZeroJobs(t *testing.T) {
	resp, err := newTestPlanner(30).PlanWeek(context.Background(), model.OptimizeRequest{
		NumDriversPerDay: 1,
	})
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(resp.Routes) != 0 || len(resp.Unassigned) != 0 {
		t.Fatalf("expected empty plan, got %+v", resp)
	}
	if resp.Routes == nil || resp.Unassigned == nil {
		t.Fatalf("expected non-nil empty slices for JSON encoding")
	}
}

func TestPlanWeekSingleJob(t *testing.T) {
	req := model.OptimizeRequest{
		Jobs:             []model.Job{{ID: "job-1", Location: "Solihull, UK", Type: model.JobTypeDelivery}},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 9}},
		NumDriversPerDay: 1,
	}
	resp, err := newTestPlanner(30).PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(resp.Routes) != 5 {
		t.Fatalf("routes = %d, want one per day", len(resp.Routes))
	}
	for _, r := range resp.Routes {
		if r.DriverID != "drv-1" {
			t.Fatalf("driver = %q, want drv-1", r.DriverID)
		}
		if len(r.Stops) != 1 || r.Stops[0].JobID != "job-1" {
			t.Fatalf("unexpected stops: %+v", r.Stops)
		}
		if r.Stops[0].Window != [2]int{30, 210} {
			t.Fatalf("window = %v, want [30 210]", r.Stops[0].Window)
		}
		if r.TotalTime != 60 {
			t.Fatalf("total_time = %d, want 60", r.TotalTime)
		}
	}
	if len(resp.Unassigned) != 0 {
		t.Fatalf("unassigned = %v, want empty", resp.Unassigned)
	}
}

func TestPlanWeekSharedLocationReportsOneJobPerVisit(t *testing.T) {
	req := model.OptimizeRequest{
		Jobs: []model.Job{
			{ID: "job-a", Location: "Solihull, UK", Type: model.JobTypeDelivery},
			{ID: "job-b", Location: "Solihull, UK", Type: model.JobTypeDelivery},
		},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 9}},
		NumDriversPerDay: 1,
	}
	resp, err := newTestPlanner(30).PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	for _, r := range resp.Routes {
		if len(r.Stops) != 1 {
			t.Fatalf("day %d: %d stops for one physical visit", r.Day, len(r.Stops))
		}
		if r.Stops[0].JobID != "job-a" {
			t.Fatalf("day %d: attached %q, want first entry job-a", r.Day, r.Stops[0].JobID)
		}
	}
	if len(resp.Unassigned) != 1 || resp.Unassigned[0] != "job-b" {
		t.Fatalf("unassigned = %v, want [job-b]", resp.Unassigned)
	}
}

func TestPlanWeekFarFutureDateNeverEligible(t *testing.T) {
	future := fixedNow().AddDate(0, 0, 10).Format("2006-01-02")
	req := model.OptimizeRequest{
		Jobs: []model.Job{
			{ID: "job-far", Location: "Solihull, UK", PreferredDates: []string{future}},
		},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 9}},
		NumDriversPerDay: 1,
	}
	resp, err := newTestPlanner(30).PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(resp.Routes) != 0 {
		t.Fatalf("routes = %+v, want none", resp.Routes)
	}
	if len(resp.Unassigned) != 1 || resp.Unassigned[0] != "job-far" {
		t.Fatalf("unassigned = %v, want [job-far]", resp.Unassigned)
	}
}

func TestPlanWeekPairSameVehicleInOrder(t *testing.T) {
	req := model.OptimizeRequest{
		Jobs: []model.Job{
			{ID: "pick", Location: "Solihull, UK", Type: model.JobTypeCollection, RelatedJobID: "drop"},
			{ID: "drop", Location: "Coventry, UK", Type: model.JobTypeDelivery},
		},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 9}, {ID: "drv-2", AvailableHours: 9}},
		NumDriversPerDay: 2,
	}
	resp, err := newTestPlanner(30).PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	byDay := map[int][]model.Route{}
	for _, r := range resp.Routes {
		byDay[r.Day] = append(byDay[r.Day], r)
	}
	for day, routes := range byDay {
		var pickStart, dropStart = -1, -1
		var pickDriver, dropDriver string
		for _, r := range routes {
			for _, s := range r.Stops {
				switch s.JobID {
				case "pick":
					pickStart, pickDriver = s.Window[0], r.DriverID
				case "drop":
					dropStart, dropDriver = s.Window[0], r.DriverID
				}
			}
		}
		if pickStart < 0 || dropStart < 0 {
			continue
		}
		if pickDriver != dropDriver {
			t.Fatalf("day %d: pair split across %q and %q", day, pickDriver, dropDriver)
		}
		if pickStart > dropStart {
			t.Fatalf("day %d: collection window starts after delivery (%d > %d)", day, pickStart, dropStart)
		}
	}
}

func TestPlanWeekInfeasibleDayUnassignsEligible(t *testing.T) {
	// 100 minutes everywhere with a 4-hour driver: a single out-and-back
	// leg fits, but one vehicle cannot chain a second stop inside the cap,
	// so the day has no assignment covering all three jobs.
	req := model.OptimizeRequest{
		Jobs: []model.Job{
			{ID: "j1", Location: "A"},
			{ID: "j2", Location: "B"},
			{ID: "j3", Location: "C"},
		},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 4}},
		NumDriversPerDay: 1,
	}
	resp, err := newTestPlanner(100).PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(resp.Routes) != 0 {
		t.Fatalf("routes = %+v, want none for infeasible days", resp.Routes)
	}
	if len(resp.Unassigned) != 3 {
		t.Fatalf("unassigned = %v, want all three jobs", resp.Unassigned)
	}
}

func TestPlanWeekDriverHoursCapBelowDefault(t *testing.T) {
	// A fleet of short-shift drivers must not inherit the 9-hour default:
	// 150-minute legs mean a 300-minute round trip, over the 4-hour day.
	req := model.OptimizeRequest{
		Jobs:             []model.Job{{ID: "job-1", Location: "Solihull, UK"}},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 4}},
		NumDriversPerDay: 1,
	}
	resp, err := newTestPlanner(150).PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(resp.Routes) != 0 {
		t.Fatalf("routes = %+v, want none inside a 240-minute day", resp.Routes)
	}
	if len(resp.Unassigned) != 1 || resp.Unassigned[0] != "job-1" {
		t.Fatalf("unassigned = %v, want [job-1]", resp.Unassigned)
	}
}

func TestPlanWeekOmittedDriverHoursDefaultToNine(t *testing.T) {
	req := model.OptimizeRequest{
		Jobs:             []model.Job{{ID: "job-1", Location: "Solihull, UK"}},
		Drivers:          []model.Driver{{ID: "drv-1"}},
		NumDriversPerDay: 1,
	}
	resp, err := newTestPlanner(150).PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(resp.Routes) != 5 {
		t.Fatalf("routes = %d, want one per day under the 9-hour default", len(resp.Routes))
	}
	if len(resp.Unassigned) != 0 {
		t.Fatalf("unassigned = %v, want empty", resp.Unassigned)
	}
}

func TestPlanWeekSynthesizesSurplusDriverIDs(t *testing.T) {
	// Cap of 4 hours and 100-minute legs force one job per vehicle, so two
	// jobs need both vehicles while only one driver is supplied.
	req := model.OptimizeRequest{
		Jobs: []model.Job{
			{ID: "j1", Location: "A"},
			{ID: "j2", Location: "B"},
		},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 4}},
		NumDriversPerDay: 2,
	}
	p := newTestPlanner(100)
	resp, err := p.PlanWeek(context.Background(), req)
	if err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(resp.Unassigned) != 0 {
		t.Fatalf("unassigned = %v, want empty", resp.Unassigned)
	}
	sawSynth := false
	for _, r := range resp.Routes {
		if r.DriverID == "additional-driver-1" {
			sawSynth = true
		} else if r.DriverID != "drv-1" {
			t.Fatalf("unexpected driver id %q", r.DriverID)
		}
	}
	if !sawSynth {
		t.Fatalf("expected a synthesized additional-driver-1 route")
	}
}

func TestEligibleDays(t *testing.T) {
	today := truncateToDate(fixedNow())
	date := func(offset int) string {
		return today.AddDate(0, 0, offset).Format("2006-01-02")
	}
	cases := []struct {
		name  string
		dates []string
		want  []int
	}{
		{"no dates means every day", nil, []int{0, 1, 2, 3, 4}},
		{"single in-range date", []string{date(2)}, []int{2}},
		{"rfc3339 timestamp", []string{today.AddDate(0, 0, 3).Format(time.RFC3339)}, []int{3}},
		{"out of range contributes nothing", []string{date(7)}, nil},
		{"past date contributes nothing", []string{date(-1)}, nil},
		{"unparsable grants every day", []string{"not-a-date"}, []int{0, 1, 2, 3, 4}},
		{"unparsable alongside valid still grants every day", []string{date(1), "garbage"}, []int{0, 1, 2, 3, 4}},
		{"duplicates tolerated", []string{date(2), date(2)}, []int{2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := eligibleDays(tc.dates, today)
			if len(got) != len(tc.want) {
				t.Fatalf("eligibleDays(%v) = %v, want %v", tc.dates, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("eligibleDays(%v) = %v, want %v", tc.dates, got, tc.want)
				}
			}
		})
	}
}

func TestIndexLocationsDedupsWithDepotFirst(t *testing.T) {
	jobs := []model.Job{
		{ID: "a", Location: "X"},
		{ID: "b", Location: "Y"},
		{ID: "c", Location: "X"},
		{ID: "d", Location: "Birmingham, UK"},
	}
	locations, index := indexLocations("Birmingham, UK", jobs)
	want := []string{"Birmingham, UK", "X", "Y"}
	if strings.Join(locations, "|") != strings.Join(want, "|") {
		t.Fatalf("locations = %v, want %v", locations, want)
	}
	if index["Birmingham, UK"] != 0 {
		t.Fatalf("depot must be node 0")
	}
}

func TestPlanWeekOnDaySolvedHook(t *testing.T) {
	req := model.OptimizeRequest{
		Jobs:             []model.Job{{ID: "job-1", Location: "Solihull, UK"}},
		Drivers:          []model.Driver{{ID: "drv-1", AvailableHours: 9}},
		NumDriversPerDay: 1,
	}
	p := newTestPlanner(30)
	var days []int
	p.OnDaySolved = func(s DaySummary) { days = append(days, s.Day) }
	if _, err := p.PlanWeek(context.Background(), req); err != nil {
		t.Fatalf("PlanWeek: %v", err)
	}
	if len(days) != 5 || days[0] != 1 || days[4] != 5 {
		t.Fatalf("hook days = %v, want 1..5", days)
	}
}
