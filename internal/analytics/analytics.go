// Package analytics holds the pure calculators behind the progress dashboards:
// weighted roll-ups, velocity, burndown, milestones and completion estimates.
// Nothing here touches storage or the clock; callers pass "now" explicitly.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is the slice of a time entry the calculators need.
type Entry struct {
	Date  time.Time
	Hours float64
}

// WeightedTask is the slice of a task the progress roll-up needs.
type WeightedTask struct {
	EstimatedHours float64
	Progress       int
}

type BurndownPoint struct {
	Date      time.Time `json:"date"`
	Remaining float64   `json:"remaining"`
	Logged    float64   `json:"logged"`
}

type Milestone struct {
	Percentage int  `json:"percentage"`
	Required   int  `json:"required"`
	Completed  int  `json:"completed"`
	Achieved   bool `json:"achieved"`
	Remaining  int  `json:"remaining"`
}

type VelocityReport struct {
	Last7Days   float64 `json:"last7Days"`
	Last30Days  float64 `json:"last30Days"`
	AvgPerDay7  float64 `json:"avgPerDay7"`
	AvgPerDay30 float64 `json:"avgPerDay30"`
}

var milestoneThresholds = []int{25, 50, 75, 100}

// RoundHours rounds to two decimals, half up.
func RoundHours(h float64) float64 {
	return decimal.NewFromFloat(h).Round(2).InexactFloat64()
}

// RoundInt rounds to the nearest integer, half up.
func RoundInt(v float64) int {
	return int(decimal.NewFromFloat(v).Round(0).IntPart())
}

// Percent returns round(part/whole*100), or 0 when whole is not positive.
func Percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	return int(decimal.NewFromFloat(part).
		Div(decimal.NewFromFloat(whole)).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart())
}

// WeightedProgress averages task progress weighted by estimated hours. Tasks
// without an estimate weigh 1.
func WeightedProgress(tasks []WeightedTask) int {
	if len(tasks) == 0 {
		return 0
	}

	sum, weights := decimal.Zero, decimal.Zero
	for _, t := range tasks {
		w := decimal.NewFromInt(1)
		if t.EstimatedHours > 0 {
			w = decimal.NewFromFloat(t.EstimatedHours)
		}
		sum = sum.Add(w.Mul(decimal.NewFromInt(int64(t.Progress))))
		weights = weights.Add(w)
	}
	return int(sum.Div(weights).Round(0).IntPart())
}

func hoursWithin(entries []Entry, from, to time.Time) float64 {
	total := 0.0
	for _, e := range entries {
		if e.Date.After(from) && !e.Date.After(to) {
			total += e.Hours
		}
	}
	return total
}

// Velocity is the average hours per day logged in (now-windowDays, now].
func Velocity(entries []Entry, windowDays int, now time.Time) float64 {
	if windowDays <= 0 {
		return 0
	}
	total := hoursWithin(entries, now.AddDate(0, 0, -windowDays), now)
	return RoundHours(total / float64(windowDays))
}

func BuildVelocityReport(entries []Entry, now time.Time) VelocityReport {
	last7 := hoursWithin(entries, now.AddDate(0, 0, -7), now)
	last30 := hoursWithin(entries, now.AddDate(0, 0, -30), now)
	return VelocityReport{
		Last7Days:   RoundHours(last7),
		Last30Days:  RoundHours(last30),
		AvgPerDay7:  RoundHours(last7 / 7),
		AvgPerDay30: RoundHours(last30 / 30),
	}
}

// Burndown walks the entries in date order and reports the remaining estimate
// after each one. The first point is the full estimate on the day work started.
func Burndown(estimated float64, entries []Entry) []BurndownPoint {
	if len(entries) == 0 {
		return []BurndownPoint{}
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	points := make([]BurndownPoint, 0, len(sorted)+1)
	points = append(points, BurndownPoint{Date: sorted[0].Date, Remaining: RoundHours(estimated)})

	logged := 0.0
	for _, e := range sorted {
		logged += e.Hours
		remaining := math.Max(0, estimated-math.Min(logged, estimated))
		points = append(points, BurndownPoint{
			Date:      e.Date,
			Remaining: RoundHours(remaining),
			Logged:    RoundHours(logged),
		})
	}
	return points
}

func Milestones(total, completed int) []Milestone {
	out := make([]Milestone, 0, len(milestoneThresholds))
	for _, pct := range milestoneThresholds {
		required := int(math.Ceil(float64(total*pct) / 100))
		done := completed
		if done > required {
			done = required
		}
		out = append(out, Milestone{
			Percentage: pct,
			Required:   required,
			Completed:  done,
			Achieved:   completed >= required,
			Remaining:  max(0, required-completed),
		})
	}
	return out
}

// EstimatedCompletion projects a finish date from the average hours logged per
// working day over the last 30 days. It returns nil when there is no recent work.
func EstimatedCompletion(remaining float64, done bool, completedDate *time.Time, entries []Entry, now time.Time) *time.Time {
	if remaining <= 0 {
		if done {
			return completedDate
		}
		return nil
	}

	since := now.AddDate(0, 0, -30)
	days := map[string]struct{}{}
	total := 0.0
	for _, e := range entries {
		if e.Date.Before(since) || e.Date.After(now) {
			continue
		}
		total += e.Hours
		days[e.Date.Format("2006-01-02")] = struct{}{}
	}
	if len(days) == 0 || total <= 0 {
		return nil
	}

	avg := total / float64(len(days))
	eta := now.AddDate(0, 0, int(math.Ceil(remaining/avg)))
	return &eta
}
