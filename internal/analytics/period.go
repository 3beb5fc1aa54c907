package analytics

import (
	"math"
	"time"
)

// Period groupings for a timeline.
const (
	GroupDay   = "day"
	GroupWeek  = "week"
	GroupMonth = "month"
)

// TaskSnapshot is the slice of a task the period calculators need.
// CompletedAt is nil for unfinished tasks.
type TaskSnapshot struct {
	EstimatedHours float64
	LoggedHours    float64
	CompletedAt    *time.Time
}

type TimelinePoint struct {
	Period         string `json:"period"`
	TasksCompleted int    `json:"tasksCompleted"`
	Cumulative     int    `json:"cumulativeCompleted"`
}

type PeriodVelocity struct {
	TasksCompleted      int     `json:"tasksCompletedInPeriod"`
	AverageVelocityDay  float64 `json:"averageVelocityPerDay"`
	TotalHoursLogged    float64 `json:"totalHoursLogged"`
	AverageHoursPerTask float64 `json:"averageHoursPerTask"`
}

type ScopeCount struct {
	Tasks int     `json:"tasks"`
	Hours float64 `json:"hours"`
}

type ScopeCompletion struct {
	Tasks int `json:"tasks"`
	Hours int `json:"hours"`
}

type ScopeBurndown struct {
	TotalScope           ScopeCount      `json:"totalScope"`
	Completed            ScopeCount      `json:"completed"`
	Remaining            ScopeCount      `json:"remaining"`
	CompletionPercentage ScopeCompletion `json:"completionPercentage"`
}

// IsGroupBy reports whether g names a supported timeline grouping.
func IsGroupBy(g string) bool {
	return g == GroupDay || g == GroupWeek || g == GroupMonth
}

func advance(t time.Time, groupBy string) time.Time {
	switch groupBy {
	case GroupWeek:
		return t.AddDate(0, 0, 7)
	case GroupMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func completedIn(t TaskSnapshot, from, to time.Time) bool {
	return t.CompletedAt != nil && !t.CompletedAt.Before(from) && !t.CompletedAt.After(to)
}

// Timeline buckets task completions into consecutive periods starting at
// from. The last period is the one containing to. Cumulative counts every
// completion before the period ends, including those before from.
func Timeline(tasks []TaskSnapshot, from, to time.Time, groupBy string) []TimelinePoint {
	var points []TimelinePoint
	for start := from; !start.After(to); {
		end := advance(start, groupBy)
		point := TimelinePoint{Period: start.Format("2006-01-02")}
		for _, t := range tasks {
			if t.CompletedAt == nil || !t.CompletedAt.Before(end) {
				continue
			}
			point.Cumulative++
			if !t.CompletedAt.Before(start) {
				point.TasksCompleted++
			}
		}
		points = append(points, point)
		start = end
	}
	return points
}

// VelocityBetween counts tasks completed in [from, to] and the hours logged on
// them. The day count is rounded up so a partial day counts once.
func VelocityBetween(tasks []TaskSnapshot, from, to time.Time) PeriodVelocity {
	var v PeriodVelocity
	for _, t := range tasks {
		if completedIn(t, from, to) {
			v.TasksCompleted++
			v.TotalHoursLogged += t.LoggedHours
		}
	}

	days := math.Ceil(to.Sub(from).Hours() / 24)
	if days > 0 {
		v.AverageVelocityDay = RoundHours(float64(v.TasksCompleted) / days)
	}
	if v.TasksCompleted > 0 {
		v.AverageHoursPerTask = RoundHours(v.TotalHoursLogged / float64(v.TasksCompleted))
	}
	v.TotalHoursLogged = RoundHours(v.TotalHoursLogged)
	return v
}

// Scope measures estimated work done by asOf against the whole task set.
func Scope(tasks []TaskSnapshot, asOf time.Time) ScopeBurndown {
	var b ScopeBurndown
	for _, t := range tasks {
		b.TotalScope.Tasks++
		b.TotalScope.Hours += t.EstimatedHours
		if t.CompletedAt != nil && !t.CompletedAt.After(asOf) {
			b.Completed.Tasks++
			b.Completed.Hours += t.EstimatedHours
		}
	}
	b.Remaining.Tasks = b.TotalScope.Tasks - b.Completed.Tasks
	b.Remaining.Hours = RoundHours(b.TotalScope.Hours - b.Completed.Hours)
	b.TotalScope.Hours = RoundHours(b.TotalScope.Hours)
	b.Completed.Hours = RoundHours(b.Completed.Hours)
	b.CompletionPercentage = ScopeCompletion{
		Tasks: Percent(float64(b.Completed.Tasks), float64(b.TotalScope.Tasks)),
		Hours: Percent(b.Completed.Hours, b.TotalScope.Hours),
	}
	return b
}
