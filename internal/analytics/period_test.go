package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func done(t time.Time, est, logged float64) TaskSnapshot {
	return TaskSnapshot{EstimatedHours: est, LoggedHours: logged, CompletedAt: &t}
}

func TestTimeline_Daily(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	tasks := []TaskSnapshot{
		done(day(1), 2, 2),
		done(day(1), 3, 4),
		done(day(3), 5, 5),
		done(time.Date(2024, 4, 28, 9, 0, 0, 0, time.UTC), 1, 1),
		{EstimatedHours: 8},
	}

	points := Timeline(tasks, from, to, GroupDay)
	require.Len(t, points, 3)
	assert.Equal(t, TimelinePoint{Period: "2024-05-01", TasksCompleted: 2, Cumulative: 3}, points[0])
	assert.Equal(t, TimelinePoint{Period: "2024-05-02", TasksCompleted: 0, Cumulative: 3}, points[1])
	assert.Equal(t, TimelinePoint{Period: "2024-05-03", TasksCompleted: 1, Cumulative: 4}, points[2])
}

func TestTimeline_WeeklyAndMonthly(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	tasks := []TaskSnapshot{done(day(2), 1, 1), done(day(9), 1, 1), done(day(10), 1, 1)}

	weeks := Timeline(tasks, from, to, GroupWeek)
	require.Len(t, weeks, 3)
	assert.Equal(t, 1, weeks[0].TasksCompleted)
	assert.Equal(t, 2, weeks[1].TasksCompleted)
	assert.Equal(t, 3, weeks[2].Cumulative)

	months := Timeline(tasks, from, to, GroupMonth)
	require.Len(t, months, 1)
	assert.Equal(t, 3, months[0].TasksCompleted)
}

func TestVelocityBetween(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)
	tasks := []TaskSnapshot{
		done(day(2), 4, 3),
		done(day(5), 4, 4.5),
		done(day(20), 4, 9),
		{EstimatedHours: 4, LoggedHours: 2},
	}

	v := VelocityBetween(tasks, from, to)
	assert.Equal(t, 2, v.TasksCompleted)
	assert.Equal(t, 0.2, v.AverageVelocityDay)
	assert.Equal(t, 7.5, v.TotalHoursLogged)
	assert.Equal(t, 3.75, v.AverageHoursPerTask)

	assert.Equal(t, PeriodVelocity{}, VelocityBetween(nil, from, to))
}

func TestScope(t *testing.T) {
	tasks := []TaskSnapshot{done(day(2), 6, 6), done(day(20), 4, 4), {EstimatedHours: 10}}

	b := Scope(tasks, day(10))
	assert.Equal(t, ScopeCount{Tasks: 3, Hours: 20}, b.TotalScope)
	assert.Equal(t, ScopeCount{Tasks: 1, Hours: 6}, b.Completed)
	assert.Equal(t, ScopeCount{Tasks: 2, Hours: 14}, b.Remaining)
	assert.Equal(t, ScopeCompletion{Tasks: 33, Hours: 30}, b.CompletionPercentage)

	assert.Equal(t, ScopeCompletion{}, Scope(nil, day(10)).CompletionPercentage)
}

func TestIsGroupBy(t *testing.T) {
	assert.True(t, IsGroupBy(GroupWeek))
	assert.False(t, IsGroupBy("quarter"))
}
