package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC)
}

func TestWeightedProgress(t *testing.T) {
	tests := []struct {
		name  string
		tasks []WeightedTask
		want  int
	}{
		{"no tasks", nil, 0},
		{"estimates weigh in", []WeightedTask{{EstimatedHours: 10, Progress: 100}, {EstimatedHours: 30, Progress: 0}}, 25},
		{"missing estimate weighs one", []WeightedTask{{Progress: 50}, {Progress: 0}}, 25},
		{"half rounds up", []WeightedTask{{Progress: 50}, {Progress: 51}}, 51},
		{"all done", []WeightedTask{{EstimatedHours: 3, Progress: 100}, {Progress: 100}}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeightedProgress(tt.tasks))
		})
	}
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 1.01, RoundHours(1.005))
	assert.Equal(t, 2.0, RoundHours(1.999))
	assert.Equal(t, 3, RoundInt(2.5))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 0, Percent(5, 0))
}

func TestVelocity(t *testing.T) {
	now := day(20)
	entries := []Entry{
		{Date: day(19), Hours: 4},
		{Date: day(14), Hours: 3},
		{Date: day(13), Hours: 100}, // exactly 7 days back, outside the window
		{Date: day(21), Hours: 50},  // future
	}

	assert.Equal(t, 1.0, Velocity(entries, 7, now))
	assert.Zero(t, Velocity(entries, 0, now))

	report := BuildVelocityReport(entries, now)
	assert.Equal(t, 7.0, report.Last7Days)
	assert.Equal(t, 107.0, report.Last30Days)
	assert.Equal(t, 1.0, report.AvgPerDay7)
	assert.Equal(t, 3.57, report.AvgPerDay30)
}

func TestBurndown(t *testing.T) {
	assert.Empty(t, Burndown(10, nil))

	points := Burndown(10, []Entry{
		{Date: day(3), Hours: 8},
		{Date: day(1), Hours: 4},
	})
	require.Len(t, points, 3)
	assert.Equal(t, BurndownPoint{Date: day(1), Remaining: 10, Logged: 0}, points[0])
	assert.Equal(t, BurndownPoint{Date: day(1), Remaining: 6, Logged: 4}, points[1])
	assert.Equal(t, BurndownPoint{Date: day(3), Remaining: 0, Logged: 12}, points[2], "remaining never goes negative")
}

func TestMilestones(t *testing.T) {
	ms := Milestones(10, 6)
	require.Len(t, ms, 4)

	assert.Equal(t, Milestone{Percentage: 25, Required: 3, Completed: 3, Achieved: true, Remaining: 0}, ms[0])
	assert.Equal(t, Milestone{Percentage: 50, Required: 5, Completed: 5, Achieved: true, Remaining: 0}, ms[1])
	assert.Equal(t, Milestone{Percentage: 75, Required: 8, Completed: 6, Achieved: false, Remaining: 2}, ms[2])
	assert.Equal(t, Milestone{Percentage: 100, Required: 10, Completed: 6, Achieved: false, Remaining: 4}, ms[3])

	empty := Milestones(0, 0)
	assert.True(t, empty[3].Achieved)
}

func TestEstimatedCompletion(t *testing.T) {
	now := day(20)

	t.Run("nothing remaining on a done task", func(t *testing.T) {
		completed := day(18)
		assert.Equal(t, &completed, EstimatedCompletion(0, true, &completed, nil, now))
		assert.Nil(t, EstimatedCompletion(0, false, nil, nil, now))
	})

	t.Run("no recent work", func(t *testing.T) {
		old := []Entry{{Date: now.AddDate(0, 0, -45), Hours: 8}}
		assert.Nil(t, EstimatedCompletion(5, false, nil, old, now))
	})

	t.Run("average per working day", func(t *testing.T) {
		entries := []Entry{
			{Date: day(18), Hours: 2},
			{Date: day(18), Hours: 2},
			{Date: day(19), Hours: 2},
		}
		// 6h over 2 working days = 3h/day; 7h remaining needs 3 days
		eta := EstimatedCompletion(7, false, nil, entries, now)
		require.NotNil(t, eta)
		assert.Equal(t, day(23), *eta)
	})
}
