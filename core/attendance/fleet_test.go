package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/student"
)

func TestParseTimeFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeFilter
		wantErr bool
	}{
		{in: "", want: AllTime},
		{in: "all", want: AllTime},
		{in: "thisYear", want: ThisYear},
		{in: "month", want: ThisMonth},
		{in: " withinPastWeek ", want: WithinPastWeek},
		{in: "week", want: WithinPastWeek},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeFilter(tt.in)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeFilter_Contains(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		filter TimeFilter
		t      time.Time
		want   bool
	}{
		{name: "all", filter: AllTime, t: now.AddDate(-5, 0, 0), want: true},
		{name: "this year", filter: ThisYear, t: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "last year", filter: ThisYear, t: time.Date(2023, time.December, 31, 23, 0, 0, 0, time.UTC), want: false},
		{name: "this month", filter: ThisMonth, t: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "same month last year", filter: ThisMonth, t: time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC), want: false},
		{name: "today", filter: WithinPastWeek, t: now.Add(-time.Hour), want: true},
		{name: "seven days ago", filter: WithinPastWeek, t: now.AddDate(0, 0, -7), want: true},
		{name: "seven and a half days ago", filter: WithinPastWeek, t: now.Add(-7*24*time.Hour - 12*time.Hour), want: false},
		{name: "just over seven days ago", filter: WithinPastWeek, t: now.AddDate(0, 0, -7).Add(-time.Hour), want: false},
		{name: "eight days ago", filter: WithinPastWeek, t: now.AddDate(0, 0, -8), want: false},
		{name: "future", filter: WithinPastWeek, t: now.Add(time.Hour), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Contains(tt.t, now))
		})
	}
}

func fleetStudents(now time.Time) []student.Student {
	recent := now.Add(-24 * time.Hour).UnixMilli()
	old := now.AddDate(0, -2, 0).Unix() // seconds

	return []student.Student{
		{
			Key: "u1", ID: "1", Name: "grace", RollNumber: "R-02", Branch: "CS", Semester: "3",
			Attendance: map[string]student.Event{
				"e1": ev(true, "Maths", recent),
				"e2": ev(true, "Maths", recent),
				"e3": ev(true, "Physics", old),
			},
		},
		{
			Key: "u2", ID: "2", Name: "Alan", RollNumber: "R-01", Branch: "CS", Semester: "3",
			Attendance: map[string]student.Event{
				"e1": ev(true, "Maths", old),
			},
		},
		{Key: "u3", ID: "12", Name: "Ada", RollNumber: "R-03", Branch: "EE", Semester: "1"},
	}
}

func TestFleetSummary(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	students := fleetStudents(now)

	t.Run("all time", func(t *testing.T) {
		fleet := FleetSummary(students, csCounters(), AllTime, now)
		require.Len(t, fleet.Students, 3)
		assert.Equal(t, 20, fleet.Students[0].Rate) // 3/15
		assert.Equal(t, 7, fleet.Students[1].Rate)  // 1/15
		assert.Equal(t, 0, fleet.Students[2].Rate)  // nothing scheduled
		assert.Equal(t, 9, fleet.AverageRate)       // (20+7+0)/3
	})

	t.Run("past week", func(t *testing.T) {
		fleet := FleetSummary(students, csCounters(), WithinPastWeek, now)
		assert.Equal(t, 2, fleet.Students[0].TotalAttended)
		assert.Equal(t, 0, fleet.Students[1].TotalAttended)
		assert.Equal(t, WithinPastWeek, fleet.Filter)
	})

	t.Run("no students", func(t *testing.T) {
		fleet := FleetSummary(nil, csCounters(), AllTime, now)
		assert.Empty(t, fleet.Students)
		assert.Equal(t, 0, fleet.AverageRate)
	})
}

func TestFleet_SearchAndOrder(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	fleet := FleetSummary(fleetStudents(now), csCounters(), AllTime, now)

	names := func(fl Fleet) []string {
		var ns []string
		for _, row := range fl.Students {
			ns = append(ns, row.Name)
		}
		return ns
	}

	searchTests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"grace", "Alan", "Ada"}},
		{query: "a", want: []string{"grace", "Alan", "Ada"}},
		{query: "GRA", want: []string{"grace"}},
		{query: "r-01", want: []string{"Alan"}},
		{query: "12", want: []string{"Ada"}},
		{query: "zed", want: nil},
	}
	for _, tt := range searchTests {
		t.Run("search "+tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, names(fleet.Search(tt.query)))
		})
	}
	assert.Equal(t, 7, fleet.Search("alan").AverageRate)

	orderTests := []struct {
		ordering string
		want     []string
		wantErr  bool
	}{
		{ordering: "", want: []string{"grace", "Alan", "Ada"}},
		{ordering: "name", want: []string{"Ada", "Alan", "grace"}},
		{ordering: "-rate", want: []string{"grace", "Alan", "Ada"}},
		{ordering: "rollNumber", want: []string{"Alan", "grace", "Ada"}},
		{ordering: "attended,-name", want: []string{"Ada", "Alan", "grace"}},
		{ordering: "age", wantErr: true},
	}
	for _, tt := range orderTests {
		t.Run("order "+tt.ordering, func(t *testing.T) {
			got, err := fleet.Order(core.ParseOrderings(tt.ordering))
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
	assert.Equal(t, []string{"grace", "Alan", "Ada"}, names(fleet), "ordering must not change the receiver")
}

func TestDashboardStats(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	midnight := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	students := []student.Student{
		{Key: "u1", Attendance: map[string]student.Event{
			"e1": ev(true, "Maths", midnight.UnixMilli()),
			"e2": ev(false, "Maths", now.Add(-time.Hour).UnixMilli()),
			"e3": ev(true, "Maths", midnight.Add(-time.Second).Unix()),
		}},
		{Key: "u2", Attendance: map[string]student.Event{
			"e1": ev(true, "Maths", now.Add(-time.Minute).Unix()),
		}},
		{Key: "u3"},
	}

	assert.Equal(t, Dashboard{
		TotalStudents:        3,
		TotalRecords:         4,
		AttendedToday:        2,
		EnrolledFingerprints: 5,
	}, DashboardStats(students, 5, now))
}
