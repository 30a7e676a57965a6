package attendance

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/lecture"
	"github.com/trezcool/hazira/core/student"
)

type TimeFilter string

const (
	AllTime        TimeFilter = "all"
	ThisYear       TimeFilter = "thisYear"
	ThisMonth      TimeFilter = "thisMonth"
	WithinPastWeek TimeFilter = "withinPastWeek"
)

var (
	// errors
	ErrInvalidFilter   = errors.New("filter must be one of all, thisYear, thisMonth, withinPastWeek")
	ErrInvalidOrdering = errors.New("ordering fields must be among name, rollNumber, rate, attended")
)

// ParseTimeFilter reads a filter name; "" means AllTime. "week", "month" and
// "year" are accepted as shorthands.
func ParseTimeFilter(s string) (TimeFilter, error) {
	switch strings.ToLower(core.CleanString(s)) {
	case "", "all":
		return AllTime, nil
	case "thisyear", "year":
		return ThisYear, nil
	case "thismonth", "month":
		return ThisMonth, nil
	case "withinpastweek", "week":
		return WithinPastWeek, nil
	}
	return "", core.NewFieldValidationError("filter", ErrInvalidFilter)
}

// Contains reports whether t falls within the filter's window, as seen at now.
func (f TimeFilter) Contains(t, now time.Time) bool {
	t = t.In(now.Location())
	switch f {
	case ThisYear:
		return t.Year() == now.Year()
	case ThisMonth:
		return t.Year() == now.Year() && t.Month() == now.Month()
	case WithinPastWeek:
		elapsed := now.Sub(t)
		return elapsed >= 0 && elapsed <= 7*24*time.Hour
	}
	return true
}

// Window keeps the events recorded within the filter's window.
func (f TimeFilter) Window(events []student.Event, now time.Time) []student.Event {
	if f == AllTime || f == "" {
		return events
	}
	kept := make([]student.Event, 0, len(events))
	for _, ev := range events {
		if f.Contains(EventTime(ev, now.Location()), now) {
			kept = append(kept, ev)
		}
	}
	return kept
}

type (
	StudentRow struct {
		Key        string          `json:"pushKey"`
		ID         core.FlexString `json:"id"`
		Name       string          `json:"name"`
		RollNumber core.FlexString `json:"rollNumber"`
		Branch     string          `json:"branch"`
		Semester   core.FlexString `json:"sem"`
		Summary
	}

	Fleet struct {
		Filter      TimeFilter   `json:"filter"`
		Students    []StudentRow `json:"students"`
		AverageRate int          `json:"averageRate"`
	}
)

// FleetSummary computes every student's summary over the filter's window. The
// average is the unweighted mean of the students' rates.
func FleetSummary(students []student.Student, counters lecture.CounterTree, filter TimeFilter, now time.Time) Fleet {
	fleet := Fleet{Filter: filter, Students: make([]StudentRow, 0, len(students))}
	var total int
	for _, s := range students {
		sum := ComputeUserSummary(s, filter.Window(s.Events(), now), counters)
		total += sum.Rate
		fleet.Students = append(fleet.Students, newStudentRow(s, sum))
	}
	fleet.AverageRate = averageRate(total, len(students))
	return fleet
}

func newStudentRow(s student.Student, sum Summary) StudentRow {
	return StudentRow{
		Key:        s.Key,
		ID:         s.ID,
		Name:       s.Name,
		RollNumber: s.RollNumber,
		Branch:     s.Branch,
		Semester:   s.Semester,
		Summary:    sum,
	}
}

func averageRate(total, n int) int {
	if n == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(n)))
}

// Search keeps the rows matching query on name, roll number or slot id, and
// recomputes the average over them.
func (fl Fleet) Search(query string) Fleet {
	query = core.CleanString(query)
	if query == "" {
		return fl
	}
	rows := make([]StudentRow, 0, len(fl.Students))
	var total int
	for _, row := range fl.Students {
		if core.ContainsFold(row.Name, query) ||
			core.ContainsFold(row.RollNumber.String(), query) ||
			core.ContainsFold(row.ID.String(), query) {
			rows = append(rows, row)
			total += row.Rate
		}
	}
	fl.Students = rows
	fl.AverageRate = averageRate(total, len(rows))
	return fl
}

var orderingFields = map[string]func(a, b StudentRow) int{
	"name":       func(a, b StudentRow) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) },
	"rollNumber": func(a, b StudentRow) int { return strings.Compare(a.RollNumber.String(), b.RollNumber.String()) },
	"rate":       func(a, b StudentRow) int { return a.Rate - b.Rate },
	"attended":   func(a, b StudentRow) int { return a.TotalAttended - b.TotalAttended },
}

// Order sorts the rows by ords, stably.
func (fl Fleet) Order(ords []core.Ordering) (Fleet, error) {
	for _, ord := range ords {
		if _, ok := orderingFields[ord.Field]; !ok {
			return fl, core.NewFieldValidationError("ordering", errors.Wrapf(ErrInvalidOrdering, "%q", ord.Field))
		}
	}
	if len(ords) == 0 {
		return fl, nil
	}

	rows := make([]StudentRow, len(fl.Students))
	copy(rows, fl.Students)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ords {
			cmp := orderingFields[ord.Field](rows[i], rows[j])
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	fl.Students = rows
	return fl, nil
}
