package attendance

import (
	"iter"
	"time"

	"github.com/trezcool/hazira/core/student"
)

type Granularity int

const (
	Month Granularity = iota
	Year
)

// Period is a calendar bucket of events.
type Period struct {
	Label string    `json:"period"`
	Start time.Time `json:"start"`
}

// PeriodGroup is a materialized bucket, for encoding.
type PeriodGroup struct {
	Period
	Events []student.Event `json:"events"`
}

func periodOf(t time.Time, g Granularity) Period {
	if g == Year {
		return Period{Label: t.Format("2006"), Start: time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())}
	}
	return Period{
		Label: t.Format("January 2006"),
		Start: time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()),
	}
}

// GroupByPeriod buckets events by calendar month or year in loc. Buckets come
// in the order their first event appears in events, not chronologically.
// The sequence is computed on each iteration and can be ranged over again.
func GroupByPeriod(events []student.Event, g Granularity, loc *time.Location) iter.Seq2[Period, []student.Event] {
	return func(yield func(Period, []student.Event) bool) {
		var order []Period
		buckets := make(map[string][]student.Event)
		for _, ev := range events {
			p := periodOf(EventTime(ev, loc), g)
			if _, ok := buckets[p.Label]; !ok {
				order = append(order, p)
			}
			buckets[p.Label] = append(buckets[p.Label], ev)
		}
		for _, p := range order {
			if !yield(p, buckets[p.Label]) {
				return
			}
		}
	}
}

// CollectPeriods materializes a GroupByPeriod sequence.
func CollectPeriods(seq iter.Seq2[Period, []student.Event]) []PeriodGroup {
	groups := []PeriodGroup{}
	for p, events := range seq {
		groups = append(groups, PeriodGroup{Period: p, Events: events})
	}
	return groups
}
