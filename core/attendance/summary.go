// Package attendance derives attendance figures from student events and lecture counters.
package attendance

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/lecture"
	"github.com/trezcool/hazira/core/student"
)

type (
	Summary struct {
		TotalScheduled int `json:"totalScheduled"`
		TotalAttended  int `json:"totalAttended"`
		TotalAbsent    int `json:"totalAbsent"`
		Rate           int `json:"rate"` // percent
	}

	SubjectSummary struct {
		Subject string `json:"subject"`
		Summary
	}
)

// Disambiguate returns ts in epoch milliseconds. Devices write either seconds
// or milliseconds: a value of exactly 10 digits is taken as seconds.
func Disambiguate(ts int64) int64 {
	if len(strconv.FormatInt(ts, 10)) == 10 {
		return ts * 1000
	}
	return ts
}

// EventTime returns the moment ev was recorded, in loc.
func EventTime(ev student.Event, loc *time.Location) time.Time {
	t := time.UnixMilli(Disambiguate(int64(ev.Timestamp)))
	if loc != nil {
		t = t.In(loc)
	}
	return t
}

func newSummary(scheduled, attended int) Summary {
	sum := Summary{TotalScheduled: scheduled, TotalAttended: attended}
	if absent := scheduled - attended; absent > 0 {
		sum.TotalAbsent = absent
	}
	if scheduled > 0 {
		sum.Rate = int(math.Round(100 * float64(attended) / float64(scheduled)))
	}
	return sum
}

// matching keeps the events recorded for the student's current branch and semester.
func matching(s student.Student, events []student.Event) []student.Event {
	matched := make([]student.Event, 0, len(events))
	for _, ev := range events {
		if ev.Branch == s.Branch && ev.Semester == s.Semester {
			matched = append(matched, ev)
		}
	}
	return matched
}

func countAttended(events []student.Event, subject string) int {
	var n int
	for _, ev := range events {
		if ev.Attended && (subject == "" || ev.Subject == subject) {
			n++
		}
	}
	return n
}

// ComputeUserSummary compares the attended events of the student's branch and
// semester with the lectures scheduled for them. Names are compared exactly.
func ComputeUserSummary(s student.Student, events []student.Event, counters lecture.CounterTree) Summary {
	attended := countAttended(matching(s, events), "")
	scheduled := counters.Scheduled(s.Branch, s.Semester.String())
	return newSummary(scheduled, attended)
}

// ComputeSubjectBreakdown returns one row per subject counted for the student's
// branch and semester, by subject name. Subjects without a counter are not listed.
func ComputeSubjectBreakdown(s student.Student, events []student.Event, counters lecture.CounterTree) []SubjectSummary {
	matched := matching(s, events)
	semCounters := counters.Semester(s.Branch, s.Semester.String())

	rows := make([]SubjectSummary, 0, len(semCounters))
	for _, c := range semCounters {
		rows = append(rows, SubjectSummary{
			Subject: c.Subject,
			Summary: newSummary(c.Count, countAttended(matched, c.Subject)),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Subject < rows[j].Subject })
	return rows
}

// LiveCounters keeps the counters whose branch, semester and subject still exist in the taxonomy.
func LiveCounters(branches []branch.Branch, counters lecture.CounterTree) lecture.CounterTree {
	live := make(lecture.CounterTree)
	for _, b := range branches {
		for _, sem := range b.Semesters {
			for _, subject := range sem.Subjects {
				k := lecture.CounterKey{BranchName: b.Name, SemesterLabel: sem.Label, Subject: subject}
				if c, ok := counters.Get(k); ok {
					live.Put(c)
				}
			}
		}
	}
	return live
}
