package lecture

import (
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
)

const (
	// CounterPath holds lecturecount/{branch}/{sem}/{subject} = Counter.
	CounterPath = "lecturecount"
	// MarkerPath holds currentattendance/{branch}/{sem} = SubjectRow.
	MarkerPath = "currentattendance"
)

type (
	CounterKey struct {
		BranchName    string `json:"branchName" validate:"required,treekey"`
		SemesterLabel string `json:"sem" validate:"required,treekey"`
		Subject       string `json:"subject" validate:"required,treekey"`
	}

	// Counter is the number of lectures held so far for a subject.
	Counter struct {
		BranchName    string `json:"branchName"`
		SemesterLabel string `json:"sem"`
		Subject       string `json:"subject"`
		Count         int    `json:"count"`
	}

	// CounterTree indexes counters by branch name, semester label and subject.
	CounterTree map[string]map[string]map[string]Counter

	// SubjectRow is one catalog entry: a subject of a semester of a branch,
	// with the names of the teachers assigned to it.
	SubjectRow struct {
		BranchID      string          `json:"branchId"`
		BranchName    string          `json:"branchName"`
		SemesterID    core.FlexString `json:"semesterId"`
		SemesterLabel string          `json:"sem"`
		Subject       string          `json:"subject"`
		TeacherNames  []string        `json:"teacherNames"`
	}

	// Markers indexes the active subject row by branch name and semester label.
	Markers map[string]map[string]SubjectRow
)

type (
	// Activation selects a catalog entry by ids.
	Activation struct {
		BranchID   string `json:"branchId" validate:"required"`
		SemesterID string `json:"semesterId" validate:"required"`
		Subject    string `json:"subject" validate:"required"`
	}

	Adjustment struct {
		CounterKey
		Delta int `json:"delta" validate:"oneof=-1 1"`
	}

	CounterUpdate struct {
		CounterKey
		Count int `json:"count" validate:"min=0"`
	}
)

func (k CounterKey) Validate(validate *validator.Validate) error {
	return validate.Struct(k)
}

func (a Activation) Validate(validate *validator.Validate) error {
	return validate.Struct(a)
}

func (a Adjustment) Validate(validate *validator.Validate) error {
	return validate.Struct(a)
}

func (cu CounterUpdate) Validate(validate *validator.Validate) error {
	return validate.Struct(cu)
}

func (k CounterKey) path() (string, error) {
	return core.JoinPath(CounterPath, k.BranchName, k.SemesterLabel, k.Subject)
}

func (c Counter) Key() CounterKey {
	return CounterKey{BranchName: c.BranchName, SemesterLabel: c.SemesterLabel, Subject: c.Subject}
}

func (k CounterKey) NewCounter(count int) Counter {
	return Counter{BranchName: k.BranchName, SemesterLabel: k.SemesterLabel, Subject: k.Subject, Count: count}
}

func (r SubjectRow) CounterKey() CounterKey {
	return CounterKey{BranchName: r.BranchName, SemesterLabel: r.SemesterLabel, Subject: r.Subject}
}

// AdjustCount returns c moved by delta (+1 or -1), never below 0.
func AdjustCount(c Counter, delta int) (Counter, error) {
	if delta != 1 && delta != -1 {
		return c, core.NewFieldValidationError("delta", ErrInvalidDelta)
	}
	c.Count += delta
	if c.Count < 0 {
		c.Count = 0
	}
	return c, nil
}

func (t CounterTree) Get(k CounterKey) (Counter, bool) {
	c, ok := t[k.BranchName][k.SemesterLabel][k.Subject]
	return c, ok
}

func (t CounterTree) Put(c Counter) {
	sems, ok := t[c.BranchName]
	if !ok {
		sems = make(map[string]map[string]Counter)
		t[c.BranchName] = sems
	}
	subjects, ok := sems[c.SemesterLabel]
	if !ok {
		subjects = make(map[string]Counter)
		sems[c.SemesterLabel] = subjects
	}
	subjects[c.Subject] = c
}

// Semester returns the counters of a semester sorted by subject.
func (t CounterTree) Semester(branchName, semLabel string) []Counter {
	subjects := t[branchName][semLabel]
	counters := make([]Counter, 0, len(subjects))
	for _, c := range subjects {
		counters = append(counters, c)
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].Subject < counters[j].Subject })
	return counters
}

// Scheduled sums the counts of every subject of a semester.
func (t CounterTree) Scheduled(branchName, semLabel string) int {
	var total int
	for _, c := range t[branchName][semLabel] {
		total += c.Count
	}
	return total
}

// All returns every counter, sorted by branch, semester then subject.
func (t CounterTree) All() []Counter {
	var counters []Counter
	for _, sems := range t {
		for _, subjects := range sems {
			for _, c := range subjects {
				counters = append(counters, c)
			}
		}
	}
	sortCounters(counters)
	return counters
}

func sortCounters(counters []Counter) {
	sort.Slice(counters, func(i, j int) bool {
		a, b := counters[i], counters[j]
		if a.BranchName != b.BranchName {
			return a.BranchName < b.BranchName
		}
		if a.SemesterLabel != b.SemesterLabel {
			return a.SemesterLabel < b.SemesterLabel
		}
		return a.Subject < b.Subject
	})
}

// Active returns the row marked active for a semester.
func (m Markers) Active(branchName, semLabel string) (SubjectRow, bool) {
	row, ok := m[branchName][semLabel]
	return row, ok
}

func (m Markers) Put(row SubjectRow) {
	sems, ok := m[row.BranchName]
	if !ok {
		sems = make(map[string]SubjectRow)
		m[row.BranchName] = sems
	}
	sems[row.SemesterLabel] = row
}

// IsActive reports whether k is the active subject of its semester.
func (m Markers) IsActive(k CounterKey) bool {
	row, ok := m.Active(k.BranchName, k.SemesterLabel)
	return ok && row.Subject == k.Subject
}

// ActiveCounters returns the counters of the active subjects, sorted.
func ActiveCounters(counters CounterTree, markers Markers) []Counter {
	var active []Counter
	for _, sems := range markers {
		for _, row := range sems {
			if c, ok := counters.Get(row.CounterKey()); ok {
				active = append(active, c)
			}
		}
	}
	sortCounters(active)
	return active
}

// DecodeCounters reads a snapshot of the lecturecount tree. Key fields missing
// from a record are filled from its path.
func DecodeCounters(snap core.Snapshot) (CounterTree, error) {
	tree := make(CounterTree)
	branches, err := snap.Children()
	if err != nil {
		return nil, errors.Wrap(err, "decoding lecture counters")
	}
	for branchName, branchSnap := range branches {
		sems, err := branchSnap.Children()
		if err != nil {
			return nil, errors.Wrap(err, "decoding lecture counters")
		}
		for semLabel, semSnap := range sems {
			subjects, err := semSnap.Children()
			if err != nil {
				return nil, errors.Wrap(err, "decoding lecture counters")
			}
			for subject, subjSnap := range subjects {
				var c Counter
				if err = subjSnap.Decode(&c); err != nil {
					return nil, err
				}
				c.BranchName, c.SemesterLabel, c.Subject = branchName, semLabel, subject
				tree.Put(c)
			}
		}
	}
	return tree, nil
}

// DecodeMarkers reads a snapshot of the currentattendance tree.
func DecodeMarkers(snap core.Snapshot) (Markers, error) {
	markers := make(Markers)
	branches, err := snap.Children()
	if err != nil {
		return nil, errors.Wrap(err, "decoding current attendance")
	}
	for branchName, branchSnap := range branches {
		sems, err := branchSnap.Children()
		if err != nil {
			return nil, errors.Wrap(err, "decoding current attendance")
		}
		for semLabel, semSnap := range sems {
			var row SubjectRow
			if err = semSnap.Decode(&row); err != nil {
				return nil, err
			}
			row.BranchName, row.SemesterLabel = branchName, semLabel
			markers.Put(row)
		}
	}
	return markers, nil
}
