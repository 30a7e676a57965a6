package attendance

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/lecture"
	"github.com/trezcool/hazira/core/student"
)

type (
	// SlotLister reports the reserved fingerprint slots.
	SlotLister interface {
		ReservedSlots(ctx context.Context) ([]int, error)
	}

	Service struct {
		studentSvc *student.Service
		lectureSvc *lecture.Service
		branchSvc  *branch.Service
		slots      SlotLister
		loc        *time.Location
		now        func() time.Time
	}

	// Report is the attendance detail of one student.
	Report struct {
		Student  StudentRow       `json:"student"`
		Subjects []SubjectSummary `json:"subjects"`
		Months   []PeriodGroup    `json:"months"`
	}
)

func NewService(
	studentSvc *student.Service,
	lectureSvc *lecture.Service,
	branchSvc *branch.Service,
	slots SlotLister,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		studentSvc: studentSvc,
		lectureSvc: lectureSvc,
		branchSvc:  branchSvc,
		slots:      slots,
		loc:        loc,
		now:        time.Now,
	}
}

func (svc *Service) currentTime() time.Time {
	return svc.now().In(svc.loc)
}

// StudentReport summarizes one student. The subject breakdown only lists
// subjects still in the taxonomy; events are listed newest first, by month.
func (svc *Service) StudentReport(ctx context.Context, key string) (Report, error) {
	s, err := svc.studentSvc.Get(ctx, key)
	if err != nil {
		return Report{}, err
	}
	counters, err := svc.lectureSvc.Counters(ctx)
	if err != nil {
		return Report{}, err
	}
	branches, err := svc.branchSvc.List(ctx)
	if err != nil {
		return Report{}, err
	}

	events := s.Events()

	newestFirst := make([]student.Event, len(events))
	copy(newestFirst, events)
	sort.SliceStable(newestFirst, func(i, j int) bool {
		return Disambiguate(int64(newestFirst[i].Timestamp)) > Disambiguate(int64(newestFirst[j].Timestamp))
	})

	return Report{
		Student:  newStudentRow(s, ComputeUserSummary(s, events, counters)),
		Subjects: ComputeSubjectBreakdown(s, events, LiveCounters(branches, counters)),
		Months:   CollectPeriods(GroupByPeriod(newestFirst, Month, svc.loc)),
	}, nil
}

// Fleet summarizes every student over filter, then applies search and ordering.
func (svc *Service) Fleet(ctx context.Context, filter TimeFilter, search string, ords []core.Ordering) (Fleet, error) {
	students, err := svc.studentSvc.List(ctx)
	if err != nil {
		return Fleet{}, err
	}
	counters, err := svc.lectureSvc.Counters(ctx)
	if err != nil {
		return Fleet{}, err
	}
	return FleetSummary(students, counters, filter, svc.currentTime()).Search(search).Order(ords)
}

func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	students, err := svc.studentSvc.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	reserved, err := svc.slots.ReservedSlots(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return DashboardStats(students, len(reserved), svc.currentTime()), nil
}

// NormalizeTimestamps rewrites second-precision event timestamps to
// milliseconds and returns how many events were (or, on a dry run, would be) changed.
func (svc *Service) NormalizeTimestamps(ctx context.Context, dryRun bool) (int, error) {
	students, err := svc.studentSvc.List(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	for _, s := range students {
		for _, ev := range s.Events() {
			ms := Disambiguate(int64(ev.Timestamp))
			if ms == int64(ev.Timestamp) {
				continue
			}
			n++
			if dryRun {
				continue
			}
			if err = svc.studentSvc.SetEventTimestamp(ctx, s.Key, ev.Key, student.Timestamp(ms)); err != nil {
				return n - 1, err
			}
		}
	}
	return n, nil
}
