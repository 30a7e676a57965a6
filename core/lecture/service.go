package lecture

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/teacher"
)

var (
	// errors
	ErrCounterNotFound = errors.New("lecture counter not found")
	ErrSubjectNotFound = errors.New("subject not found in catalog")
	ErrInvalidDelta    = errors.New("delta must be 1 or -1")
)

type Service struct {
	store      core.TreeStore
	branchSvc  *branch.Service
	teacherSvc *teacher.Service
}

func NewService(store core.TreeStore, branchSvc *branch.Service, teacherSvc *teacher.Service) *Service {
	return &Service{store: store, branchSvc: branchSvc, teacherSvc: teacherSvc}
}

func markerPath(branchName, semLabel string) (string, error) {
	return core.JoinPath(MarkerPath, branchName, semLabel)
}

// Catalog returns every subject of the taxonomy with its teachers.
func (svc *Service) Catalog(ctx context.Context) ([]SubjectRow, error) {
	branches, err := svc.branchSvc.List(ctx)
	if err != nil {
		return nil, err
	}
	teachers, err := svc.teacherSvc.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildCatalog(branches, teachers), nil
}

func (svc *Service) Counters(ctx context.Context) (CounterTree, error) {
	snap, err := svc.store.Get(ctx, CounterPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading lecture counters")
	}
	return DecodeCounters(snap)
}

func (svc *Service) Markers(ctx context.Context) (Markers, error) {
	snap, err := svc.store.Get(ctx, MarkerPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading current attendance")
	}
	return DecodeMarkers(snap)
}

// ActiveCounters returns the counters of the subjects currently marked active.
func (svc *Service) ActiveCounters(ctx context.Context) ([]Counter, error) {
	counters, err := svc.Counters(ctx)
	if err != nil {
		return nil, err
	}
	markers, err := svc.Markers(ctx)
	if err != nil {
		return nil, err
	}
	return ActiveCounters(counters, markers), nil
}

// Counter returns the stored counter for k.
func (svc *Service) Counter(ctx context.Context, k CounterKey) (Counter, error) {
	path, err := k.path()
	if err != nil {
		return Counter{}, err
	}
	snap, err := svc.store.Get(ctx, path)
	if err != nil {
		return Counter{}, errors.Wrap(err, "reading lecture counter")
	}
	if !snap.Exists() {
		return Counter{}, ErrCounterNotFound
	}
	var c Counter
	if err = snap.Decode(&c); err != nil {
		return Counter{}, err
	}
	return k.NewCounter(c.Count), nil
}

// Activate marks row as the current subject of its semester, replacing any
// previous one, and creates its counter at 0 unless it already exists.
func (svc *Service) Activate(ctx context.Context, row SubjectRow) (Counter, error) {
	mpath, err := markerPath(row.BranchName, row.SemesterLabel)
	if err != nil {
		return Counter{}, err
	}
	key := row.CounterKey()
	cpath, err := key.path()
	if err != nil {
		return Counter{}, err
	}
	if row.TeacherNames == nil {
		row.TeacherNames = []string{}
	}

	if err = svc.store.Set(ctx, mpath, row); err != nil {
		return Counter{}, errors.Wrap(err, "setting current attendance")
	}

	counter := key.NewCounter(0)
	err = svc.store.Transaction(ctx, cpath, func(current core.Snapshot) (interface{}, error) {
		if current.Exists() {
			var c Counter
			if err := current.Decode(&c); err != nil {
				return nil, err
			}
			counter = key.NewCounter(c.Count)
			return nil, core.ErrAbortTransaction
		}
		counter = key.NewCounter(0)
		return counter, nil
	})
	if err != nil {
		return Counter{}, errors.Wrap(err, "creating lecture counter")
	}
	return counter, nil
}

// ActivateSelection resolves act against the live catalog, then activates it.
func (svc *Service) ActivateSelection(ctx context.Context, act Activation) (SubjectRow, Counter, error) {
	rows, err := svc.Catalog(ctx)
	if err != nil {
		return SubjectRow{}, Counter{}, err
	}
	row, ok := FindRow(rows, act)
	if !ok {
		return SubjectRow{}, Counter{}, core.NewFieldValidationError("subject", ErrSubjectNotFound)
	}
	c, err := svc.Activate(ctx, row)
	if err != nil {
		return SubjectRow{}, Counter{}, err
	}
	return row, c, nil
}

// Persist overwrites the stored counter with c. Concurrent writers race: the last write wins.
func (svc *Service) Persist(ctx context.Context, c Counter) error {
	if c.Count < 0 {
		return core.NewFieldValidationError("count", errors.New("count cannot be negative"))
	}
	path, err := c.Key().path()
	if err != nil {
		return err
	}
	if err = svc.store.Set(ctx, path, c); err != nil {
		return errors.Wrap(err, "saving lecture counter")
	}
	return nil
}

// Increment atomically moves the stored counter by delta, never below 0.
// A missing counter starts at 0.
func (svc *Service) Increment(ctx context.Context, k CounterKey, delta int) (Counter, error) {
	if delta != 1 && delta != -1 {
		return Counter{}, core.NewFieldValidationError("delta", ErrInvalidDelta)
	}
	path, err := k.path()
	if err != nil {
		return Counter{}, err
	}

	var counter Counter
	err = svc.store.Transaction(ctx, path, func(current core.Snapshot) (interface{}, error) {
		var c Counter
		if err := current.Decode(&c); err != nil {
			return nil, err
		}
		next, err := AdjustCount(k.NewCounter(c.Count), delta)
		if err != nil {
			return nil, err
		}
		counter = next
		return next, nil
	})
	if err != nil {
		return Counter{}, errors.Wrap(err, "incrementing lecture counter")
	}
	return counter, nil
}

// SubscribeCounters calls fn with the whole counter tree on every change.
func (svc *Service) SubscribeCounters(ctx context.Context, fn func(CounterTree), onErr func(error)) (core.Subscription, error) {
	return svc.store.Subscribe(ctx, CounterPath, func(snap core.Snapshot) {
		counters, err := DecodeCounters(snap)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(counters)
	})
}

// SubscribeMarkers calls fn with every current-attendance marker on each change.
func (svc *Service) SubscribeMarkers(ctx context.Context, fn func(Markers), onErr func(error)) (core.Subscription, error) {
	return svc.store.Subscribe(ctx, MarkerPath, func(snap core.Snapshot) {
		markers, err := DecodeMarkers(snap)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(markers)
	})
}
