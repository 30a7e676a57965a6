package student

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
)

// Path is the tree holding every Student, keyed by push key.
const Path = "users"

var (
	// errors
	ErrNotFound      = errors.New("student not found")
	ErrEventNotFound = errors.New("attendance record not found")
)

type (
	// SlotRegistry frees the fingerprint slot of a deleted student.
	SlotRegistry interface {
		Release(ctx context.Context, slot string) error
	}

	Service struct {
		store core.TreeStore
		slots SlotRegistry
	}
)

func NewService(store core.TreeStore, slots SlotRegistry) *Service {
	return &Service{store: store, slots: slots}
}

// Decode reads a snapshot of the whole users tree.
func Decode(snap core.Snapshot) ([]Student, error) {
	var byKey map[string]Student
	if err := snap.Decode(&byKey); err != nil {
		return nil, err
	}
	students := make([]Student, 0, len(byKey))
	for key, s := range byKey {
		s.Key = key
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Key < students[j].Key })
	return students, nil
}

func (svc *Service) List(ctx context.Context) ([]Student, error) {
	snap, err := svc.store.Get(ctx, Path)
	if err != nil {
		return nil, errors.Wrap(err, "reading students")
	}
	return Decode(snap)
}

func (svc *Service) Get(ctx context.Context, key string) (Student, error) {
	path, err := core.JoinPath(Path, key)
	if err != nil {
		return Student{}, err
	}
	snap, err := svc.store.Get(ctx, path)
	if err != nil {
		return Student{}, errors.Wrap(err, "reading student")
	}
	if !snap.Exists() {
		return Student{}, ErrNotFound
	}
	var s Student
	if err = snap.Decode(&s); err != nil {
		return Student{}, err
	}
	s.Key = key
	return s, nil
}

// Delete removes the student record and frees their fingerprint slot.
func (svc *Service) Delete(ctx context.Context, key string) error {
	s, err := svc.Get(ctx, key)
	if err != nil {
		return err
	}
	path, _ := core.JoinPath(Path, key)
	if err = svc.store.Delete(ctx, path); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if svc.slots != nil && s.ID != "" {
		if err = svc.slots.Release(ctx, s.ID.String()); err != nil {
			return errors.Wrap(err, "releasing fingerprint slot")
		}
	}
	return nil
}

// DeleteEvent removes a single attendance record.
func (svc *Service) DeleteEvent(ctx context.Context, key, eventKey string) error {
	s, err := svc.Get(ctx, key)
	if err != nil {
		return err
	}
	if _, ok := s.Attendance[eventKey]; !ok {
		return ErrEventNotFound
	}
	path, err := core.JoinPath(Path, key, "attendance", eventKey)
	if err != nil {
		return err
	}
	if err = svc.store.Delete(ctx, path); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return nil
}

// SetEventTimestamp rewrites the timestamp of a single attendance record.
func (svc *Service) SetEventTimestamp(ctx context.Context, key, eventKey string, ts Timestamp) error {
	path, err := core.JoinPath(Path, key, "attendance", eventKey, "timestamp")
	if err != nil {
		return err
	}
	if err = svc.store.Set(ctx, path, ts); err != nil {
		return errors.Wrap(err, "updating attendance record")
	}
	return nil
}

// Subscribe calls fn with every student on each change of the users tree.
func (svc *Service) Subscribe(ctx context.Context, fn func([]Student), onErr func(error)) (core.Subscription, error) {
	return svc.store.Subscribe(ctx, Path, func(snap core.Snapshot) {
		students, err := Decode(snap)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		fn(students)
	})
}
