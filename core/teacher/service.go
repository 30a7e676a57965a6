package teacher

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
)

// Path is the tree holding every Teacher, keyed by id.
const Path = "teachers"

var (
	// errors
	ErrNotFound           = errors.New("teacher not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAlreadyAssigned    = errors.New("this subject is already assigned to the teacher")
)

type Service struct {
	store     core.TreeStore
	branchSvc *branch.Service
}

func NewService(store core.TreeStore, branchSvc *branch.Service) *Service {
	return &Service{store: store, branchSvc: branchSvc}
}

func teacherPath(id string) (string, error) {
	return core.JoinPath(Path, id)
}

func (svc *Service) Register(ctx context.Context, nt NewTeacher) (Teacher, error) {
	id, err := svc.store.NewKey(ctx, Path)
	if err != nil {
		return Teacher{}, errors.Wrap(err, "generating teacher id")
	}
	t := Teacher{
		ID:         id,
		Name:       core.CleanString(nt.Name),
		Phone:      core.CleanString(nt.Phone),
		Profession: cleanNullString(nt.Profession),
		Address:    cleanNullString(nt.Address),
		CreatedAt:  time.Now().UnixMilli(),
	}
	if err = svc.save(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// List returns every Teacher by registration date.
func (svc *Service) List(ctx context.Context) ([]Teacher, error) {
	snap, err := svc.store.Get(ctx, Path)
	if err != nil {
		return nil, errors.Wrap(err, "reading teachers")
	}
	var byID map[string]Teacher
	if err = snap.Decode(&byID); err != nil {
		return nil, err
	}

	teachers := make([]Teacher, 0, len(byID))
	for id, t := range byID {
		t.ID = id
		teachers = append(teachers, t)
	}
	sort.Slice(teachers, func(i, j int) bool {
		if teachers[i].CreatedAt == teachers[j].CreatedAt {
			return teachers[i].ID < teachers[j].ID
		}
		return teachers[i].CreatedAt < teachers[j].CreatedAt
	})
	return teachers, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Teacher, error) {
	path, err := teacherPath(id)
	if err != nil {
		return Teacher{}, err
	}
	snap, err := svc.store.Get(ctx, path)
	if err != nil {
		return Teacher{}, errors.Wrap(err, "reading teacher")
	}
	if !snap.Exists() {
		return Teacher{}, ErrNotFound
	}
	var t Teacher
	if err = snap.Decode(&t); err != nil {
		return Teacher{}, err
	}
	t.ID = id
	return t, nil
}

func (svc *Service) Update(ctx context.Context, id string, ut UpdateTeacher) (Teacher, error) {
	t, err := svc.Get(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	t.Name = core.CleanString(ut.Name)
	t.Phone = core.CleanString(ut.Phone)
	t.Profession = cleanNullString(ut.Profession)
	t.Address = cleanNullString(ut.Address)
	if err = svc.save(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	path, _ := teacherPath(id)
	if err := svc.store.Delete(ctx, path); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return nil
}

// AssignSubjects replaces the teacher's assignments with sels, resolved against the live catalog.
func (svc *Service) AssignSubjects(ctx context.Context, id string, sels []Selection) (Teacher, error) {
	t, err := svc.Get(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	branches, err := svc.branchSvc.List(ctx)
	if err != nil {
		return Teacher{}, err
	}

	assignments := make(Assignments, 0, len(sels))
	for _, sel := range sels {
		a, err := Resolve(branches, sel)
		if err != nil {
			return Teacher{}, err
		}
		if assignments.Has(a.BranchID, a.SemesterID.String(), a.Subject) {
			return Teacher{}, core.NewFieldValidationError("subject", ErrAlreadyAssigned)
		}
		assignments = append(assignments, a)
	}

	t.Assignments = assignments
	if err = svc.save(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// AddAssignment appends one catalog entry to the teacher's assignments.
func (svc *Service) AddAssignment(ctx context.Context, id string, sel Selection) (Teacher, error) {
	t, err := svc.Get(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	branches, err := svc.branchSvc.List(ctx)
	if err != nil {
		return Teacher{}, err
	}
	a, err := Resolve(branches, sel)
	if err != nil {
		return Teacher{}, err
	}
	if t.Assignments.Has(a.BranchID, a.SemesterID.String(), a.Subject) {
		return Teacher{}, core.NewFieldValidationError("subject", ErrAlreadyAssigned)
	}

	t.Assignments = append(t.Assignments, a)
	if err = svc.save(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// RemoveAssignment drops the assignment at idx. Stale assignments can be removed
// even when their catalog entry no longer exists.
func (svc *Service) RemoveAssignment(ctx context.Context, id string, idx int) (Teacher, error) {
	t, err := svc.Get(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	if t.Assignments, err = t.Assignments.Remove(idx); err != nil {
		return Teacher{}, err
	}
	if err = svc.save(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

func (svc *Service) save(ctx context.Context, t Teacher) error {
	path, err := teacherPath(t.ID)
	if err != nil {
		return err
	}
	if err = svc.store.Set(ctx, path, t); err != nil {
		return errors.Wrap(err, "saving teacher")
	}
	return nil
}

// Resolve checks that sel names an existing branch, semester and subject, and
// returns the denormalized assignment.
func Resolve(branches []branch.Branch, sel Selection) (Assignment, error) {
	for _, b := range branches {
		if b.ID != sel.BranchID {
			continue
		}
		sem, ok := b.FindSemester(sel.SemesterID)
		if !ok {
			return Assignment{}, core.NewFieldValidationError("semesterId", branch.ErrSemesterNotFound)
		}
		subject := core.CleanString(sel.Subject)
		if !sem.HasSubject(subject) {
			return Assignment{}, core.NewFieldValidationError("subject", branch.ErrSubjectNotFound)
		}
		return Assignment{
			BranchID:      b.ID,
			BranchName:    b.Name,
			SemesterID:    sem.ID,
			SemesterLabel: sem.Label,
			Subject:       subject,
		}, nil
	}
	return Assignment{}, core.NewFieldValidationError("branchId", branch.ErrNotFound)
}
