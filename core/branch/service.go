package branch

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
)

// Path is the tree holding every Branch, keyed by id.
const Path = "subjects"

var (
	// errors
	ErrNotFound         = errors.New("branch not found")
	ErrSemesterNotFound = errors.New("semester not found")
	ErrSubjectNotFound  = errors.New("subject not found")

	ErrDuplicateSemester = errors.New("semester labels must be unique within a branch")
)

type Service struct {
	store core.TreeStore
}

func NewService(store core.TreeStore) *Service {
	return &Service{store: store}
}

func branchPath(id string) (string, error) {
	return core.JoinPath(Path, id)
}

func (svc *Service) Create(ctx context.Context, nb NewBranch) (Branch, error) {
	id, err := svc.store.NewKey(ctx, Path)
	if err != nil {
		return Branch{}, errors.Wrap(err, "generating branch id")
	}
	b := Branch{
		ID:        id,
		Name:      core.CleanString(nb.Name),
		Semesters: buildSemesters(nb.Semesters),
	}
	if err = svc.Save(ctx, b); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// List returns every Branch, oldest first.
func (svc *Service) List(ctx context.Context) ([]Branch, error) {
	snap, err := svc.store.Get(ctx, Path)
	if err != nil {
		return nil, errors.Wrap(err, "reading branches")
	}
	var byID map[string]Branch
	if err = snap.Decode(&byID); err != nil {
		return nil, err
	}

	branches := make([]Branch, 0, len(byID))
	for id, b := range byID {
		if b.ID == "" {
			b.ID = id
		}
		branches = append(branches, b)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].ID < branches[j].ID })
	return branches, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Branch, error) {
	path, err := branchPath(id)
	if err != nil {
		return Branch{}, err
	}
	snap, err := svc.store.Get(ctx, path)
	if err != nil {
		return Branch{}, errors.Wrap(err, "reading branch")
	}
	if !snap.Exists() {
		return Branch{}, ErrNotFound
	}
	var b Branch
	if err = snap.Decode(&b); err != nil {
		return Branch{}, err
	}
	b.ID = id
	return b, nil
}

// Update overwrites the whole Branch.
func (svc *Service) Update(ctx context.Context, id string, ub UpdateBranch) (Branch, error) {
	if _, err := svc.Get(ctx, id); err != nil {
		return Branch{}, err
	}
	b := Branch{
		ID:        id,
		Name:      core.CleanString(ub.Name),
		Semesters: buildSemesters(ub.Semesters),
	}
	if err := svc.Save(ctx, b); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// Edit applies fn to the stored Branch and saves the result.
func (svc *Service) Edit(ctx context.Context, id string, fn func(b *Branch) error) (Branch, error) {
	b, err := svc.Get(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	if err = fn(&b); err != nil {
		return Branch{}, err
	}
	if err = svc.Save(ctx, b); err != nil {
		return Branch{}, err
	}
	return b, nil
}

// Save overwrites the stored record with b.
func (svc *Service) Save(ctx context.Context, b Branch) error {
	path, err := branchPath(b.ID)
	if err != nil {
		return err
	}
	if err = svc.store.Set(ctx, path, b); err != nil {
		return errors.Wrap(err, "saving branch")
	}
	return nil
}

// Delete removes the Branch only: lecture counters and attendance events recorded
// under its name are left as they are.
func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	path, _ := branchPath(id)
	if err := svc.store.Delete(ctx, path); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return nil
}
