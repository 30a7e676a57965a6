package enrollment

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
)

const (
	// RegistryPath holds the reserved slots: fingerprints/{n} = "reserved".
	RegistryPath = "fingerprints"
	// PendingPath holds the latest registration, until the device picks it up or it is cancelled.
	PendingPath = "id"

	reserved = "reserved"
)

var (
	// errors
	ErrSlotReserved = errors.New("this fingerprint slot is already reserved")
	ErrNoPending    = errors.New("no pending enrollment")
)

type Service struct {
	store     core.TreeStore
	branchSvc *branch.Service
}

func NewService(store core.TreeStore, branchSvc *branch.Service) *Service {
	return &Service{store: store, branchSvc: branchSvc}
}

func slotPath(slot string) (string, error) {
	return core.JoinPath(RegistryPath, slot)
}

// ReservedSlots returns the reserved slots, sorted.
func (svc *Service) ReservedSlots(ctx context.Context) ([]int, error) {
	snap, err := svc.store.Get(ctx, RegistryPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading fingerprint registry")
	}
	slots, err := decodeRegistry(snap)
	if err != nil {
		return nil, err
	}
	sort.Ints(slots)
	return slots, nil
}

// AvailableSlots returns the free slots in MinSlot..MaxSlot, sorted.
func (svc *Service) AvailableSlots(ctx context.Context) ([]int, error) {
	taken, err := svc.ReservedSlots(ctx)
	if err != nil {
		return nil, err
	}
	isTaken := make(map[int]bool, len(taken))
	for _, slot := range taken {
		isTaken[slot] = true
	}

	free := make([]int, 0, MaxSlot-MinSlot+1-len(taken))
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		if !isTaken[slot] {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Register reserves ne.Slot and publishes the pending enrollment for the device.
func (svc *Service) Register(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	b, err := svc.branchSvc.Get(ctx, ne.BranchID)
	if err != nil {
		if errors.Cause(err) == branch.ErrNotFound {
			return Enrollment{}, core.NewFieldValidationError("branchId", err)
		}
		return Enrollment{}, err
	}
	sem, ok := b.FindSemester(ne.SemesterID)
	if !ok {
		return Enrollment{}, core.NewFieldValidationError("semesterId", branch.ErrSemesterNotFound)
	}

	slot := strconv.Itoa(ne.Slot)
	if err = svc.reserve(ctx, slot); err != nil {
		return Enrollment{}, err
	}

	enr := Enrollment{
		ID:         core.FlexString(slot),
		Name:       core.CleanString(ne.Name),
		Phone:      core.CleanString(ne.Phone),
		RollNumber: core.CleanString(ne.RollNumber),
		Branch:     b.Name,
		Semester:   sem.Label,
	}
	if err = svc.store.Set(ctx, PendingPath, enr); err != nil {
		path, _ := slotPath(slot)
		_ = svc.store.Delete(ctx, path)
		return Enrollment{}, errors.Wrap(err, "publishing pending enrollment")
	}
	return enr, nil
}

// reserve marks slot as reserved unless it already is.
func (svc *Service) reserve(ctx context.Context, slot string) error {
	path, err := slotPath(slot)
	if err != nil {
		return err
	}
	var taken bool
	err = svc.store.Transaction(ctx, path, func(current core.Snapshot) (interface{}, error) {
		if taken = current.Exists(); taken {
			return nil, core.ErrAbortTransaction
		}
		return reserved, nil
	})
	if err != nil {
		return errors.Wrap(err, "reserving fingerprint slot")
	}
	if taken {
		return core.NewFieldValidationError("id", ErrSlotReserved)
	}
	return nil
}

// Pending returns the enrollment waiting for the device, if any.
func (svc *Service) Pending(ctx context.Context) (Enrollment, bool, error) {
	snap, err := svc.store.Get(ctx, PendingPath)
	if err != nil {
		return Enrollment{}, false, errors.Wrap(err, "reading pending enrollment")
	}
	if !snap.Exists() {
		return Enrollment{}, false, nil
	}
	var enr Enrollment
	if err = snap.Decode(&enr); err != nil {
		return Enrollment{}, false, err
	}
	return enr, true, nil
}

// Release frees slot, and drops the pending enrollment if it refers to that slot.
func (svc *Service) Release(ctx context.Context, slot string) error {
	path, err := slotPath(slot)
	if err != nil {
		return err
	}
	if err = svc.store.Delete(ctx, path); err != nil {
		return errors.Wrap(err, "releasing fingerprint slot")
	}

	enr, ok, err := svc.Pending(ctx)
	if err != nil {
		return err
	}
	if ok && enr.ID.String() == slot {
		if err = svc.store.Delete(ctx, PendingPath); err != nil {
			return errors.Wrap(err, "deleting pending enrollment")
		}
	}
	return nil
}

// CancelPending frees the slot of the pending enrollment and removes it.
func (svc *Service) CancelPending(ctx context.Context) (Enrollment, error) {
	enr, ok, err := svc.Pending(ctx)
	if err != nil {
		return Enrollment{}, err
	}
	if !ok {
		return Enrollment{}, ErrNoPending
	}
	if err = svc.Release(ctx, enr.ID.String()); err != nil {
		return Enrollment{}, err
	}
	return enr, nil
}

func decodeRegistry(snap core.Snapshot) ([]int, error) {
	children, err := snap.Children()
	if err != nil {
		return nil, errors.Wrap(err, "decoding fingerprint registry")
	}
	slots := make([]int, 0, len(children))
	for key := range children {
		if n, err := strconv.Atoi(key); err == nil {
			slots = append(slots, n)
		}
	}
	return slots, nil
}
