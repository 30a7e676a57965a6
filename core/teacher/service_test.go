package teacher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/teacher"
	testutil "github.com/trezcool/hazira/tests"
)

func setUp(t *testing.T) (*teacher.Service, *branch.Service, branch.Branch) {
	store := testutil.NewStore()
	branchSvc := branch.NewService(store)
	cs := testutil.CreateBranch(t, branchSvc, "CS", map[string][]string{"3": {"Maths", "Physics"}, "4": {"Networks"}}, "3", "4")
	return teacher.NewService(store, branchSvc), branchSvc, cs
}

func TestTeacher_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	tests := []struct {
		name    string
		nt      teacher.NewTeacher
		wantErr bool
	}{
		{name: "valid", nt: teacher.NewTeacher{Name: "Ada", Phone: "+254 (700) 123-456"}},
		{name: "with profession", nt: teacher.NewTeacher{Name: "Ada", Phone: "0700123456", Profession: null.StringFrom("Lecturer")}},
		{name: "blank name", nt: teacher.NewTeacher{Name: " ", Phone: "0700123456"}, wantErr: true},
		{name: "missing phone", nt: teacher.NewTeacher{Name: "Ada"}, wantErr: true},
		{name: "bad phone", nt: teacher.NewTeacher{Name: "Ada", Phone: "call me"}, wantErr: true},
		{name: "short phone", nt: teacher.NewTeacher{Name: "Ada", Phone: "123"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nt.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_CRUD(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setUp(t)

	ada, err := svc.Register(ctx, teacher.NewTeacher{
		Name:       " Ada ",
		Phone:      "0700123456",
		Profession: null.StringFrom("  "),
		Address:    null.StringFrom(" Nairobi "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", ada.Name)
	assert.False(t, ada.Profession.Valid, "blank values are stored as null")
	assert.Equal(t, null.StringFrom("Nairobi"), ada.Address)
	assert.NotZero(t, ada.CreatedAt)

	alan := testutil.RegisterTeacher(t, svc, "Alan")

	got, err := svc.Get(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, ada, got)

	teachers, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, ada.ID, teachers[0].ID)
	assert.Equal(t, alan.ID, teachers[1].ID)

	updated, err := svc.Update(ctx, alan.ID, teacher.UpdateTeacher{Name: "Alan T.", Phone: "0711000000"})
	require.NoError(t, err)
	assert.Equal(t, "Alan T.", updated.Name)
	assert.Equal(t, alan.CreatedAt, updated.CreatedAt)

	require.NoError(t, svc.Delete(ctx, alan.ID))
	_, err = svc.Get(ctx, alan.ID)
	assert.Equal(t, teacher.ErrNotFound, err)
	assert.Equal(t, teacher.ErrNotFound, svc.Delete(ctx, alan.ID))
}

func TestService_AssignSubjects(t *testing.T) {
	ctx := context.Background()
	svc, branchSvc, cs := setUp(t)
	ada := testutil.RegisterTeacher(t, svc, "Ada")

	maths := testutil.Select(t, cs, "3", "Maths")
	networks := testutil.Select(t, cs, "4", "Networks")

	ada, err := svc.AssignSubjects(ctx, ada.ID, []teacher.Selection{maths, networks})
	require.NoError(t, err)
	require.Len(t, ada.Assignments, 2)
	assert.Equal(t, teacher.Assignment{
		BranchID:      cs.ID,
		BranchName:    "CS",
		SemesterID:    cs.Semesters[0].ID,
		SemesterLabel: "3",
		Subject:       "Maths",
	}, ada.Assignments[0])

	tests := []struct {
		name  string
		sels  []teacher.Selection
		field string
	}{
		{name: "unknown branch", sels: []teacher.Selection{{BranchID: "nope", SemesterID: maths.SemesterID, Subject: "Maths"}}, field: "branchId"},
		{name: "unknown semester", sels: []teacher.Selection{{BranchID: cs.ID, SemesterID: "nope", Subject: "Maths"}}, field: "semesterId"},
		{name: "subject of another semester", sels: []teacher.Selection{{BranchID: cs.ID, SemesterID: maths.SemesterID, Subject: "Networks"}}, field: "subject"},
		{name: "duplicate", sels: []teacher.Selection{maths, maths}, field: "subject"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AssignSubjects(ctx, ada.ID, tt.sels)
			require.True(t, core.IsValidationError(err), "got %v", err)
			verr := err.(*core.ValidationError)
			assert.Equal(t, tt.field, verr.Fields[0].Field)

			stored, err := svc.Get(ctx, ada.ID)
			require.NoError(t, err)
			assert.Len(t, stored.Assignments, 2, "failed assignment must not be saved")
		})
	}

	t.Run("add and remove", func(t *testing.T) {
		physics := testutil.Select(t, cs, "3", "Physics")
		tch, err := svc.AddAssignment(ctx, ada.ID, physics)
		require.NoError(t, err)
		require.Len(t, tch.Assignments, 3)

		_, err = svc.AddAssignment(ctx, ada.ID, physics)
		assert.True(t, core.IsValidationError(err))

		tch, err = svc.RemoveAssignment(ctx, ada.ID, 0)
		require.NoError(t, err)
		require.Len(t, tch.Assignments, 2)
		assert.Equal(t, "Networks", tch.Assignments[0].Subject)

		_, err = svc.RemoveAssignment(ctx, ada.ID, 5)
		assert.Equal(t, teacher.ErrAssignmentNotFound, err)
	})

	t.Run("renames are not propagated", func(t *testing.T) {
		_, err := branchSvc.Edit(ctx, cs.ID, func(b *branch.Branch) error {
			b.Rename("Computing")
			return nil
		})
		require.NoError(t, err)

		tch, err := svc.Get(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, "CS", tch.Assignments[0].BranchName)

		// stale assignments can still be removed
		_, err = svc.RemoveAssignment(ctx, ada.ID, 0)
		assert.NoError(t, err)
	})
}
