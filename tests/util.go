package testutil

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/teacher"
	inmemdb "github.com/trezcool/hazira/storage/database/inmem"
)

// NewValidator returns a validator set up like the API's.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	branch.InitValidators(validate, translator)
	return validate, translator
}

func NewStore() *inmemdb.DB {
	return inmemdb.NewDB(nil)
}

// SetValue writes v at path, failing the test on error.
func SetValue(t *testing.T, store core.TreeStore, path string, v interface{}) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), path, v))
}

// CreateBranch creates a branch with one semester per label, each with all subjects.
func CreateBranch(t *testing.T, svc *branch.Service, name string, subjectsBySem map[string][]string, labels ...string) branch.Branch {
	t.Helper()
	nb := branch.NewBranch{Name: name}
	for _, label := range labels {
		nb.Semesters = append(nb.Semesters, branch.SemesterData{Label: label, Subjects: subjectsBySem[label]})
	}
	b, err := svc.Create(context.Background(), nb)
	require.NoError(t, err)
	return b
}

// RegisterTeacher registers a teacher assigned to the given selections.
func RegisterTeacher(t *testing.T, svc *teacher.Service, name string, sels ...teacher.Selection) teacher.Teacher {
	t.Helper()
	ctx := context.Background()
	tch, err := svc.Register(ctx, teacher.NewTeacher{Name: name, Phone: "+254 700 000000"})
	require.NoError(t, err)
	if len(sels) > 0 {
		tch, err = svc.AssignSubjects(ctx, tch.ID, sels)
		require.NoError(t, err)
	}
	return tch
}

// Select builds the selection of subject in the semester labelled semLabel of b.
func Select(t *testing.T, b branch.Branch, semLabel, subject string) teacher.Selection {
	t.Helper()
	for _, sem := range b.Semesters {
		if sem.Label == semLabel {
			return teacher.Selection{BranchID: b.ID, SemesterID: sem.ID.String(), Subject: subject}
		}
	}
	t.Fatalf("semester %q not found in branch %q", semLabel, b.Name)
	return teacher.Selection{}
}
