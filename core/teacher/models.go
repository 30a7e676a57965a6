package teacher

import (
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hazira/core"
)

type (
	// Assignment is a denormalized copy of a catalog entry: branch and semester
	// names are snapshots taken when the assignment was made.
	Assignment struct {
		BranchID      string          `json:"branchId"`
		BranchName    string          `json:"branchName"`
		SemesterID    core.FlexString `json:"semesterId"`
		SemesterLabel string          `json:"sem"`
		Subject       string          `json:"subject"`
	}

	Assignments []Assignment

	Teacher struct {
		ID          string      `json:"id"`
		Name        string      `json:"teacherName"`
		Phone       string      `json:"teacherNumber"`
		Profession  null.String `json:"profession"`
		Address     null.String `json:"address"`
		Assignments Assignments `json:"teacherSubjects"`
		CreatedAt   int64       `json:"createdAt"` // unix ms
	}
)

type (
	NewTeacher struct {
		Name       string      `json:"teacherName" validate:"required,notblank"`
		Phone      string      `json:"teacherNumber" validate:"required,phone"`
		Profession null.String `json:"profession"`
		Address    null.String `json:"address"`
	}

	UpdateTeacher struct {
		Name       string      `json:"teacherName" validate:"required,notblank"`
		Phone      string      `json:"teacherNumber" validate:"required,phone"`
		Profession null.String `json:"profession"`
		Address    null.String `json:"address"`
	}

	// Selection picks a subject from the catalog by ids.
	Selection struct {
		BranchID   string `json:"branchId" validate:"required"`
		SemesterID string `json:"semesterId" validate:"required"`
		Subject    string `json:"subject" validate:"required,notblank"`
	}

	AssignSubjects struct {
		Selections []Selection `json:"teacherSubjects" validate:"dive"`
	}
)

func (nt NewTeacher) Validate(validate *validator.Validate) error {
	return validate.Struct(nt)
}

func (ut UpdateTeacher) Validate(validate *validator.Validate) error {
	return validate.Struct(ut)
}

func (s Selection) Validate(validate *validator.Validate) error {
	return validate.Struct(s)
}

func (as AssignSubjects) Validate(validate *validator.Validate) error {
	return validate.Struct(as)
}

// Matches reports whether the assignment refers to the given catalog entry.
func (a Assignment) Matches(branchID, semesterID, subject string) bool {
	return a.BranchID == branchID && a.SemesterID.String() == semesterID && a.Subject == subject
}

// Has reports whether one of the assignments refers to the given catalog entry.
func (as Assignments) Has(branchID, semesterID, subject string) bool {
	for _, a := range as {
		if a.Matches(branchID, semesterID, subject) {
			return true
		}
	}
	return false
}

// Remove returns a copy of as without the assignment at idx.
func (as Assignments) Remove(idx int) (Assignments, error) {
	if idx < 0 || idx >= len(as) {
		return nil, ErrAssignmentNotFound
	}
	out := make(Assignments, 0, len(as)-1)
	out = append(out, as[:idx]...)
	return append(out, as[idx+1:]...), nil
}

func cleanNullString(s null.String) null.String {
	if !s.Valid {
		return s
	}
	cleaned := core.CleanString(s.String)
	return null.NewString(cleaned, cleaned != "")
}
