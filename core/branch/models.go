package branch

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/hazira/core"
)

type (
	Semester struct {
		ID       core.FlexString `json:"id"`
		Label    string          `json:"sem"`
		Subjects []string        `json:"subjects"`
	}

	Branch struct {
		ID        string     `json:"id"`
		Name      string     `json:"branch"`
		Semesters []Semester `json:"semesters"`
	}
)

type (
	SemesterData struct {
		ID       string   `json:"id"`
		Label    string   `json:"sem" validate:"required,notblank,treekey"`
		Subjects []string `json:"subjects" validate:"dive,required,notblank,treekey"`
	}

	NewBranch struct {
		Name      string         `json:"branch" validate:"required,notblank,treekey"`
		Semesters []SemesterData `json:"semesters" validate:"dive"`
	}

	UpdateBranch struct {
		Name      string         `json:"branch" validate:"required,notblank,treekey"`
		Semesters []SemesterData `json:"semesters" validate:"dive"`
	}

	// Name carries a single branch, semester or subject name.
	Name struct {
		Name string `json:"name" validate:"required,notblank,treekey"`
	}
)

func (nb NewBranch) Validate(validate *validator.Validate) error {
	return validate.Struct(nb)
}

func (ub UpdateBranch) Validate(validate *validator.Validate) error {
	return validate.Struct(ub)
}

func (n Name) Validate(validate *validator.Validate) error {
	return validate.Struct(n)
}

func newSemesterID() core.FlexString {
	return core.FlexString(uuid.NewString())
}

func buildSemesters(data []SemesterData) []Semester {
	sems := make([]Semester, 0, len(data))
	for _, sd := range data {
		sem := Semester{ID: core.FlexString(core.CleanString(sd.ID)), Label: core.CleanString(sd.Label)}
		if sem.ID == "" {
			sem.ID = newSemesterID()
		}
		for _, subj := range sd.Subjects {
			sem.Subjects = append(sem.Subjects, core.CleanString(subj))
		}
		sems = append(sems, sem)
	}
	return sems
}

// Semester returns the index of the semester with the given id.
func (b *Branch) Semester(id string) (int, error) {
	for i, sem := range b.Semesters {
		if sem.ID.String() == id {
			return i, nil
		}
	}
	return -1, ErrSemesterNotFound
}

// FindSemester returns the semester with the given id.
func (b Branch) FindSemester(id string) (Semester, bool) {
	i, err := b.Semester(id)
	if err != nil {
		return Semester{}, false
	}
	return b.Semesters[i], true
}

// HasSubject reports whether the semester offers subject.
func (sem Semester) HasSubject(subject string) bool {
	for _, s := range sem.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

func (b *Branch) Rename(name string) {
	b.Name = core.CleanString(name)
}

// labelTaken reports whether another semester than skip already uses label.
func (b *Branch) labelTaken(label string, skip int) bool {
	for i, sem := range b.Semesters {
		if i != skip && sem.Label == label {
			return true
		}
	}
	return false
}

func (b *Branch) AddSemester(label string) (Semester, error) {
	label = core.CleanString(label)
	if b.labelTaken(label, -1) {
		return Semester{}, core.NewFieldValidationError("name", ErrDuplicateSemester)
	}
	sem := Semester{ID: newSemesterID(), Label: label}
	b.Semesters = append(b.Semesters, sem)
	return sem, nil
}

func (b *Branch) RenameSemester(id, label string) error {
	i, err := b.Semester(id)
	if err != nil {
		return err
	}
	label = core.CleanString(label)
	if b.labelTaken(label, i) {
		return core.NewFieldValidationError("name", ErrDuplicateSemester)
	}
	b.Semesters[i].Label = label
	return nil
}

func (b *Branch) RemoveSemester(id string) error {
	i, err := b.Semester(id)
	if err != nil {
		return err
	}
	b.Semesters = append(b.Semesters[:i:i], b.Semesters[i+1:]...)
	return nil
}

func (b *Branch) AddSubject(semID, subject string) error {
	i, err := b.Semester(semID)
	if err != nil {
		return err
	}
	b.Semesters[i].Subjects = append(b.Semesters[i].Subjects, core.CleanString(subject))
	return nil
}

func (b *Branch) RenameSubject(semID string, idx int, subject string) error {
	i, err := b.Semester(semID)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(b.Semesters[i].Subjects) {
		return ErrSubjectNotFound
	}
	b.Semesters[i].Subjects[idx] = core.CleanString(subject)
	return nil
}

func (b *Branch) RemoveSubject(semID string, idx int) error {
	i, err := b.Semester(semID)
	if err != nil {
		return err
	}
	subjects := b.Semesters[i].Subjects
	if idx < 0 || idx >= len(subjects) {
		return ErrSubjectNotFound
	}
	b.Semesters[i].Subjects = append(subjects[:idx:idx], subjects[idx+1:]...)
	return nil
}
