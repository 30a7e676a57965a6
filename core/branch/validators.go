package branch

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hazira/core"
)

var (
	uniqueSemTag  = "uniquesem"
	uniqueSemText = ErrDuplicateSemester.Error()
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(branchStructValidation, NewBranch{}, UpdateBranch{})
	core.RegisterCustomTranslation(validate, translator, uniqueSemTag, uniqueSemText)
}

// branchStructValidation does struct level validation on NewBranch and UpdateBranch structs.
// Semester labels key the lecture counters so they must be unique.
func branchStructValidation(sl validator.StructLevel) {
	var sems []SemesterData
	switch b := sl.Current().Interface().(type) {
	case NewBranch:
		sems = b.Semesters
	case UpdateBranch:
		sems = b.Semesters
	}

	seen := make(map[string]bool, len(sems))
	for _, sem := range sems {
		label := core.CleanString(sem.Label)
		if seen[label] {
			sl.ReportError(sems, "semesters", "Semesters", uniqueSemTag, "")
			return
		}
		seen[label] = true
	}
}
