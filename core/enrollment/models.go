package enrollment

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hazira/core"
)

// Fingerprint slots available on the sensor.
const (
	MinSlot = 1
	MaxSlot = 127
)

type (
	// Enrollment is the hand-off payload read by the enrollment device.
	Enrollment struct {
		ID         core.FlexString `json:"id"`
		Name       string          `json:"name"`
		Phone      string          `json:"number"`
		RollNumber string          `json:"rollNumber"`
		Branch     string          `json:"branch"`
		Semester   string          `json:"sem"`
	}

	NewEnrollment struct {
		Slot       int    `json:"id" validate:"required,min=1,max=127"`
		Name       string `json:"name" validate:"required,notblank"`
		Phone      string `json:"number" validate:"required,phone"`
		RollNumber string `json:"rollNumber" validate:"required,notblank"`
		BranchID   string `json:"branchId" validate:"required"`
		SemesterID string `json:"semesterId" validate:"required"`
	}
)

func (ne NewEnrollment) Validate(validate *validator.Validate) error {
	return validate.Struct(ne)
}
