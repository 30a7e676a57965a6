package attendance

import (
	"time"

	"github.com/trezcool/hazira/core/student"
)

type Dashboard struct {
	TotalStudents        int `json:"totalStudents"`
	TotalRecords         int `json:"totalRecords"`
	AttendedToday        int `json:"attendedToday"`
	EnrolledFingerprints int `json:"enrolledFingerprints"`
}

// DashboardStats counts students and attendance records. Today starts at
// midnight in now's location.
func DashboardStats(students []student.Student, reserved int, now time.Time) Dashboard {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	d := Dashboard{TotalStudents: len(students), EnrolledFingerprints: reserved}
	for _, s := range students {
		d.TotalRecords += len(s.Attendance)
		for _, ev := range s.Attendance {
			if ev.Attended && !EventTime(ev, now.Location()).Before(midnight) {
				d.AttendedToday++
			}
		}
	}
	return d
}
