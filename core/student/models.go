package student

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/hazira/core"
)

type (
	// Event is one presence/absence recorded by an enrollment device.
	Event struct {
		Key       string          `json:"key,omitempty"`
		Attended  bool            `json:"attended"`
		Timestamp Timestamp       `json:"timestamp"`
		Branch    string          `json:"branch"`
		Semester  core.FlexString `json:"sem"`
		Subject   string          `json:"subject"`
	}

	// Student is a user record. Branch and Semester are names, not ids.
	Student struct {
		Key        string           `json:"pushKey"`
		ID         core.FlexString  `json:"id"` // fingerprint slot
		Name       string           `json:"name"`
		Phone      core.FlexString  `json:"number"`
		RollNumber core.FlexString  `json:"rollNumber"`
		Branch     string           `json:"branch"`
		Semester   core.FlexString  `json:"sem"`
		Attendance map[string]Event `json:"attendance,omitempty"`
		CreatedAt  Timestamp        `json:"createdAt,omitempty"`
	}
)

// Events returns the student's events in insertion order (keys are chronological).
func (s Student) Events() []Event {
	events := make([]Event, 0, len(s.Attendance))
	for key, ev := range s.Attendance {
		ev.Key = key
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Key < events[j].Key })
	return events
}

// Matches reports whether s matches query on name, roll number or slot id, ignoring case.
func (s Student) Matches(query string) bool {
	query = core.CleanString(query)
	if query == "" {
		return true
	}
	return core.ContainsFold(s.Name, query) ||
		core.ContainsFold(s.RollNumber.String(), query) ||
		core.ContainsFold(s.ID.String(), query)
}

// Timestamp is an epoch value in seconds or milliseconds, as written by devices.
// It decodes from JSON integers, integral floats and numeric strings.
type Timestamp int64

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*ts = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*ts = Timestamp(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Errorf("invalid timestamp %s", string(b))
	}
	// the seconds/milliseconds rule reads the decimal length, which a fraction would change
	if f != math.Trunc(f) {
		return errors.Errorf("timestamp %s is not a whole number", string(b))
	}
	*ts = Timestamp(f)
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(ts))
}
