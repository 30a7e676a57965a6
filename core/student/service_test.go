package student_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/student"
	testutil "github.com/trezcool/hazira/tests"
)

type slotsMock struct {
	released []string
}

func (m *slotsMock) Release(_ context.Context, slot string) error {
	m.released = append(m.released, slot)
	return nil
}

// as written by the enrollment device
const graceJSON = `{
	"pushKey": "-Nu1",
	"id": 7,
	"name": "Grace",
	"number": 254700000000,
	"rollNumber": "R-07",
	"branch": "CS",
	"sem": 3,
	"createdAt": 1700000000,
	"attendance": {
		"-Ne2": {"attended": true, "timestamp": 1700000500000, "branch": "CS", "sem": "3", "subject": "Maths"},
		"-Ne1": {"attended": false, "timestamp": "1700000000", "branch": "CS", "sem": 3, "subject": "Physics"}
	}
}`

func seed(t *testing.T) (core.TreeStore, *student.Service, *slotsMock) {
	store := testutil.NewStore()
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(graceJSON), &raw))
	testutil.SetValue(t, store, "users/-Nu1", raw)
	testutil.SetValue(t, store, "users/-Nu2", map[string]interface{}{"name": "Alan", "branch": "EE", "sem": "1"})

	slots := &slotsMock{}
	return store, student.NewService(store, slots), slots
}

func TestService_Get(t *testing.T) {
	_, svc, _ := seed(t)
	s, err := svc.Get(context.Background(), "-Nu1")
	require.NoError(t, err)

	assert.Equal(t, "-Nu1", s.Key)
	assert.Equal(t, core.FlexString("7"), s.ID)
	assert.Equal(t, core.FlexString("254700000000"), s.Phone)
	assert.Equal(t, core.FlexString("3"), s.Semester)
	assert.Equal(t, student.Timestamp(1700000000), s.CreatedAt)

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "-Ne1", events[0].Key)
	assert.Equal(t, student.Timestamp(1700000000), events[0].Timestamp)
	assert.Equal(t, core.FlexString("3"), events[0].Semester)
	assert.Equal(t, "-Ne2", events[1].Key)

	_, err = svc.Get(context.Background(), "-Nu9")
	assert.Equal(t, student.ErrNotFound, err)
}

func TestService_List(t *testing.T) {
	_, svc, _ := seed(t)
	students, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "-Nu1", students[0].Key)
	assert.Equal(t, "-Nu2", students[1].Key)
	assert.Empty(t, students[1].Attendance)
}

func TestStudent_Matches(t *testing.T) {
	s := student.Student{ID: "7", Name: "Grace Hopper", RollNumber: "R-07"}
	tests := []struct {
		query string
		want  bool
	}{
		{query: "", want: true},
		{query: "hop", want: true},
		{query: "r-0", want: true},
		{query: "7", want: true},
		{query: "ada", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Matches(tt.query), "Matches(%q)", tt.query)
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    student.Timestamp
		wantErr bool
	}{
		{in: `1700000000`, want: 1700000000},
		{in: `1700000000123`, want: 1700000000123},
		{in: `"1700000000"`, want: 1700000000},
		{in: `1700000000.0`, want: 1700000000},
		{in: `1.7e12`, want: 1700000000000},
		{in: `1700000000.5`, wantErr: true},
		{in: `"1700000000.5"`, wantErr: true},
		{in: `null`, want: 0},
		{in: `"yesterday"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var ts student.Timestamp
			err := json.Unmarshal([]byte(tt.in), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ts)
		})
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	store, svc, slots := seed(t)

	require.NoError(t, svc.Delete(ctx, "-Nu1"))
	assert.Equal(t, []string{"7"}, slots.released)
	snap, err := store.Get(ctx, "users/-Nu1")
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	// no slot to free
	require.NoError(t, svc.Delete(ctx, "-Nu2"))
	assert.Equal(t, []string{"7"}, slots.released)

	assert.Equal(t, student.ErrNotFound, svc.Delete(ctx, "-Nu1"))
}

func TestService_DeleteEvent(t *testing.T) {
	ctx := context.Background()
	_, svc, _ := seed(t)

	require.NoError(t, svc.DeleteEvent(ctx, "-Nu1", "-Ne1"))
	s, err := svc.Get(ctx, "-Nu1")
	require.NoError(t, err)
	assert.Len(t, s.Attendance, 1)
	assert.Contains(t, s.Attendance, "-Ne2")

	assert.Equal(t, student.ErrEventNotFound, svc.DeleteEvent(ctx, "-Nu1", "-Ne1"))
	assert.Equal(t, student.ErrNotFound, svc.DeleteEvent(ctx, "-Nu9", "-Ne1"))

	// removing the last event leaves the student in place
	require.NoError(t, svc.DeleteEvent(ctx, "-Nu1", "-Ne2"))
	s, err = svc.Get(ctx, "-Nu1")
	require.NoError(t, err)
	assert.Empty(t, s.Attendance)
}

func TestService_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, svc, _ := seed(t)

	var (
		mu     sync.Mutex
		counts []int
	)
	_, err := svc.Subscribe(ctx, func(students []student.Student) {
		mu.Lock()
		counts = append(counts, len(students))
		mu.Unlock()
	}, nil)
	require.NoError(t, err)

	testutil.SetValue(t, store, "users/-Nu3", map[string]interface{}{"name": "Ada"})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(counts) == 2 && counts[0] == 2 && counts[1] == 3
	}, time.Second, 10*time.Millisecond)
}
