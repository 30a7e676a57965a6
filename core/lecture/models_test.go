package lecture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hazira/core"
)

func TestAdjustCount(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		delta   int
		want    int
		wantErr bool
	}{
		{name: "increment", count: 5, delta: 1, want: 6},
		{name: "decrement", count: 5, delta: -1, want: 4},
		{name: "decrement at zero is clamped", count: 0, delta: -1, want: 0},
		{name: "increment from zero", count: 0, delta: 1, want: 1},
		{name: "delta too large", count: 3, delta: 2, want: 3, wantErr: true},
		{name: "zero delta", count: 3, delta: 0, want: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Counter{BranchName: "CS", SemesterLabel: "3", Subject: "Maths", Count: tt.count}
			got, err := AdjustCount(c, tt.delta)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got.Count)
			assert.Equal(t, tt.count, c.Count, "input counter must not change")
		})
	}
}

func TestDecodeCounters(t *testing.T) {
	tests := []struct {
		name string
		snap string
		want []Counter
	}{
		{name: "absent", snap: "", want: nil},
		{
			name: "objects",
			snap: `{"CS":{"3":{"Maths":{"branchName":"CS","sem":"3","subject":"Maths","count":10},"Physics":{"count":5}}}}`,
			want: []Counter{
				{BranchName: "CS", SemesterLabel: "3", Subject: "Maths", Count: 10},
				{BranchName: "CS", SemesterLabel: "3", Subject: "Physics", Count: 5},
			},
		},
		{
			name: "semesters rendered as array",
			snap: `{"CS":[null,{"Maths":{"count":2}},null,{"Maths":{"count":10}}]}`,
			want: []Counter{
				{BranchName: "CS", SemesterLabel: "1", Subject: "Maths", Count: 2},
				{BranchName: "CS", SemesterLabel: "3", Subject: "Maths", Count: 10},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := DecodeCounters(core.Snapshot(tt.snap))
			require.NoError(t, err)
			assert.Equal(t, tt.want, tree.All())
		})
	}
}

func TestCounterTree_Scheduled(t *testing.T) {
	tree := make(CounterTree)
	tree.Put(Counter{BranchName: "CS", SemesterLabel: "3", Subject: "Maths", Count: 10})
	tree.Put(Counter{BranchName: "CS", SemesterLabel: "3", Subject: "Physics", Count: 5})
	tree.Put(Counter{BranchName: "CS", SemesterLabel: "4", Subject: "Maths", Count: 7})

	assert.Equal(t, 15, tree.Scheduled("CS", "3"))
	assert.Equal(t, 7, tree.Scheduled("CS", "4"))
	assert.Equal(t, 0, tree.Scheduled("EE", "3"))
	assert.Len(t, tree.Semester("CS", "3"), 2)
}

func TestActiveCounters(t *testing.T) {
	tree := make(CounterTree)
	tree.Put(Counter{BranchName: "CS", SemesterLabel: "3", Subject: "Maths", Count: 10})
	tree.Put(Counter{BranchName: "CS", SemesterLabel: "3", Subject: "Physics", Count: 5})

	markers := make(Markers)
	markers.Put(SubjectRow{BranchName: "CS", SemesterLabel: "3", Subject: "Physics"})
	markers.Put(SubjectRow{BranchName: "EE", SemesterLabel: "1", Subject: "Circuits"}) // no counter yet

	active := ActiveCounters(tree, markers)
	require.Len(t, active, 1)
	assert.Equal(t, "Physics", active[0].Subject)
	assert.True(t, markers.IsActive(active[0].Key()))
	assert.False(t, markers.IsActive(CounterKey{BranchName: "CS", SemesterLabel: "3", Subject: "Maths"}))
}

func TestCounterTree_withDoesNotMutate(t *testing.T) {
	tree := make(CounterTree)
	tree.Put(Counter{BranchName: "CS", SemesterLabel: "3", Subject: "Maths", Count: 10})

	next := tree.with(Counter{BranchName: "CS", SemesterLabel: "3", Subject: "Maths", Count: 11})

	c, _ := tree.Get(CounterKey{BranchName: "CS", SemesterLabel: "3", Subject: "Maths"})
	assert.Equal(t, 10, c.Count)
	c, _ = next.Get(CounterKey{BranchName: "CS", SemesterLabel: "3", Subject: "Maths"})
	assert.Equal(t, 11, c.Count)
}
