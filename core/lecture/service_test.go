package lecture_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hazira/core"
	"github.com/trezcool/hazira/core/branch"
	"github.com/trezcool/hazira/core/lecture"
	"github.com/trezcool/hazira/core/teacher"
	testutil "github.com/trezcool/hazira/tests"
)

const (
	timeout = time.Second
	tick    = 10 * time.Millisecond
)

type fixture struct {
	store      core.TreeStore
	branchSvc  *branch.Service
	teacherSvc *teacher.Service
	svc        *lecture.Service
	cs         branch.Branch
}

func setUp(t *testing.T) fixture {
	store := testutil.NewStore()
	branchSvc := branch.NewService(store)
	teacherSvc := teacher.NewService(store, branchSvc)
	cs := testutil.CreateBranch(t, branchSvc, "CS", map[string][]string{"3": {"Maths", "Physics"}}, "3")
	return fixture{
		store:      store,
		branchSvc:  branchSvc,
		teacherSvc: teacherSvc,
		svc:        lecture.NewService(store, branchSvc, teacherSvc),
		cs:         cs,
	}
}

func key(subject string) lecture.CounterKey {
	return lecture.CounterKey{BranchName: "CS", SemesterLabel: "3", Subject: subject}
}

func TestService_Catalog(t *testing.T) {
	f := setUp(t)
	testutil.RegisterTeacher(t, f.teacherSvc, "Ada", testutil.Select(t, f.cs, "3", "Maths"))
	testutil.RegisterTeacher(t, f.teacherSvc, "Alan", testutil.Select(t, f.cs, "3", "Maths"))

	rows, err := f.svc.Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Maths", rows[0].Subject)
	assert.Equal(t, []string{"Ada", "Alan"}, rows[0].TeacherNames)
	assert.Equal(t, "Physics", rows[1].Subject)
	assert.Empty(t, rows[1].TeacherNames)

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 2},
		{query: "phys", want: 1},
		{query: "cs", want: 2},
		{query: "3", want: 2},
		{query: "chemistry", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Len(t, lecture.FilterCatalog(rows, tt.query), tt.want)
		})
	}
}

func TestService_ActivateReplacesMarker(t *testing.T) {
	ctx := context.Background()
	f := setUp(t)
	rows, err := f.svc.Catalog(ctx)
	require.NoError(t, err)

	_, err = f.svc.Activate(ctx, rows[0]) // Maths
	require.NoError(t, err)
	markers, err := f.svc.Markers(ctx)
	require.NoError(t, err)
	assert.True(t, markers.IsActive(key("Maths")))

	_, err = f.svc.Activate(ctx, rows[1]) // Physics
	require.NoError(t, err)
	markers, err = f.svc.Markers(ctx)
	require.NoError(t, err)

	assert.True(t, markers.IsActive(key("Physics")))
	assert.False(t, markers.IsActive(key("Maths")))
	row, ok := markers.Active("CS", "3")
	require.True(t, ok)
	assert.Equal(t, f.cs.ID, row.BranchID)

	// both counters exist, only Physics is active
	counters, err := f.svc.Counters(ctx)
	require.NoError(t, err)
	assert.Len(t, counters.All(), 2)
	active, err := f.svc.ActiveCounters(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Physics", active[0].Subject)
}

func TestService_ActivateKeepsExistingCount(t *testing.T) {
	ctx := context.Background()
	f := setUp(t)
	require.NoError(t, f.svc.Persist(ctx, key("Maths").NewCounter(7)))

	row, c, err := f.svc.ActivateSelection(ctx, lecture.Activation{
		BranchID:   f.cs.ID,
		SemesterID: f.cs.Semesters[0].ID.String(),
		Subject:    "Maths",
	})
	require.NoError(t, err)
	assert.Equal(t, "Maths", row.Subject)
	assert.Equal(t, 7, c.Count)

	c, err = f.svc.Counter(ctx, key("Maths"))
	require.NoError(t, err)
	assert.Equal(t, 7, c.Count)

	// activating a new subject starts it at 0
	_, c, err = f.svc.ActivateSelection(ctx, lecture.Activation{
		BranchID:   f.cs.ID,
		SemesterID: f.cs.Semesters[0].ID.String(),
		Subject:    "Physics",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count)
}

func TestService_ActivateSelectionUnknownSubject(t *testing.T) {
	f := setUp(t)
	_, _, err := f.svc.ActivateSelection(context.Background(), lecture.Activation{
		BranchID:   f.cs.ID,
		SemesterID: f.cs.Semesters[0].ID.String(),
		Subject:    "Chemistry",
	})
	assert.True(t, core.IsValidationError(err))

	markers, err := f.svc.Markers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, markers)
}

func TestService_PersistLastWriteWins(t *testing.T) {
	ctx := context.Background()
	f := setUp(t)

	require.NoError(t, f.svc.Persist(ctx, key("Maths").NewCounter(10)))
	require.NoError(t, f.svc.Persist(ctx, key("Maths").NewCounter(3)))

	c, err := f.svc.Counter(ctx, key("Maths"))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Count)

	err = f.svc.Persist(ctx, key("Maths").NewCounter(-1))
	assert.True(t, core.IsValidationError(err))

	err = f.svc.Persist(ctx, lecture.CounterKey{BranchName: "C.S", SemesterLabel: "3", Subject: "Maths"}.NewCounter(1))
	assert.True(t, core.IsValidationError(err))
}

func TestService_Increment(t *testing.T) {
	ctx := context.Background()
	f := setUp(t)

	c, err := f.svc.Increment(ctx, key("Maths"), -1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Count, "a missing counter is clamped at 0")

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Increment(ctx, key("Maths"), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err = f.svc.Counter(ctx, key("Maths"))
	require.NoError(t, err)
	assert.Equal(t, 25, c.Count)

	_, err = f.svc.Increment(ctx, key("Maths"), 3)
	assert.True(t, core.IsValidationError(err))
}

func TestService_CounterNotFound(t *testing.T) {
	f := setUp(t)
	_, err := f.svc.Counter(context.Background(), key("Maths"))
	assert.Equal(t, lecture.ErrCounterNotFound, err)
}

func TestService_SubscribeCounters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := setUp(t)

	var (
		mu    sync.Mutex
		trees []lecture.CounterTree
	)
	sub, err := f.svc.SubscribeCounters(ctx, func(tree lecture.CounterTree) {
		mu.Lock()
		trees = append(trees, tree)
		mu.Unlock()
	}, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, f.svc.Persist(ctx, key("Maths").NewCounter(4)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(trees) == 2
	}, timeout, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, trees[0].All())
	assert.Equal(t, 4, trees[1].Scheduled("CS", "3"))
}
