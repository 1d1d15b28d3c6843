package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/idctl/pkg/observability"
)

func newLoadedEditor(t *testing.T, rel *fakeRelation, opts Options) *Editor {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	e := NewEditor(rel, opts)
	require.NoError(t, e.Refresh(context.Background()))
	rel.resetCalls()
	return e
}

func TestEditor_RefreshLoadsBothSets(t *testing.T) {
	rel := newFakeRelation("x", "y")
	e := newLoadedEditor(t, rel, Options{Name: "test"})

	assert.Equal(t, []string{"x", "y"}, e.Current())
	assert.Equal(t, []string{"x", "y"}, e.Pending())
	assert.Equal(t, Viewing, e.State())
	assert.NoError(t, e.Err())
}

func TestEditor_RefreshFailureKeepsSets(t *testing.T) {
	rel := newFakeRelation("x")
	e := newLoadedEditor(t, rel, Options{})

	rel.loadErr = errors.New("unavailable")
	require.Error(t, e.Refresh(context.Background()))
	assert.Equal(t, ViewingWithError, e.State())
	assert.Equal(t, []string{"x"}, e.Current())

	rel.loadErr = nil
	require.NoError(t, e.Refresh(context.Background()))
	assert.Equal(t, Viewing, e.State())
	assert.NoError(t, e.Err())
}

func TestEditor_EditingState(t *testing.T) {
	rel := newFakeRelation("x")
	e := newLoadedEditor(t, rel, Options{})

	require.NoError(t, e.Toggle("y"))
	assert.Equal(t, Editing, e.State())
	toAssign, toUnassign := e.Changes()
	assert.Equal(t, []string{"y"}, toAssign)
	assert.Empty(t, toUnassign)

	require.NoError(t, e.Toggle("y"))
	assert.Equal(t, Viewing, e.State(), "toggling back converges with current")

	require.NoError(t, e.SetPending([]string{"z"}))
	assert.Equal(t, Editing, e.State())
	e.Reset()
	assert.Equal(t, Viewing, e.State())
	assert.Equal(t, []string{"x"}, e.Pending())
	assert.Empty(t, rel.callLog(), "editing never calls the server")
}

func TestEditor_SaveFullSuccess(t *testing.T) {
	rel := newFakeRelation("a", "b")
	e := newLoadedEditor(t, rel, Options{Concurrency: 2})

	require.NoError(t, e.SetPending([]string{"b", "c", "d"}))
	require.NoError(t, e.Save(context.Background()))

	assert.ElementsMatch(t, []string{"assign:c", "assign:d", "unassign:a"}, rel.callLog())
	assert.Equal(t, []string{"b", "c", "d"}, e.Current())
	assert.Equal(t, []string{"b", "c", "d"}, e.Pending())
	assert.Equal(t, Viewing, e.State())
	assert.Equal(t, 2, rel.loads, "initial load plus one refetch")
}

func TestEditor_SaveTwiceIssuesNoCallsSecondTime(t *testing.T) {
	rel := newFakeRelation("a")
	e := newLoadedEditor(t, rel, Options{})

	require.NoError(t, e.Select("b", true))
	require.NoError(t, e.Save(context.Background()))
	require.Len(t, rel.callLog(), 1)

	rel.resetCalls()
	loads := rel.loads
	require.NoError(t, e.Save(context.Background()))
	assert.Empty(t, rel.callLog())
	assert.Equal(t, loads, rel.loads, "empty diff does not refetch either")
}

func TestEditor_PartialFailureIsolation(t *testing.T) {
	rel := newFakeRelation()
	rel.fail("assign", "B", errRejected)
	e := newLoadedEditor(t, rel, Options{})

	require.NoError(t, e.SetPending([]string{"A", "B"}))
	err := e.Save(context.Background())

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"B"}, batchErr.FailedIDs())
	assert.Equal(t, 2, batchErr.Attempted)
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, err.Error(), "1 of 2 assignment changes failed")

	assert.Equal(t, []string{"A"}, e.Current(), "A's success is kept")
	assert.Equal(t, []string{"A"}, e.Pending(), "B reverts to unselected")
	assert.Equal(t, ViewingWithError, e.State())
	assert.Equal(t, err, e.Err())
}

func TestEditor_SaveLogsFailedCount(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	rel := newFakeRelation()
	rel.fail("assign", "B", errRejected)
	e := newLoadedEditor(t, rel, Options{Name: "user_roles", Logger: log})

	require.NoError(t, e.SetPending([]string{"A", "B", "C"}))
	require.Error(t, e.Save(context.Background()))

	var settled *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "assignment batch settled" {
			settled = entry
		}
	}
	require.NotNil(t, settled)
	assert.Equal(t, 3, settled.Data["attempted"])
	assert.Equal(t, 1, settled.Data["failed"])
	assert.Equal(t, "user_roles", settled.Data["relation"])
}

func TestEditor_FailedUnassignReselects(t *testing.T) {
	rel := newFakeRelation("A", "B")
	rel.fail("unassign", "B", errRejected)
	e := newLoadedEditor(t, rel, Options{})

	require.NoError(t, e.SetPending(nil))
	err := e.Save(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"B"}, e.Current())
	assert.Equal(t, []string{"B"}, e.Pending())
}

func TestEditor_RollbackWithoutRefetch(t *testing.T) {
	rel := newFakeRelation("keep")
	rel.fail("assign", "B", errRejected)
	e := newLoadedEditor(t, rel, Options{})

	require.NoError(t, e.SetPending([]string{"keep", "A", "B"}))
	rel.loadErr = errors.New("refetch down")
	err := e.Save(context.Background())

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.ErrorContains(t, err, "refetch down")
	assert.Equal(t, []string{"A", "keep"}, e.Current(), "local commit survives a failed refetch")
	assert.Equal(t, []string{"A", "keep"}, e.Pending())
	assert.Equal(t, ViewingWithError, e.State())
}

func TestEditor_RefetchHealsDrift(t *testing.T) {
	rel := newFakeRelation("a")
	e := newLoadedEditor(t, rel, Options{})

	// another operator assigned "z" meanwhile
	rel.mu.Lock()
	rel.server.Add("z")
	rel.mu.Unlock()

	require.NoError(t, e.Select("b", true))
	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, []string{"a", "b", "z"}, e.Current())
}

func TestEditor_SaveRunsConcurrently(t *testing.T) {
	rel := newFakeRelation()
	rel.gate = make(chan struct{})
	rel.started = make(chan string, 3)
	e := newLoadedEditor(t, rel, Options{Concurrency: 3})

	require.NoError(t, e.SetPending([]string{"a", "b", "c"}))

	done := make(chan error, 1)
	go func() { done <- e.Save(context.Background()) }()

	for range 3 {
		select {
		case <-rel.started:
		case <-time.After(5 * time.Second):
			t.Fatal("calls were not issued concurrently")
		}
	}
	assert.Equal(t, Saving, e.State())
	assert.ErrorIs(t, e.Save(context.Background()), ErrSaveInProgress)
	assert.ErrorIs(t, e.Toggle("d"), ErrSaveInProgress)
	assert.ErrorIs(t, e.Refresh(context.Background()), ErrSaveInProgress)

	close(rel.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 3, rel.maxSeen)
	assert.Equal(t, []string{"a", "b", "c"}, e.Current())
}

func TestEditor_ConcurrencyLimit(t *testing.T) {
	rel := newFakeRelation()
	e := newLoadedEditor(t, rel, Options{Concurrency: 1})

	require.NoError(t, e.SetPending([]string{"a", "b", "c", "d"}))
	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, 1, rel.maxSeen)
	assert.Len(t, rel.callLog(), 4)
}

func TestEditor_ToggleNowSingleCall(t *testing.T) {
	rel := newFakeRelation("X", "Y")
	e := newLoadedEditor(t, rel, Options{})

	require.NoError(t, e.ToggleNow(context.Background(), "P", true))

	assert.Equal(t, []string{"assign:P"}, rel.callLog(), "exactly one call, none for X or Y")
	assert.Equal(t, []string{"P", "X", "Y"}, e.Current())
	assert.Equal(t, Viewing, e.State())
}

func TestEditor_ToggleNowRevertsOnFailure(t *testing.T) {
	rel := newFakeRelation("X")
	rel.fail("unassign", "X", errRejected)
	e := newLoadedEditor(t, rel, Options{})

	err := e.ToggleNow(context.Background(), "X", false)
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"X"}, batchErr.FailedIDs())
	assert.Equal(t, OpUnassign, batchErr.Failures[0].Op)

	assert.True(t, e.Selected("X"), "checkbox goes back on")
	assert.True(t, e.Assigned("X"))
	assert.Equal(t, ViewingWithError, e.State())
}

func TestEditor_ToggleNowNoopWhenAlreadyApplied(t *testing.T) {
	rel := newFakeRelation("X")
	e := newLoadedEditor(t, rel, Options{})

	require.NoError(t, e.ToggleNow(context.Background(), "X", true))
	require.NoError(t, e.ToggleNow(context.Background(), "Q", false))
	assert.Empty(t, rel.callLog())
}

func TestEditor_ToggleNowOptimisticWhileInFlight(t *testing.T) {
	rel := newFakeRelation()
	rel.gate = make(chan struct{})
	rel.started = make(chan string, 1)
	e := newLoadedEditor(t, rel, Options{})

	done := make(chan error, 1)
	go func() { done <- e.ToggleNow(context.Background(), "P", true) }()
	<-rel.started

	assert.True(t, e.Selected("P"), "optimistic selection")
	assert.False(t, e.Assigned("P"))
	assert.Equal(t, Saving, e.State())
	assert.ErrorIs(t, e.ToggleNow(context.Background(), "P", false), ErrSaveInProgress)
	assert.ErrorIs(t, e.Save(context.Background()), ErrSaveInProgress)

	close(rel.gate)
	require.NoError(t, <-done)
	assert.True(t, e.Assigned("P"))
}

func TestEditor_OverlappingToggleKeepsFailure(t *testing.T) {
	rel := newFakeRelation()
	release := rel.hold("A")
	rel.started = make(chan string, 2)
	rel.fail("assign", "B", errRejected)
	e := newLoadedEditor(t, rel, Options{})

	done := make(chan error, 1)
	go func() { done <- e.ToggleNow(context.Background(), "A", true) }()
	require.Equal(t, "A", <-rel.started)

	err := e.ToggleNow(context.Background(), "B", true)
	require.ErrorIs(t, err, errRejected)
	<-rel.started
	assert.Equal(t, Saving, e.State(), "A is still in flight")

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, ViewingWithError, e.State())
	assert.ErrorIs(t, e.Err(), errRejected)
	assert.Equal(t, []string{"A"}, e.Current())
	assert.Equal(t, []string{"A"}, e.Pending())

	// the next toggle starts clean
	require.NoError(t, e.ToggleNow(context.Background(), "C", true))
	<-rel.started
	assert.Equal(t, Viewing, e.State())
	assert.NoError(t, e.Err())
}

func TestEditor_RecordsMetrics(t *testing.T) {
	metrics := observability.NewClientMetrics(prometheus.NewRegistry())
	rel := newFakeRelation("gone")
	rel.fail("assign", "bad", errRejected)
	e := newLoadedEditor(t, rel, Options{Name: "role_permissions", Metrics: metrics})

	require.NoError(t, e.SetPending([]string{"ok", "bad"}))
	require.Error(t, e.Save(context.Background()))

	calls := metrics.AssignmentCallsTotal
	assert.Equal(t, 1.0, testutil.ToFloat64(calls.WithLabelValues("role_permissions", "assign", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(calls.WithLabelValues("role_permissions", "assign", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(calls.WithLabelValues("role_permissions", "unassign", "ok")))
}

func TestEditor_PanicInCallIsAFailure(t *testing.T) {
	rel := Funcs{
		LoadFunc:   func(ctx context.Context) ([]string, error) { return nil, nil },
		AssignFunc: func(ctx context.Context, id string) error { panic("boom") },
	}
	e := NewEditor(rel, Options{Logger: observability.Discard()})
	require.NoError(t, e.Select("a", true))

	err := e.Save(context.Background())
	assert.ErrorContains(t, err, "panic: boom")
	assert.Empty(t, e.Pending())
}

func TestFuncs_Unsupported(t *testing.T) {
	var f Funcs
	_, err := f.Load(context.Background())
	assert.ErrorIs(t, err, errNotSupported)
	assert.ErrorIs(t, f.Assign(context.Background(), "a"), errNotSupported)
	assert.ErrorIs(t, f.Unassign(context.Background(), "a"), errNotSupported)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "viewing", Viewing.String())
	assert.Equal(t, "editing", Editing.String())
	assert.Equal(t, "saving", Saving.String())
	assert.Equal(t, "viewing-with-error", ViewingWithError.String())
}

func TestEditor_PrimeSkipsLoad(t *testing.T) {
	rel := newFakeRelation("a", "b")
	e := NewEditor(rel, Options{Logger: observability.Discard()})

	require.NoError(t, e.Prime([]string{"a", "b"}))
	assert.Equal(t, 0, rel.loads)
	assert.Equal(t, []string{"a", "b"}, e.Pending())

	require.NoError(t, e.Toggle("a"))
	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, []string{"unassign:a"}, rel.callLog())
	assert.Equal(t, []string{"b"}, e.Current())
}
