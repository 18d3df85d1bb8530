package stream

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
	"github.com/roach88/coldfetch/internal/store"
	"github.com/roach88/coldfetch/internal/testutil"
)

func sqliteExecutor(t *testing.T) *confine.Executor {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "stream.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Put(context.Background(),
		ir.Record{ID: "t1", Entity: "Task", Fields: ir.Object{"status": ir.String("open"), "title": ir.String("write")}},
		ir.Record{ID: "t2", Entity: "Task", Fields: ir.Object{"status": ir.String("open"), "title": ir.String("ship")}},
		ir.Record{ID: "t3", Entity: "Task", Fields: ir.Object{"status": ir.String("done"), "title": ir.String("plan")}},
	))

	q := newQueue(t)
	return confine.NewExecutor(st, q)
}

func TestSQLite_TwoMatchingRecords(t *testing.T) {
	exec := sqliteExecutor(t)
	obs := testutil.NewRecordingObserver()

	req := fetch.NewRequest("Task", fetch.Where(fetch.Eq{Field: "status", Value: ir.String("open")}))
	SubmitFetch(exec, req, obs)
	waitTerminated(t, obs)

	events := obs.Events()
	require.Equal(t, []testutil.EventKind{testutil.EventNext, testutil.EventComplete}, obs.Kinds())
	require.Len(t, events[0].Records, 2)
	assert.Equal(t, "t1", events[0].Records[0].ID)
	assert.Equal(t, "t2", events[0].Records[1].ID)
	assert.Equal(t, ir.String("ship"), events[0].Records[1].Fields["title"])
}

func TestSQLite_MalformedRequest(t *testing.T) {
	exec := sqliteExecutor(t)
	obs := testutil.NewRecordingObserver()

	req := fetch.NewRequest("Task", fetch.Where(fetch.Cmp{Field: "status", Op: "like", Value: ir.String("o%")}))
	SubmitFetch(exec, req, obs)
	waitTerminated(t, obs)

	events := obs.Events()
	require.Len(t, events, 1)
	assert.Equal(t, testutil.EventError, events[0].Kind)
	assert.Equal(t, fetch.KindValidation, fetch.KindOf(events[0].Err))
}
