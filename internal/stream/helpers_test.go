package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/ir"
	"github.com/roach88/coldfetch/internal/testutil"
)

const waitFor = 2 * time.Second

func newQueue(t *testing.T) *confine.Queue {
	t.Helper()
	q := confine.NewQueue(t.Name())
	t.Cleanup(q.Close)
	return q
}

// flush waits until every job queued on q so far has run.
func flush(t *testing.T, q *confine.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, q.PerformAndWait(ctx, func(context.Context) {}))
}

// blockQueue parks q's worker until the returned release is called.
func blockQueue(t *testing.T, q *confine.Queue) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	parked := make(chan struct{})
	require.NoError(t, q.Schedule(func() {
		close(parked)
		<-gate
	}))
	<-parked
	return func() { close(gate) }
}

func recordingExecutor(t *testing.T, records ...ir.Record) (*confine.Executor, *testutil.RecordingSource) {
	t.Helper()
	q := newQueue(t)
	src := testutil.NewRecordingSource(records...)
	src.Guard = q.OnQueue
	return confine.NewExecutor(src, q), src
}

func waitTerminated(t *testing.T, obs *testutil.RecordingObserver) {
	t.Helper()
	require.True(t, obs.WaitTerminated(waitFor), "no terminal event")
}

func task(id, title string) ir.Record {
	return ir.Record{ID: id, Entity: "Task", Fields: ir.Object{"title": ir.String(title)}}
}
