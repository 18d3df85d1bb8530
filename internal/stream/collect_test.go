package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/testutil"
)

func TestCollect_Success(t *testing.T) {
	exec, _ := recordingExecutor(t, task("t1", "a"))

	records, err := Collect(context.Background(), Adapt(exec, fetch.NewRequest("Task")))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "t1", records[0].ID)
}

func TestCollect_Error(t *testing.T) {
	exec, _ := recordingExecutor(t)

	_, err := Collect(context.Background(), Adapt(exec, fetch.NewRequest("")))
	assert.True(t, fetch.IsValidation(err))
}

func TestCollect_DeadlineCancels(t *testing.T) {
	q := newQueue(t)
	gated := testutil.NewGatedSource(testutil.NewRecordingSource())
	exec := confine.NewExecutor(gated, q)
	t.Cleanup(gated.Release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	records, err := Collect(ctx, Adapt(exec, fetch.NewRequest("Task")))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, records)
}

func TestCancelWhenDone(t *testing.T) {
	exec, src := recordingExecutor(t)
	release := blockQueue(t, exec.Queue())

	obs := testutil.NewRecordingObserver()
	sub := SubmitFetch(exec, fetch.NewRequest("Task"), obs)

	ctx, cancel := context.WithCancel(context.Background())
	stop := CancelWhenDone(ctx, sub)
	defer stop()
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription not cancelled")
	}
	release()
	flush(t, exec.Queue())

	assert.Equal(t, StateCancelled, sub.State())
	assert.Equal(t, 0, src.CallCount())
	assert.Empty(t, obs.Events())
}

func TestCancelWhenDone_Stop(t *testing.T) {
	exec, _ := recordingExecutor(t)
	release := blockQueue(t, exec.Queue())

	obs := testutil.NewRecordingObserver()
	sub := SubmitFetch(exec, fetch.NewRequest("Task"), obs)

	ctx, cancel := context.WithCancel(context.Background())
	stop := CancelWhenDone(ctx, sub)
	stop()
	stop()
	cancel()

	release()
	waitTerminated(t, obs)
	assert.Equal(t, StateCompleted, sub.State())
}
