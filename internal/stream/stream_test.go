package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/dispatch"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
	"github.com/roach88/coldfetch/internal/metrics"
	"github.com/roach88/coldfetch/internal/testutil"
)

func TestAdapt_IsCold(t *testing.T) {
	exec, src := recordingExecutor(t)

	s := Adapt(exec, fetch.NewRequest("Task"))
	flush(t, exec.Queue())

	assert.Equal(t, 0, src.CallCount())
	assert.True(t, s.Request().Equal(fetch.NewRequest("Task")))
}

func TestSubscribe_ExactlyOneExecution(t *testing.T) {
	exec, src := recordingExecutor(t, task("t1", "a"))
	obs := testutil.NewRecordingObserver()

	sub := SubmitFetch(exec, fetch.NewRequest("Task"), obs)
	waitTerminated(t, obs)
	flush(t, exec.Queue())

	assert.Equal(t, 1, src.CallCount())
	calls := src.Calls()
	assert.True(t, calls[0].Confined, "executor must run on its queue")
	assert.Equal(t, []testutil.EventKind{testutil.EventNext, testutil.EventComplete}, obs.Kinds())
	assert.Equal(t, StateCompleted, sub.State())
	<-sub.Done()
}

func TestSubscribe_NoMemoization(t *testing.T) {
	exec, src := recordingExecutor(t, task("t1", "a"))
	req := fetch.NewRequest("Task")

	first := testutil.NewRecordingObserver()
	second := testutil.NewRecordingObserver()
	SubmitFetch(exec, req, first)
	SubmitFetch(exec, req, second)
	waitTerminated(t, first)
	waitTerminated(t, second)

	assert.Equal(t, 2, src.CallCount())

	// The two deliveries do not share storage.
	a := first.Events()[0].Records
	b := second.Events()[0].Records
	a[0].Fields["title"] = ir.String("mutated")
	assert.Equal(t, ir.String("a"), b[0].Fields["title"])
}

func TestSubscribe_SameStreamTwice(t *testing.T) {
	exec, src := recordingExecutor(t)
	s := Adapt(exec, fetch.NewRequest("Task"))

	o1, o2 := testutil.NewRecordingObserver(), testutil.NewRecordingObserver()
	s1 := s.Subscribe(o1)
	s2 := s.Subscribe(o2)
	waitTerminated(t, o1)
	waitTerminated(t, o2)

	assert.Equal(t, 2, src.CallCount())
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestCancel_BeforeDispatch(t *testing.T) {
	exec, src := recordingExecutor(t)
	release := blockQueue(t, exec.Queue())

	obs := testutil.NewRecordingObserver()
	sub := SubmitFetch(exec, fetch.NewRequest("Task"), obs)
	assert.Equal(t, StateScheduled, sub.State())

	sub.Cancel()
	release()
	flush(t, exec.Queue())

	assert.Equal(t, 0, src.CallCount(), "executor must not be invoked")
	assert.Empty(t, obs.Events())
	assert.Equal(t, StateCancelled, sub.State())
	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Cancel")
	}
}

func TestCancel_DuringRun(t *testing.T) {
	q := newQueue(t)
	inner := testutil.NewRecordingSource(task("t1", "a"), task("t2", "b"))
	gated := testutil.NewGatedSource(inner)
	exec := confine.NewExecutor(gated, q)

	obs := testutil.NewRecordingObserver()
	sub := SubmitFetch(exec, fetch.NewRequest("Task"), obs)

	<-gated.Entered()
	assert.Equal(t, StateRunning, sub.State())
	sub.Cancel()
	gated.Release()
	flush(t, q)

	assert.Equal(t, 1, inner.CallCount(), "in-flight call runs to completion")
	assert.Empty(t, obs.Events(), "outcome must be discarded")
	assert.Equal(t, StateCancelled, sub.State())
}

func TestCancel_AfterCompletionIsNoop(t *testing.T) {
	exec, _ := recordingExecutor(t)
	obs := testutil.NewRecordingObserver()

	sub := SubmitFetch(exec, fetch.NewRequest("Task"), obs)
	waitTerminated(t, obs)

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, StateCompleted, sub.State())
	assert.Len(t, obs.Events(), 2)
}

func TestCancel_Concurrent(t *testing.T) {
	exec, _ := recordingExecutor(t)
	release := blockQueue(t, exec.Queue())

	sub := SubmitFetch(exec, fetch.NewRequest("Task"), nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub.Cancel()
		}()
	}
	wg.Wait()
	release()
	flush(t, exec.Queue())
	assert.Equal(t, StateCancelled, sub.State())
}

func TestSubscribe_FIFOOrder(t *testing.T) {
	q := newQueue(t)

	var (
		mu       sync.Mutex
		order    []string
		inFlight int
		overlap  bool
	)
	src := &testutil.RecordingSource{Result: func(req fetch.Request) ([]ir.Record, error) {
		mu.Lock()
		inFlight++
		overlap = overlap || inFlight > 1
		order = append(order, req.Entity())
		mu.Unlock()

		time.Sleep(50 * time.Microsecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil, nil
	}}
	exec := confine.NewExecutor(src, q)

	// Submissions from one goroutine keep their order; submissions from
	// several goroutines keep each goroutine's order.
	const workers, perWorker = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				SubmitFetch(exec, fetch.NewRequest(fmt.Sprintf("W%dN%03d", w, i)), nil)
			}
		}()
	}
	wg.Wait()
	flush(t, q)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, workers*perWorker)
	assert.False(t, overlap, "executor calls interleaved")

	next := make([]int, workers)
	for _, entity := range order {
		var w, i int
		_, err := fmt.Sscanf(entity, "W%dN%d", &w, &i)
		require.NoError(t, err)
		assert.Equal(t, next[w], i, "worker %d reordered", w)
		next[w] = i + 1
	}
}

func TestSubscribe_ValidationError(t *testing.T) {
	exec, src := recordingExecutor(t)
	obs := testutil.NewRecordingObserver()

	sub := SubmitFetch(exec, fetch.NewRequest("Task", fetch.WithLimit(-1)), obs)
	waitTerminated(t, obs)

	events := obs.Events()
	require.Len(t, events, 1)
	assert.Equal(t, testutil.EventError, events[0].Kind)
	assert.True(t, fetch.IsValidation(events[0].Err))
	assert.Contains(t, events[0].Err.Error(), "negative limit")
	assert.Equal(t, 0, src.CallCount())
	assert.Equal(t, StateFailed, sub.State())
}

func TestSubscribe_StoreAccessError(t *testing.T) {
	q := newQueue(t)
	boom := errors.New("database is locked")
	exec := confine.NewExecutor(testutil.NewFailingSource(boom), q)
	obs := testutil.NewRecordingObserver()

	SubmitFetch(exec, fetch.NewRequest("Task"), obs)
	waitTerminated(t, obs)

	events := obs.Events()
	require.Len(t, events, 1)
	assert.True(t, fetch.IsStoreAccess(events[0].Err))
	assert.ErrorIs(t, events[0].Err, boom)
}

func TestSubscribe_EmptyResult(t *testing.T) {
	exec, _ := recordingExecutor(t)
	obs := testutil.NewRecordingObserver()

	SubmitFetch(exec, fetch.NewRequest("Task"), obs)
	waitTerminated(t, obs)

	events := obs.Events()
	require.Len(t, events, 2)
	assert.NotNil(t, events[0].Records)
	assert.Empty(t, events[0].Records)
}

func TestSubscribe_DeliveryTarget(t *testing.T) {
	exec, _ := recordingExecutor(t)
	main := confine.NewQueue("main")
	t.Cleanup(main.Close)

	var scheduled int
	target := dispatch.SchedulerFunc(func(fn func()) error {
		scheduled++
		return main.Schedule(fn)
	})

	obs := testutil.NewRecordingObserver()
	SubmitFetch(exec, fetch.NewRequest("Task"), obs, WithDelivery(target))
	waitTerminated(t, obs)
	assert.Equal(t, 1, scheduled)
}

func TestSubscribe_DeliveryOnPool(t *testing.T) {
	exec, _ := recordingExecutor(t, task("t1", "a"))
	pool, err := dispatch.NewPool(2, nil)
	require.NoError(t, err)
	defer func() { _ = pool.Release(time.Second) }()

	obs := testutil.NewRecordingObserver()
	SubmitFetch(exec, fetch.NewRequest("Task"), obs, WithDelivery(pool))
	waitTerminated(t, obs)
	assert.Equal(t, []testutil.EventKind{testutil.EventNext, testutil.EventComplete}, obs.Kinds())
}

func TestSubscribe_ClosedQueue(t *testing.T) {
	exec, src := recordingExecutor(t)
	exec.Queue().Close()
	<-exec.Queue().Drained()

	obs := testutil.NewRecordingObserver()
	sub := SubmitFetch(exec, fetch.NewRequest("Task"), obs)
	waitTerminated(t, obs)

	events := obs.Events()
	require.Len(t, events, 1)
	assert.True(t, fetch.IsStoreAccess(events[0].Err))
	assert.ErrorIs(t, events[0].Err, confine.ErrQueueClosed)
	assert.Equal(t, 0, src.CallCount())
	assert.Equal(t, StateFailed, sub.State())
}

func TestSubscribe_ClosedQueueFailsAfterReturn(t *testing.T) {
	exec, _ := recordingExecutor(t)
	exec.Queue().Close()
	<-exec.Queue().Drained()

	release := make(chan struct{})
	failed := make(chan error, 1)
	obs := ObserverFuncs{Error: func(err error) {
		<-release
		failed <- err
	}}

	returned := make(chan *Subscription, 1)
	go func() { returned <- SubmitFetch(exec, fetch.NewRequest("Task"), obs) }()

	var sub *Subscription
	select {
	case sub = <-returned:
	case <-time.After(time.Second):
		close(release)
		t.Fatal("Subscribe waited on the observer")
	}
	close(release)

	select {
	case err := <-failed:
		assert.True(t, fetch.IsStoreAccess(err))
	case <-time.After(time.Second):
		t.Fatal("OnError never called")
	}
	<-sub.Done()
	assert.Equal(t, StateFailed, sub.State())
}

func TestSubscribe_IDGenerator(t *testing.T) {
	exec, _ := recordingExecutor(t)
	ids := testutil.NewSequentialIDs("fetch")

	s := Adapt(exec, fetch.NewRequest("Task"), WithIDGenerator(ids))
	assert.Equal(t, "fetch-0001", s.Subscribe(nil).ID())
	assert.Equal(t, "fetch-0002", s.Subscribe(nil).ID())
	assert.Equal(t, "pinned", s.Subscribe(nil, WithIDGenerator(testutil.FixedID("pinned"))).ID())
}

func TestSubscribe_Metrics(t *testing.T) {
	exec, _ := recordingExecutor(t)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	obs := testutil.NewRecordingObserver()
	SubmitFetch(exec, fetch.NewRequest("Task"), obs, WithMetrics(m))
	waitTerminated(t, obs)

	release := blockQueue(t, exec.Queue())
	SubmitFetch(exec, fetch.NewRequest("Task"), nil, WithMetrics(m)).Cancel()
	release()
	flush(t, exec.Queue())

	var buf bytes.Buffer
	require.NoError(t, metrics.WriteText(&buf, reg))
	assert.Contains(t, buf.String(), `coldfetch_subscriptions_total{outcome="completed"} 1`)
	assert.Contains(t, buf.String(), `coldfetch_subscriptions_total{outcome="cancelled"} 1`)
	assert.Contains(t, buf.String(), `coldfetch_cancellations_total{phase="before_run"} 1`)
}

func TestExecutor_ConfinementViolation(t *testing.T) {
	exec, src := recordingExecutor(t)

	assert.PanicsWithError(t,
		fmt.Sprintf("confinement violation: Execute called outside queue %q", exec.Queue().Name()),
		func() { exec.Execute(context.Background(), fetch.NewRequest("Task")) },
	)
	assert.Equal(t, 0, src.CallCount())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "scheduled", StateScheduled.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateRunning.Terminal())
}
