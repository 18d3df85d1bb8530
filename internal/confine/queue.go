package confine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/roach88/coldfetch/internal/logging"
)

// ErrQueueClosed is returned when work is submitted to a closed Queue.
var ErrQueueClosed = errors.New("confine: queue closed")

// job is one unit of work on a Queue.
type job struct {
	seq uint64
	fn  func(ctx context.Context)
}

// Queue is a serialized FIFO worker.
//
// The queue is unbounded so that Perform never blocks the submitter.
// Jobs run on a single worker goroutine started by NewQueue.
type Queue struct {
	name string
	base context.Context
	log  logging.Logger

	mu      sync.Mutex
	jobs    []job
	nextSeq uint64
	closed  bool
	signal  chan struct{} // buffered, size 1; closed by Close
	drained chan struct{} // closed when the worker exits

	// active is the seq of the running job, 0 when idle.
	active atomic.Uint64
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the queue's logger.
func WithQueueLogger(l logging.Logger) QueueOption {
	return func(q *Queue) {
		q.log = logging.OrNoop(l)
	}
}

// WithBaseContext sets the parent of every job context. Values and
// cancellation of base are visible to jobs. Default: context.Background().
func WithBaseContext(ctx context.Context) QueueOption {
	return func(q *Queue) {
		if ctx != nil {
			q.base = ctx
		}
	}
}

// NewQueue creates a Queue and starts its worker.
func NewQueue(name string, opts ...QueueOption) *Queue {
	q := &Queue{
		name:    name,
		base:    context.Background(),
		log:     logging.Noop(),
		jobs:    make([]job, 0, 16),
		signal:  make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = q.log.With(logging.String("queue", name))
	go q.run()
	return q
}

// Name returns the queue's name.
func (q *Queue) Name() string {
	return q.name
}

// Perform enqueues fn without waiting for it to run.
// fn receives the capability context for its job.
func (q *Queue) Perform(fn func(ctx context.Context)) error {
	if fn == nil {
		return errors.New("confine: nil job")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.nextSeq++
	q.jobs = append(q.jobs, job{seq: q.nextSeq, fn: fn})

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// PerformAndWait runs fn on the queue and blocks until it returned.
//
// When ctx is already the capability context of the running job, fn runs
// inline with the same context; waiting would deadlock the worker.
// If ctx ends before fn ran, PerformAndWait returns ctx.Err(); fn still runs
// later.
func (q *Queue) PerformAndWait(ctx context.Context, fn func(ctx context.Context)) error {
	if fn == nil {
		return errors.New("confine: nil job")
	}
	if q.OnQueue(ctx) {
		fn(ctx)
		return nil
	}

	done := make(chan struct{})
	err := q.Perform(func(jobCtx context.Context) {
		defer close(done)
		fn(jobCtx)
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule runs fn on the queue. It lets a Queue act as a serial delivery
// target.
func (q *Queue) Schedule(fn func()) error {
	if fn == nil {
		return errors.New("confine: nil job")
	}
	return q.Perform(func(context.Context) { fn() })
}

// OnQueue reports whether ctx is the capability context of the job running
// on q at this moment.
func (q *Queue) OnQueue(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	c, ok := ctx.Value(capabilityKey{}).(capability)
	if !ok || c.queue != q {
		return false
	}
	return q.active.Load() == c.seq
}

// Len returns the number of jobs waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops intake. Jobs already queued still run; Drained closes once the
// last one has returned. Close is idempotent and never blocks, so it may be
// called from a job.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal) // wakes the worker
}

// Drained returns a channel closed when the worker has exited after Close.
func (q *Queue) Drained() <-chan struct{} {
	return q.drained
}

// Shutdown closes the queue and waits for queued jobs to finish, or for ctx
// to end.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.Close()
	select {
	case <-q.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryDequeue removes and returns the front job without blocking.
func (q *Queue) tryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}

	j := q.jobs[0]
	q.jobs[0] = job{} // release the closure for GC
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// run is the worker loop. Only this goroutine runs jobs.
func (q *Queue) run() {
	defer close(q.drained)
	q.log.Debug("queue worker started")

	for {
		if j, ok := q.tryDequeue(); ok {
			q.execute(j)
			continue
		}

		// The signal channel closes on Close, which makes this receive fire
		// immediately; an empty, closed queue ends the loop.
		<-q.signal
		if q.isClosed() && q.Len() == 0 {
			q.log.Debug("queue worker stopped")
			return
		}
	}
}

// execute runs one job under its capability context.
func (q *Queue) execute(j job) {
	ctx, cancel := context.WithCancel(context.WithValue(q.base, capabilityKey{}, capability{queue: q, seq: j.seq}))
	q.active.Store(j.seq)
	defer func() {
		q.active.Store(0)
		cancel()
	}()
	j.fn(ctx)
}

type capabilityKey struct{}

// capability identifies one job on one queue.
type capability struct {
	queue *Queue
	seq   uint64
}
