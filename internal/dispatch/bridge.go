package dispatch

import (
	"context"

	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/logging"
)

// Checkpoint is the cancellation contract of one subscription.
//
// Begin runs on the executor's queue before execution; returning false skips
// the executor entirely. Deliver runs on the delivery target; it must
// discard env if the subscription was cancelled meanwhile.
type Checkpoint interface {
	Begin() bool
	Deliver(env confine.Envelope)
}

// Bridge submits fetches to one executor and delivers on one target.
type Bridge struct {
	exec   *confine.Executor
	target Scheduler
	log    logging.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge's logger.
func WithLogger(l logging.Logger) Option {
	return func(b *Bridge) {
		b.log = logging.OrNoop(l)
	}
}

// New creates a Bridge. A nil target means Immediate.
func New(exec *confine.Executor, target Scheduler, opts ...Option) *Bridge {
	if target == nil {
		target = Immediate{}
	}
	b := &Bridge{exec: exec, target: target, log: logging.Noop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Submit enqueues one job on the executor's queue: Begin, Execute, then
// Deliver on the target. It never blocks on the execution.
//
// Returns confine.ErrQueueClosed when the queue no longer accepts work; the
// checkpoint is not called in that case.
func (b *Bridge) Submit(req fetch.Request, cp Checkpoint) error {
	return b.exec.Queue().Perform(func(ctx context.Context) {
		if !cp.Begin() {
			return
		}
		env := b.exec.Execute(ctx, req)
		b.deliver(cp, env)
	})
}

// deliver hands env to the target. A target that refuses work gets bypassed:
// the outcome is delivered here, on the queue, so it is never lost.
func (b *Bridge) deliver(cp Checkpoint, env confine.Envelope) {
	err := b.target.Schedule(func() { cp.Deliver(env) })
	if err == nil {
		return
	}
	b.log.Warn("delivery target refused outcome, delivering on queue",
		logging.String("queue", b.exec.Queue().Name()),
		logging.Err(err),
	)
	cp.Deliver(env)
}
