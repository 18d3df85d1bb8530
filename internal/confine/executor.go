package confine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
	"github.com/roach88/coldfetch/internal/logging"
)

// Source is the resource an Executor reads from. It is only ever called from
// the executor's queue, so implementations need no locking of their own.
type Source interface {
	ExecuteRaw(ctx context.Context, req fetch.Request) ([]ir.Record, error)
}

// Envelope is the outcome of one execution: records or a classified error,
// never both.
type Envelope struct {
	Records []ir.Record
	Err     *fetch.Error
}

// OK reports whether the envelope carries records.
func (e Envelope) OK() bool {
	return e.Err == nil
}

// Observer receives execution timings. metrics.Collectors implements it.
type Observer interface {
	ObserveExecution(d time.Duration, err *fetch.Error)
}

// Executor owns a Source and the one Queue it may be used on.
//
// An Executor must not be copied after construction.
type Executor struct {
	source   Source
	queue    *Queue
	log      logging.Logger
	observer Observer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(l logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = logging.OrNoop(l)
	}
}

// WithObserver records every execution on o.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		e.observer = o
	}
}

// NewExecutor binds source to queue. Both are required.
func NewExecutor(source Source, queue *Queue, opts ...ExecutorOption) *Executor {
	if source == nil {
		panic("confine: NewExecutor with nil source")
	}
	if queue == nil {
		panic("confine: NewExecutor with nil queue")
	}
	e := &Executor{source: source, queue: queue, log: logging.Noop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Queue returns the queue the executor is bound to.
func (e *Executor) Queue() *Queue {
	return e.queue
}

// Execute runs req against the Source and classifies the outcome.
//
// ctx must be the capability context of a job running on e.Queue();
// otherwise Execute panics with *ViolationError before doing anything else.
// The returned Envelope has a nil Records slice only when Err is set.
func (e *Executor) Execute(ctx context.Context, req fetch.Request) Envelope {
	if !e.queue.OnQueue(ctx) {
		panic(&ViolationError{Op: "Execute", Queue: e.queue.Name()})
	}

	start := time.Now()
	env := e.execute(ctx, req)
	if e.observer != nil {
		e.observer.ObserveExecution(time.Since(start), env.Err)
	}
	return env
}

func (e *Executor) execute(ctx context.Context, req fetch.Request) Envelope {
	if err := req.Validate(); err != nil {
		return Envelope{Err: fetch.AsError(err)}
	}

	records, err := e.callSource(ctx, req)
	if err != nil {
		ferr := fetch.AsError(err)
		e.log.Debug("execute failed",
			logging.String("entity", req.Entity()),
			logging.String("kind", string(ferr.Kind)),
			logging.Err(ferr),
		)
		return Envelope{Err: ferr}
	}
	if records == nil {
		records = []ir.Record{}
	}
	return Envelope{Records: records}
}

// callSource invokes the Source, turning a panic into an error. A
// confinement violation raised inside the Source keeps propagating.
func (e *Executor) callSource(ctx context.Context, req fetch.Request) (records []ir.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			if v, ok := r.(*ViolationError); ok {
				panic(v)
			}
			records = nil
			err = fetch.NewStoreAccessError("source panicked", fmt.Errorf("%v", r))
		}
	}()
	return e.source.ExecuteRaw(ctx, req)
}
