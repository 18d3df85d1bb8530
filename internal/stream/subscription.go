package stream

import (
	"sync"

	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/dispatch"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
	"github.com/roach88/coldfetch/internal/logging"
	"github.com/roach88/coldfetch/internal/metrics"
)

// Subscription controls one execution of a Stream.
//
// Thread-safety: all exported methods are safe for concurrent use.
type Subscription struct {
	id      string
	obs     Observer
	log     logging.Logger
	metrics *metrics.Collectors

	mu    sync.Mutex
	state State
	done  chan struct{}
}

func newSubscription(id string, obs Observer, log logging.Logger, m *metrics.Collectors) *Subscription {
	return &Subscription{
		id:      id,
		obs:     obs,
		log:     log.With(logging.String("subscription", id)),
		metrics: m,
		state:   StateNew,
		done:    make(chan struct{}),
	}
}

// ID returns the subscription's ID.
func (s *Subscription) ID() string {
	return s.id
}

// State returns the current state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done closes when the subscription reaches a terminal state. On completion
// or failure it closes after the observer returned from its last callback.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel requests cancellation. It is idempotent, safe from any goroutine
// and a no-op once the subscription completed or failed.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	prev := s.state
	if prev.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateCancelled
	s.mu.Unlock()

	close(s.done)

	phase := metrics.PhaseBeforeRun
	if prev == StateRunning {
		phase = metrics.PhaseDuringRun
	}
	s.metrics.Cancelled(phase)
	s.metrics.SubscriptionFinished(metrics.OutcomeCancelled)
	s.log.Debug("subscription cancelled", logging.String("phase", phase))
}

// schedule moves New to Scheduled.
func (s *Subscription) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNew {
		s.state = StateScheduled
	}
}

// Begin is the checkpoint before execution. It runs on the executor's
// queue and reports whether the executor may be invoked.
func (s *Subscription) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateScheduled {
		return false
	}
	s.state = StateRunning
	return true
}

// Deliver is the checkpoint before delivery. It runs on the delivery target
// and emits the outcome unless the subscription was cancelled meanwhile.
func (s *Subscription) Deliver(env confine.Envelope) {
	s.mu.Lock()
	if s.state != StateRunning {
		state := s.state
		s.mu.Unlock()
		s.log.Debug("outcome discarded", logging.String("state", state.String()))
		return
	}
	if env.Err != nil {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	s.mu.Unlock()

	if env.Err != nil {
		s.emitError(env.Err)
	} else {
		s.emitSuccess(env.Records)
	}
	close(s.done)
}

func (s *Subscription) emitSuccess(records []ir.Record) {
	if records == nil {
		records = []ir.Record{}
	}
	s.obs.OnNext(records)
	s.obs.OnComplete()
	s.metrics.SubscriptionFinished(metrics.OutcomeCompleted)
	s.log.Debug("subscription completed", logging.Int("records", len(records)))
}

func (s *Subscription) emitError(err *fetch.Error) {
	s.obs.OnError(err)
	s.metrics.SubscriptionFinished(metrics.OutcomeFailed)
	s.log.Debug("subscription failed",
		logging.String("kind", string(err.Kind)),
		logging.Err(err),
	)
}

// failUnscheduled delivers err when the job never reached the queue. This
// runs on the subscribing goroutine, so inline delivery is replaced by a
// goroutine: observers never see an event before Subscribe returned.
func (s *Subscription) failUnscheduled(target dispatch.Scheduler, err *fetch.Error) {
	deliver := func() {
		if s.Begin() {
			s.Deliver(confine.Envelope{Err: err})
		}
	}
	if _, inline := target.(dispatch.Immediate); inline {
		target = dispatch.Async{}
	}
	if target.Schedule(deliver) != nil {
		go deliver()
	}
}
