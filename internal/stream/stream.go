package stream

import (
	"github.com/google/uuid"

	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/dispatch"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/logging"
	"github.com/roach88/coldfetch/internal/metrics"
)

// IDGenerator produces subscription IDs.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-ordered UUIDv7 IDs.
type UUIDv7Generator struct{}

// NewID returns a new UUIDv7 string.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type settings struct {
	target  dispatch.Scheduler
	log     logging.Logger
	metrics *metrics.Collectors
	ids     IDGenerator
}

// Option configures a Stream or a single subscription.
type Option func(*settings)

// WithDelivery sets where events are delivered. Default: dispatch.Immediate,
// which delivers on the executor's queue right after execution.
func WithDelivery(target dispatch.Scheduler) Option {
	return func(s *settings) {
		s.target = target
	}
}

// WithLogger sets the logger for subscription lifecycle.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) {
		s.log = logging.OrNoop(l)
	}
}

// WithMetrics records subscription outcomes on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithIDGenerator overrides subscription ID generation.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *settings) {
		if g != nil {
			s.ids = g
		}
	}
}

// Stream is a cold stream of one request's results. It holds no state
// between subscriptions and performs no work until subscribed.
type Stream struct {
	exec *confine.Executor
	req  fetch.Request
	opts []Option
}

// Adapt captures exec and req. No work happens until Subscribe.
func Adapt(exec *confine.Executor, req fetch.Request, opts ...Option) *Stream {
	return &Stream{exec: exec, req: req, opts: append([]Option(nil), opts...)}
}

// Request returns the request the stream executes.
func (s *Stream) Request() fetch.Request {
	return s.req
}

// Subscribe starts one execution and returns its Subscription immediately.
// opts are applied after the stream's own options.
//
// If the executor's queue is closed, the subscription fails with a
// StoreAccessError. That error is delivered on the target, or on a new
// goroutine when the target is Immediate or refuses it.
func (s *Stream) Subscribe(obs Observer, opts ...Option) *Subscription {
	cfg := settings{
		target: dispatch.Immediate{},
		log:    logging.Noop(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range s.opts {
		opt(&cfg)
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.target == nil {
		cfg.target = dispatch.Immediate{}
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}

	sub := newSubscription(cfg.ids.NewID(), obs, cfg.log, cfg.metrics)
	sub.schedule()
	sub.log.Debug("subscription scheduled",
		logging.String("entity", s.req.Entity()),
		logging.String("queue", s.exec.Queue().Name()),
	)

	bridge := dispatch.New(s.exec, cfg.target, dispatch.WithLogger(sub.log))
	if err := bridge.Submit(s.req, sub); err != nil {
		sub.log.Warn("confinement queue refused subscription", logging.Err(err))
		sub.failUnscheduled(cfg.target, fetch.NewStoreAccessError("confinement queue unavailable", err))
	}
	return sub
}

// SubmitFetch is Adapt(exec, req).Subscribe(obs, opts...).
func SubmitFetch(exec *confine.Executor, req fetch.Request, obs Observer, opts ...Option) *Subscription {
	return Adapt(exec, req).Subscribe(obs, opts...)
}
