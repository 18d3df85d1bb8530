package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/roach88/coldfetch/internal/logging"
)

// ErrSchedulerClosed is returned by a released Scheduler.
var ErrSchedulerClosed = errors.New("dispatch: scheduler closed")

// Scheduler runs fn somewhere, later or now. *confine.Queue is a Scheduler.
type Scheduler interface {
	Schedule(fn func()) error
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func()) error

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) error {
	return f(fn)
}

// Immediate runs fn on the calling goroutine. Used as a delivery target by a
// Bridge, it delivers on the confinement queue itself.
type Immediate struct{}

// Schedule runs fn and returns nil.
func (Immediate) Schedule(fn func()) error {
	fn()
	return nil
}

// Async runs every fn on a new goroutine. Deliveries are not ordered.
type Async struct{}

// Schedule starts fn in a goroutine.
func (Async) Schedule(fn func()) error {
	go fn()
	return nil
}

// Pool runs deliveries on a bounded ants worker pool.
type Pool struct {
	pool *ants.Pool
	log  logging.Logger

	mu       sync.RWMutex
	released bool
}

// NewPool creates a pool of size workers (size > 0). A panic in a delivery is logged
// and the worker is recycled.
func NewPool(size int, log logging.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dispatch: pool size must be positive, got %d", size)
	}
	log = logging.OrNoop(log)
	p, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		log.Error("delivery panic", logging.Any("panic", v))
	}))
	if err != nil {
		return nil, err
	}
	return &Pool{pool: p, log: log}, nil
}

// Schedule submits fn to the pool, blocking while all workers are busy.
func (p *Pool) Schedule(fn func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.released {
		return ErrSchedulerClosed
	}
	return p.pool.Submit(fn)
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops accepting work and waits up to timeout for running
// deliveries to finish.
func (p *Pool) Release(timeout time.Duration) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	p.mu.Unlock()
	return p.pool.ReleaseTimeout(timeout)
}
