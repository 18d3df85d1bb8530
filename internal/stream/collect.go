package stream

import (
	"context"
	"sync"

	"github.com/roach88/coldfetch/internal/ir"
)

// Collect subscribes to s and waits for its outcome. If ctx ends first the
// subscription is cancelled and ctx.Err() is returned.
func Collect(ctx context.Context, s *Stream, opts ...Option) ([]ir.Record, error) {
	type result struct {
		records []ir.Record
		err     error
	}
	ch := make(chan result, 1)

	var records []ir.Record
	sub := s.Subscribe(ObserverFuncs{
		Next:     func(r []ir.Record) { records = r },
		Complete: func() { ch <- result{records: records} },
		Error:    func(err error) { ch <- result{err: err} },
	}, opts...)

	select {
	case r := <-ch:
		return r.records, r.err
	case <-ctx.Done():
		sub.Cancel()
		// Cancel is a no-op once the outcome is being delivered.
		if st := sub.State(); st == StateCompleted || st == StateFailed {
			r := <-ch
			return r.records, r.err
		}
		return nil, ctx.Err()
	}
}

// CancelWhenDone cancels sub when ctx ends. The returned stop function
// releases the watcher without cancelling and returns once it has exited;
// the watcher also exits on its own when sub reaches a terminal state.
func CancelWhenDone(ctx context.Context, sub *Subscription) (stop func()) {
	stopCh := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		case <-stopCh:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
		<-exited
	}
}
