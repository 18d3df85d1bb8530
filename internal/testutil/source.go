package testutil

import (
	"context"
	"sync"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

// Call is one recorded ExecuteRaw invocation.
type Call struct {
	Request  fetch.Request
	Confined bool // result of the Guard at call time
}

// RecordingSource records every call and answers from Result.
//
// Guard, when set, is evaluated with the call's context; tests pass
// queue.OnQueue to prove the call ran confined.
type RecordingSource struct {
	Result func(req fetch.Request) ([]ir.Record, error)
	Guard  func(ctx context.Context) bool

	mu    sync.Mutex
	calls []Call
}

// NewRecordingSource answers every call with records.
func NewRecordingSource(records ...ir.Record) *RecordingSource {
	return &RecordingSource{
		Result: func(fetch.Request) ([]ir.Record, error) {
			return ir.CloneRecords(records), nil
		},
	}
}

// NewFailingSource answers every call with err.
func NewFailingSource(err error) *RecordingSource {
	return &RecordingSource{
		Result: func(fetch.Request) ([]ir.Record, error) {
			return nil, err
		},
	}
}

// ExecuteRaw records the call and returns Result(req).
func (s *RecordingSource) ExecuteRaw(ctx context.Context, req fetch.Request) ([]ir.Record, error) {
	call := Call{Request: req}
	if s.Guard != nil {
		call.Confined = s.Guard(ctx)
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if s.Result == nil {
		return []ir.Record{}, nil
	}
	return s.Result(req)
}

// Calls returns a copy of the recorded calls.
func (s *RecordingSource) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns the number of calls so far.
func (s *RecordingSource) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Source matches confine.Source without importing it.
type Source interface {
	ExecuteRaw(ctx context.Context, req fetch.Request) ([]ir.Record, error)
}

// GatedSource blocks every call until Release, so tests can act while an
// execution is in flight.
type GatedSource struct {
	inner   Source
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewGatedSource wraps inner.
func NewGatedSource(inner Source) *GatedSource {
	return &GatedSource{
		inner:   inner,
		entered: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

// ExecuteRaw signals Entered, waits for Release, then delegates.
func (g *GatedSource) ExecuteRaw(ctx context.Context, req fetch.Request) ([]ir.Record, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.inner.ExecuteRaw(ctx, req)
}

// Entered receives once per call, before the call blocks.
func (g *GatedSource) Entered() <-chan struct{} {
	return g.entered
}

// Release unblocks all current and future calls.
func (g *GatedSource) Release() {
	g.once.Do(func() { close(g.release) })
}
