package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/coldfetch/internal/compiler"
	"github.com/roach88/coldfetch/internal/confine"
	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/fixture"
	"github.com/roach88/coldfetch/internal/ir"
	"github.com/roach88/coldfetch/internal/logging"
	"github.com/roach88/coldfetch/internal/store"
	"github.com/roach88/coldfetch/internal/stream"
	"github.com/roach88/coldfetch/internal/testutil"
)

// Harness executes scenarios against a fresh store per scenario.
type Harness struct {
	store  *store.Store
	source *hookSource
	queue  *confine.Queue
	exec   *confine.Executor
	ids    *testutil.SequentialIDs
	log    logging.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger used by the harness and its executor.
func WithLogger(l logging.Logger) Option {
	return func(h *Harness) {
		h.log = logging.OrNoop(l)
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario gets its own temporary database, queue and executor.
// The returned error reports infrastructure problems (store, fixture,
// request compilation); expectation mismatches go into Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	dir, err := os.MkdirTemp("", "coldfetch-harness-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		ids:   testutil.NewSequentialIDs("sub"),
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logging.String("scenario", scenario.Name))

	h.source = &hookSource{inner: st}
	h.queue = confine.NewQueue("harness:"+scenario.Name, confine.WithQueueLogger(h.log))
	defer h.queue.Close()
	h.exec = confine.NewExecutor(h.source, h.queue, confine.WithExecutorLogger(h.log))

	if err := h.seed(ctx, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		sr, err := h.runStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Name, err)
		}
		result.Steps = append(result.Steps, sr)
		for _, mismatch := range compare(step, sr) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Name, mismatch))
		}
	}

	h.log.Debug("scenario finished", logging.Bool("pass", result.Pass))
	return result, nil
}

// seed loads the fixture file and inline records into the store.
func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	var records []ir.Record
	if scenario.Fixture != "" {
		fromFile, err := fixture.Load(scenario.Fixture)
		if err != nil {
			return fmt.Errorf("load fixture: %w", err)
		}
		records = append(records, fromFile...)
	}

	inline, err := fixture.File{Records: scenario.Records}.ToRecords()
	if err != nil {
		return fmt.Errorf("inline records: %w", err)
	}
	records = append(records, inline...)

	if err := h.store.Put(ctx, records...); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	return nil
}

// runStep compiles and runs one step, returning what was observed.
func (h *Harness) runStep(ctx context.Context, step Step) (StepResult, error) {
	req, err := compiler.CompileSource(step.Name+".cue", []byte(step.Request))
	if err != nil {
		return StepResult{}, fmt.Errorf("compile request: %w", err)
	}

	obs := testutil.NewRecordingObserver()
	callsBefore := h.source.calls.Load()
	opts := []stream.Option{stream.WithIDGenerator(h.ids), stream.WithLogger(h.log)}

	var sub *stream.Subscription
	switch step.Cancel {
	case CancelBeforeRun:
		release, err := h.parkQueue(ctx)
		if err != nil {
			return StepResult{}, err
		}
		sub = stream.SubmitFetch(h.exec, req, obs, opts...)
		sub.Cancel()
		release()

	case CancelDuringRun:
		handoff := make(chan *stream.Subscription, 1)
		h.source.setHook(func() { (<-handoff).Cancel() })
		sub = stream.SubmitFetch(h.exec, req, obs, opts...)
		handoff <- sub

	default:
		sub = stream.SubmitFetch(h.exec, req, obs, opts...)
	}

	// Everything the step queued, including its delivery, has run once the
	// queue accepts and runs a later job.
	if err := h.queue.PerformAndWait(ctx, func(context.Context) {}); err != nil {
		return StepResult{}, fmt.Errorf("wait for step: %w", err)
	}
	select {
	case <-sub.Done():
	case <-ctx.Done():
		return StepResult{}, ctx.Err()
	}
	h.source.setHook(nil)

	return observe(step.Name, sub, obs, int(h.source.calls.Load()-callsBefore)), nil
}

// parkQueue blocks the queue worker until release is called.
func (h *Harness) parkQueue(ctx context.Context) (release func(), err error) {
	gate := make(chan struct{})
	parked := make(chan struct{})
	if err := h.queue.Schedule(func() {
		close(parked)
		<-gate
	}); err != nil {
		return nil, fmt.Errorf("park queue: %w", err)
	}
	select {
	case <-parked:
	case <-ctx.Done():
		close(gate)
		return nil, ctx.Err()
	}
	return func() { close(gate) }, nil
}

func observe(name string, sub *stream.Subscription, obs *testutil.RecordingObserver, calls int) StepResult {
	sr := StepResult{Step: name, Subscription: sub.ID(), Calls: calls}

	switch sub.State() {
	case stream.StateCompleted:
		sr.Outcome = OutcomeCompleted
	case stream.StateFailed:
		sr.Outcome = OutcomeFailed
	case stream.StateCancelled:
		sr.Outcome = OutcomeCancelled
	default:
		sr.Outcome = sub.State().String()
	}

	for _, e := range obs.Events() {
		switch e.Kind {
		case testutil.EventNext:
			sr.IDs = make([]string, len(e.Records))
			for i, r := range e.Records {
				sr.IDs[i] = r.ID
			}
		case testutil.EventError:
			sr.Error = string(fetch.KindOf(e.Err))
			sr.Message = e.Err.Error()
		}
	}
	return sr
}

// compare lists the differences between a step's expectation and result.
func compare(step Step, sr StepResult) []string {
	var mismatches []string
	e := step.Expect

	if sr.Outcome != e.Outcome {
		mismatches = append(mismatches, fmt.Sprintf("expected outcome %s, got %s", e.Outcome, sr.Outcome))
	}
	if e.Outcome == OutcomeCompleted && !slices.Equal(nonNil(e.IDs), nonNil(sr.IDs)) {
		mismatches = append(mismatches, fmt.Sprintf("expected ids %v, got %v", e.IDs, sr.IDs))
	}
	if e.Outcome == OutcomeFailed && sr.Error != e.Error {
		mismatches = append(mismatches, fmt.Sprintf("expected error %s, got %q", e.Error, sr.Error))
	}
	if e.Calls != nil && *e.Calls != sr.Calls {
		mismatches = append(mismatches, fmt.Sprintf("expected %d executor calls, got %d", *e.Calls, sr.Calls))
	}
	return mismatches
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// hookSource counts calls and runs an optional hook before each one.
type hookSource struct {
	inner confine.Source
	calls atomic.Int64

	mu   sync.Mutex
	hook func()
}

func (s *hookSource) setHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

func (s *hookSource) ExecuteRaw(ctx context.Context, req fetch.Request) ([]ir.Record, error) {
	s.calls.Add(1)

	s.mu.Lock()
	hook := s.hook
	s.hook = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return s.inner.ExecuteRaw(ctx, req)
}

// RunFile loads and runs a scenario file.
func RunFile(ctx context.Context, path string, opts ...Option) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(ctx, scenario, opts...)
	return scenario, result, err
}
