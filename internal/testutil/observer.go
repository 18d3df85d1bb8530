package testutil

import (
	"sync"
	"time"

	"github.com/roach88/coldfetch/internal/ir"
)

// EventKind names a recorded observer event.
type EventKind string

const (
	EventNext     EventKind = "next"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
)

// Event is one recorded observer callback.
type Event struct {
	Kind    EventKind
	Records []ir.Record
	Err     error
}

// RecordingObserver records OnNext/OnComplete/OnError in order and closes
// Terminated on the first terminal event.
type RecordingObserver struct {
	mu         sync.Mutex
	events     []Event
	terminated chan struct{}
	once       sync.Once
	onEvent    func(Event)
}

// NewRecordingObserver creates an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{terminated: make(chan struct{})}
}

// OnEvent registers a hook called synchronously for every event.
func (o *RecordingObserver) OnEvent(fn func(Event)) *RecordingObserver {
	o.onEvent = fn
	return o
}

func (o *RecordingObserver) OnNext(records []ir.Record) {
	o.record(Event{Kind: EventNext, Records: records})
}

func (o *RecordingObserver) OnComplete() {
	o.record(Event{Kind: EventComplete})
	o.once.Do(func() { close(o.terminated) })
}

func (o *RecordingObserver) OnError(err error) {
	o.record(Event{Kind: EventError, Err: err})
	o.once.Do(func() { close(o.terminated) })
}

func (o *RecordingObserver) record(e Event) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
	if o.onEvent != nil {
		o.onEvent(e)
	}
}

// Events returns a copy of the recorded events.
func (o *RecordingObserver) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Event(nil), o.events...)
}

// Kinds returns the kinds of the recorded events, in order.
func (o *RecordingObserver) Kinds() []EventKind {
	events := o.Events()
	kinds := make([]EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Terminated closes on the first OnComplete or OnError.
func (o *RecordingObserver) Terminated() <-chan struct{} {
	return o.terminated
}

// WaitTerminated waits up to d for a terminal event.
func (o *RecordingObserver) WaitTerminated(d time.Duration) bool {
	select {
	case <-o.terminated:
		return true
	case <-time.After(d):
		return false
	}
}
