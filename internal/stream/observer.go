package stream

import "github.com/roach88/coldfetch/internal/ir"

// Observer receives the events of one subscription.
//
// Callbacks run on the subscription's delivery target, never concurrently
// for one subscription.
type Observer interface {
	OnNext(records []ir.Record)
	OnComplete()
	OnError(err error)
}

// ObserverFuncs builds an Observer from optional functions.
type ObserverFuncs struct {
	Next     func(records []ir.Record)
	Complete func()
	Error    func(err error)
}

func (o ObserverFuncs) OnNext(records []ir.Record) {
	if o.Next != nil {
		o.Next(records)
	}
}

func (o ObserverFuncs) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}
