// Package stream adapts a confined executor into cold, single-shot streams.
//
// Adapt captures an executor and a request and does nothing else. Each call
// to Stream.Subscribe starts one independent execution on the executor's
// queue and delivers exactly one outcome to its Observer:
//
//	OnNext(records) then OnComplete()   on success (records may be empty)
//	OnError(err)                        on failure, err is a *fetch.Error
//
// A cancelled Subscription delivers nothing. Cancelling before the queue
// reaches the job skips the executor entirely; cancelling while it runs lets
// the call finish and discards the outcome.
package stream
