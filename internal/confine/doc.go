// Package confine provides the confinement primitives of coldfetch.
//
// A Queue is a serialized FIFO worker: every job submitted to it runs on one
// goroutine, one at a time, in submission order. An Executor binds a read-only
// Source to exactly one Queue and refuses to run anywhere else.
//
// Confinement is proven with a capability context. The worker mints a fresh
// context for every job it runs; Queue.OnQueue reports whether a context
// belongs to the job that is running right now. Executor.Execute checks this
// before touching the Source and panics with *ViolationError when the check
// fails. A violation is a programming error, not a data event, so it is never
// delivered to a subscriber.
//
// Thread-safety model:
//   - Perform, PerformAndWait, Schedule, Close, Len: safe from any goroutine
//   - Executor.Execute: only from a job running on the executor's queue
package confine
