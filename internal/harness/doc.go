// Package harness runs YAML conformance scenarios against the stream bridge.
//
// A scenario seeds a fresh SQLite store, then runs each step's CUE request
// through stream.SubmitFetch on a confined executor and compares the outcome
// (completed, failed or cancelled) with the step's expectation. Steps can
// cancel their subscription before the queue dispatches it or while the
// executor is running, so the cancellation contract is exercised end to end.
//
// Subscription IDs come from a sequential generator, which keeps the result
// trace deterministic for golden comparison.
package harness
