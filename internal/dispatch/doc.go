// Package dispatch moves one fetch across goroutines: onto the executor's
// confinement queue for execution, then onto a delivery target for the
// outcome.
//
// A Bridge never runs the executor anywhere but its queue, so two executor
// calls against one executor are never concurrent.
package dispatch
