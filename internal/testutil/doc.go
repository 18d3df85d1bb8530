// Package testutil provides deterministic helpers for coldfetch tests:
// predictable subscription IDs, instrumented sources and recording observers.
//
// It imports only the data packages (fetch, ir) so any package's tests may
// use it without an import cycle.
package testutil
