// Package store provides the SQLite-backed resource that fetch requests are
// executed against.
//
// Records live in one table keyed by (entity, id); field values are stored
// as canonical JSON and read back through json_extract. The store is the
// external collaborator behind confine.Source: ExecuteRaw runs one compiled
// request and returns rows or an error, and nothing more. It does no
// confinement checking of its own; callers reach it through a confine
// executor, which owns that concern.
//
// Put exists to seed fixtures and is not a general write API.
package store
