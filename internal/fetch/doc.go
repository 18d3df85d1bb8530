// Package fetch defines the fetch request: an immutable, opaque description
// of what to read from a store.
//
// A Request names a target entity (collection), an optional filter predicate,
// sort keys and an optional limit/offset window. It is built once through
// NewRequest and never mutated afterwards: fields are unexported and every
// accessor returns a deep copy, so one Request may be shared by any number of
// goroutines and subscriptions.
//
// SEALED PREDICATES:
//
// Predicate is a sealed interface using the marker method pattern. Only the
// types in this package implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Eq:
//	case Ne:
//	case Cmp:
//	case In:
//	case And:
//	}
//
// ERRORS:
//
// Error carries a Kind. KindValidation means the request is structurally
// invalid; KindStoreAccess means the underlying resource failed. Both are
// data-level failures and travel as results, never as panics.
package fetch
