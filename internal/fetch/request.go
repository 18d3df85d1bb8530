package fetch

import (
	"fmt"

	"github.com/roach88/coldfetch/internal/ir"
)

// SortKey orders results by one field.
type SortKey struct {
	Field      string
	Descending bool
}

// Request describes one fetch: target entity, filter, ordering and window.
//
// The zero Request is invalid (no entity). Build requests with NewRequest.
// Results are always ordered: after the explicit sort keys, ties are broken
// by record ID ascending, so a Request yields a deterministic sequence.
type Request struct {
	entity   string
	filter   Predicate
	sort     []SortKey
	limit    int
	hasLimit bool
	offset   int
}

// RequestOption configures a Request at construction.
type RequestOption func(*Request)

// NewRequest builds an immutable Request for entity. Options are applied in
// order; inputs are deep-copied so later changes by the caller are not seen.
//
// NewRequest never fails. Structural problems are reported by Validate, which
// the executor runs before touching the store.
func NewRequest(entity string, opts ...RequestOption) Request {
	r := Request{entity: entity}
	for _, opt := range opts {
		if opt != nil {
			opt(&r)
		}
	}
	return r
}

// WithFilter sets the filter predicate, replacing any earlier one.
func WithFilter(p Predicate) RequestOption {
	return func(r *Request) {
		r.filter = clonePredicate(p)
	}
}

// Where sets the filter to the conjunction of preds.
func Where(preds ...Predicate) RequestOption {
	return WithFilter(All(preds...))
}

// SortBy appends an ascending sort key.
func SortBy(field string) RequestOption {
	return func(r *Request) {
		r.sort = append(r.sort, SortKey{Field: field})
	}
}

// SortByDesc appends a descending sort key.
func SortByDesc(field string) RequestOption {
	return func(r *Request) {
		r.sort = append(r.sort, SortKey{Field: field, Descending: true})
	}
}

// WithSort appends sort keys in order.
func WithSort(keys ...SortKey) RequestOption {
	return func(r *Request) {
		r.sort = append(r.sort, keys...)
	}
}

// WithLimit caps the number of results. Zero yields an empty result.
func WithLimit(n int) RequestOption {
	return func(r *Request) {
		r.limit = n
		r.hasLimit = true
	}
}

// WithOffset skips the first n results.
func WithOffset(n int) RequestOption {
	return func(r *Request) {
		r.offset = n
	}
}

// Entity returns the target collection name.
func (r Request) Entity() string {
	return r.entity
}

// Filter returns a copy of the filter predicate, or nil for no filter.
func (r Request) Filter() Predicate {
	return clonePredicate(r.filter)
}

// Sort returns a copy of the sort keys.
func (r Request) Sort() []SortKey {
	if len(r.sort) == 0 {
		return nil
	}
	out := make([]SortKey, len(r.sort))
	copy(out, r.sort)
	return out
}

// Limit returns the result limit and whether one is set.
func (r Request) Limit() (int, bool) {
	return r.limit, r.hasLimit
}

// Offset returns the number of results skipped.
func (r Request) Offset() int {
	return r.offset
}

// Key returns the canonical JSON encoding of r. Structurally equal requests
// have identical keys.
func (r Request) Key() (string, error) {
	v, err := r.value()
	if err != nil {
		return "", err
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Hash returns a stable content hash of r.
func (r Request) Hash() (string, error) {
	v, err := r.value()
	if err != nil {
		return "", err
	}
	return ir.HashValue(ir.DomainRequest, v)
}

// Equal reports structural equality. Requests that cannot be encoded (a
// predicate with a missing value) are never equal.
func (r Request) Equal(other Request) bool {
	a, err := r.Key()
	if err != nil {
		return false
	}
	b, err := other.Key()
	if err != nil {
		return false
	}
	return a == b
}

// String returns a compact description for logs.
func (r Request) String() string {
	key, err := r.Key()
	if err != nil {
		return fmt.Sprintf("%s <unencodable: %v>", r.entity, err)
	}
	return key
}

func (r Request) value() (ir.Object, error) {
	obj := ir.Object{"entity": ir.String(r.entity)}
	if r.filter != nil {
		fv, err := predicateValue(r.filter)
		if err != nil {
			return nil, err
		}
		obj["filter"] = fv
	}
	if len(r.sort) > 0 {
		keys := make(ir.Array, len(r.sort))
		for i, k := range r.sort {
			keys[i] = ir.Object{"field": ir.String(k.Field), "desc": ir.Bool(k.Descending)}
		}
		obj["sort"] = keys
	}
	if r.hasLimit {
		obj["limit"] = ir.Int(r.limit)
	}
	if r.offset != 0 {
		obj["offset"] = ir.Int(r.offset)
	}
	return obj, nil
}

func predicateValue(p Predicate) (ir.Value, error) {
	operand := func(field string, v ir.Value) (ir.Object, error) {
		if v == nil {
			return nil, fmt.Errorf("predicate on %q has no value", field)
		}
		return ir.Object{"field": ir.String(field), "value": v}, nil
	}

	switch v := p.(type) {
	case Eq:
		o, err := operand(v.Field, v.Value)
		return ir.Object{"eq": o}, err
	case Ne:
		o, err := operand(v.Field, v.Value)
		return ir.Object{"ne": o}, err
	case Cmp:
		o, err := operand(v.Field, v.Value)
		return ir.Object{string(v.Op): o}, err
	case In:
		vals := make(ir.Array, len(v.Values))
		for i, val := range v.Values {
			if val == nil {
				return nil, fmt.Errorf("in predicate on %q has a missing value", v.Field)
			}
			vals[i] = val
		}
		return ir.Object{"in": ir.Object{"field": ir.String(v.Field), "values": vals}}, nil
	case And:
		subs := make(ir.Array, len(v.Predicates))
		for i, sub := range v.Predicates {
			sv, err := predicateValue(sub)
			if err != nil {
				return nil, err
			}
			subs[i] = sv
		}
		return ir.Object{"and": subs}, nil
	case nil:
		return ir.Null{}, nil
	case nilPredicate:
		return nil, fmt.Errorf("nil *%s predicate", v.typ)
	default:
		return nil, fmt.Errorf("unsupported predicate type %T", p)
	}
}
