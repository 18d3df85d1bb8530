package fetch

import "github.com/roach88/coldfetch/internal/ir"

// Predicate is a filter condition over record fields.
//
// Field names refer to record fields; the reserved name "id" refers to the
// record ID.
type Predicate interface {
	predicateNode()
}

// Eq matches records whose field equals Value. A Null value matches records
// where the field is null or absent.
type Eq struct {
	Field string
	Value ir.Value
}

func (Eq) predicateNode() {}

// Ne matches records whose field is present and differs from Value.
type Ne struct {
	Field string
	Value ir.Value
}

func (Ne) predicateNode() {}

// Op is an ordering comparison operator.
type Op string

const (
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpGt  Op = "gt"
	OpGte Op = "gte"
)

// Valid reports whether o is one of the known operators.
func (o Op) Valid() bool {
	switch o {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// Cmp compares a field against an ordered literal (string or int).
type Cmp struct {
	Field string
	Op    Op
	Value ir.Value
}

func (Cmp) predicateNode() {}

// In matches records whose field equals any of Values.
type In struct {
	Field  string
	Values []ir.Value
}

func (In) predicateNode() {}

// And matches when every predicate matches. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// All builds an And over preds, dropping nils and flattening nested Ands.
// It returns nil for no predicates and the predicate itself for one.
func All(preds ...Predicate) Predicate {
	flat := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
		case And:
			if inner := All(v.Predicates...); inner != nil {
				if and, ok := inner.(And); ok {
					flat = append(flat, and.Predicates...)
				} else {
					flat = append(flat, inner)
				}
			}
		default:
			flat = append(flat, p)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return And{Predicates: flat}
	}
}

// nilPredicate replaces a nil pointer predicate so Validate can reject it.
type nilPredicate struct {
	typ string
}

func (nilPredicate) predicateNode() {}

// clonePredicate deep-copies a predicate tree. Pointer forms are normalized
// to values so the copy shares nothing with the caller.
func clonePredicate(p Predicate) Predicate {
	switch v := p.(type) {
	case nil:
		return nil
	case Eq:
		return Eq{Field: v.Field, Value: ir.Clone(v.Value)}
	case *Eq:
		if v == nil {
			return nilPredicate{typ: "Eq"}
		}
		return clonePredicate(*v)
	case Ne:
		return Ne{Field: v.Field, Value: ir.Clone(v.Value)}
	case *Ne:
		if v == nil {
			return nilPredicate{typ: "Ne"}
		}
		return clonePredicate(*v)
	case Cmp:
		return Cmp{Field: v.Field, Op: v.Op, Value: ir.Clone(v.Value)}
	case *Cmp:
		if v == nil {
			return nilPredicate{typ: "Cmp"}
		}
		return clonePredicate(*v)
	case In:
		vals := make([]ir.Value, len(v.Values))
		for i, val := range v.Values {
			vals[i] = ir.Clone(val)
		}
		return In{Field: v.Field, Values: vals}
	case *In:
		if v == nil {
			return nilPredicate{typ: "In"}
		}
		return clonePredicate(*v)
	case And:
		preds := make([]Predicate, len(v.Predicates))
		for i, sub := range v.Predicates {
			preds[i] = clonePredicate(sub)
		}
		return And{Predicates: preds}
	case *And:
		if v == nil {
			return nilPredicate{typ: "And"}
		}
		return clonePredicate(*v)
	default:
		return p
	}
}
