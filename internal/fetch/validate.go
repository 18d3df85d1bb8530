package fetch

import (
	"regexp"

	"github.com/roach88/coldfetch/internal/ir"
)

// MaxPredicateDepth bounds And nesting.
const MaxPredicateDepth = 16

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// ValidIdent reports whether s is a valid entity name.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// ValidField reports whether s is a valid field path (dot-separated
// identifiers).
func ValidField(s string) bool {
	return fieldPattern.MatchString(s)
}

// Validate checks that r is structurally valid and returns a KindValidation
// *Error describing the first problem found, or nil.
//
// Rules:
//   - entity is a non-empty identifier
//   - every field is a valid field path
//   - Eq/Ne values are present and are not arrays or objects
//   - Cmp uses a known operator and a string or int value
//   - In has at least one value and every value is a scalar
//   - And nesting stays under MaxPredicateDepth
//   - sort fields are unique
//   - limit and offset are not negative
//
// Validate is pure.
func (r Request) Validate() error {
	if r.entity == "" {
		return NewValidationError("request has no entity")
	}
	if !ValidIdent(r.entity) {
		return NewValidationError("invalid entity name %q", r.entity)
	}
	if err := validatePredicate(r.filter, 0); err != nil {
		return err
	}

	seen := make(map[string]bool, len(r.sort))
	for _, k := range r.sort {
		if !ValidField(k.Field) {
			return NewValidationError("invalid sort field %q", k.Field)
		}
		if seen[k.Field] {
			return NewValidationError("duplicate sort field %q", k.Field)
		}
		seen[k.Field] = true
	}

	if r.hasLimit && r.limit < 0 {
		return NewValidationError("negative limit %d", r.limit)
	}
	if r.offset < 0 {
		return NewValidationError("negative offset %d", r.offset)
	}
	return nil
}

func validatePredicate(p Predicate, depth int) error {
	if depth > MaxPredicateDepth {
		return NewValidationError("predicate nesting deeper than %d", MaxPredicateDepth)
	}

	switch v := p.(type) {
	case nil:
		if depth > 0 {
			return NewValidationError("nil predicate inside and")
		}
		return nil
	case Eq:
		return validateOperand("eq", v.Field, v.Value, true)
	case Ne:
		return validateOperand("ne", v.Field, v.Value, true)
	case Cmp:
		if !v.Op.Valid() {
			return NewValidationError("unknown comparison operator %q on %q", v.Op, v.Field)
		}
		if err := validateOperand(string(v.Op), v.Field, v.Value, false); err != nil {
			return err
		}
		switch v.Value.(type) {
		case ir.String, ir.Int:
			return nil
		default:
			return NewValidationError("%s on %q needs a string or int, got %s", v.Op, v.Field, ir.KindName(v.Value))
		}
	case In:
		if !ValidField(v.Field) {
			return NewValidationError("invalid field %q", v.Field)
		}
		if len(v.Values) == 0 {
			return NewValidationError("in on %q has no values", v.Field)
		}
		for i, val := range v.Values {
			if !ir.Scalar(val) {
				return NewValidationError("in on %q: value %d is %s, want string, int or bool", v.Field, i, ir.KindName(val))
			}
		}
		return nil
	case And:
		for _, sub := range v.Predicates {
			if err := validatePredicate(sub, depth+1); err != nil {
				return err
			}
		}
		return nil
	case nilPredicate:
		return NewValidationError("nil *%s predicate", v.typ)
	default:
		// Pointer forms never reach here: WithFilter normalizes them.
		return NewValidationError("unsupported predicate type %T", p)
	}
}

func validateOperand(op, field string, v ir.Value, allowNull bool) error {
	if !ValidField(field) {
		return NewValidationError("invalid field %q", field)
	}
	switch v.(type) {
	case nil:
		return NewValidationError("%s on %q has no value", op, field)
	case ir.Null:
		if !allowNull {
			return NewValidationError("%s on %q cannot compare null", op, field)
		}
		return nil
	case ir.Array, ir.Object:
		return NewValidationError("%s on %q cannot compare %s values", op, field, ir.KindName(v))
	default:
		return nil
	}
}
