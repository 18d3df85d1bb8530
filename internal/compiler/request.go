package compiler

import (
	"fmt"
	"math"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

var (
	requestFields = []string{"entity", "where", "sort", "limit", "offset"}
	sortFields    = []string{"field", "desc"}
	operators     = []string{"eq", "ne", "lt", "lte", "gt", "gte", "in"}
)

// CompileFile reads a CUE file and compiles its top-level `request`.
func CompileFile(path string) (fetch.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fetch.Request{}, fmt.Errorf("read request file: %w", err)
	}
	return CompileSource(path, data)
}

// CompileSource compiles CUE source text. filename is used in positions.
func CompileSource(filename string, src []byte) (fetch.Request, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return fetch.Request{}, fromCUEError(err)
	}
	// Conflicts inside the struct do not surface through Err.
	if err := v.Validate(); err != nil {
		return fetch.Request{}, fromCUEError(err)
	}

	reqVal := v.LookupPath(cue.ParsePath("request"))
	if !reqVal.Exists() {
		return fetch.Request{}, &CompileError{
			Field:   "request",
			Message: "request is required",
			Pos:     v.Pos(),
		}
	}
	return CompileRequest(reqVal)
}

// CompileRequest compiles a CUE value holding the request struct itself.
func CompileRequest(v cue.Value) (fetch.Request, error) {
	if err := v.Err(); err != nil {
		return fetch.Request{}, fromCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return fetch.Request{}, &CompileError{Field: "request", Message: "must be a struct", Pos: v.Pos()}
	}
	if err := checkLabels(v, "request", requestFields); err != nil {
		return fetch.Request{}, err
	}

	entityVal := v.LookupPath(cue.ParsePath("entity"))
	if !entityVal.Exists() {
		return fetch.Request{}, &CompileError{Field: "entity", Message: "entity is required", Pos: v.Pos()}
	}
	entity, err := entityVal.String()
	if err != nil {
		return fetch.Request{}, &CompileError{Field: "entity", Message: "must be a string", Pos: entityVal.Pos()}
	}

	var opts []fetch.RequestOption

	if whereVal := v.LookupPath(cue.ParsePath("where")); whereVal.Exists() {
		preds, err := parseWhere(whereVal)
		if err != nil {
			return fetch.Request{}, err
		}
		opts = append(opts, fetch.Where(preds...))
	}

	if sortVal := v.LookupPath(cue.ParsePath("sort")); sortVal.Exists() {
		keys, err := parseSort(sortVal)
		if err != nil {
			return fetch.Request{}, err
		}
		opts = append(opts, fetch.WithSort(keys...))
	}

	if limitVal := v.LookupPath(cue.ParsePath("limit")); limitVal.Exists() {
		n, err := parseInt(limitVal, "limit")
		if err != nil {
			return fetch.Request{}, err
		}
		opts = append(opts, fetch.WithLimit(n))
	}

	if offsetVal := v.LookupPath(cue.ParsePath("offset")); offsetVal.Exists() {
		n, err := parseInt(offsetVal, "offset")
		if err != nil {
			return fetch.Request{}, err
		}
		opts = append(opts, fetch.WithOffset(n))
	}

	return fetch.NewRequest(entity, opts...), nil
}

// parseWhere parses the list of where entries.
func parseWhere(v cue.Value) ([]fetch.Predicate, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "where", Message: "must be a list", Pos: v.Pos()}
	}

	var preds []fetch.Predicate
	for i := 0; iter.Next(); i++ {
		pred, err := parseCondition(iter.Value(), fmt.Sprintf("where[%d]", i))
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

// parseCondition parses {field: "...", <op>: value}.
func parseCondition(v cue.Value, path string) (fetch.Predicate, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: path, Message: "must be a struct", Pos: v.Pos()}
	}
	if err := checkLabels(v, path, append([]string{"field"}, operators...)); err != nil {
		return nil, err
	}

	fieldVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldVal.Exists() {
		return nil, &CompileError{Field: path + ".field", Message: "field is required", Pos: v.Pos()}
	}
	field, err := fieldVal.String()
	if err != nil {
		return nil, &CompileError{Field: path + ".field", Message: "must be a string", Pos: fieldVal.Pos()}
	}

	var (
		op    string
		opVal cue.Value
	)
	for _, name := range operators {
		candidate := v.LookupPath(cue.ParsePath(name))
		if !candidate.Exists() {
			continue
		}
		if op != "" {
			return nil, &CompileError{
				Field:   path,
				Message: fmt.Sprintf("exactly one operator allowed, found %s and %s", op, name),
				Pos:     candidate.Pos(),
			}
		}
		op, opVal = name, candidate
	}
	if op == "" {
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("one operator of %v is required", operators),
			Pos:     v.Pos(),
		}
	}

	opPath := path + "." + op
	if op == "in" {
		list, err := toValue(opVal, opPath)
		if err != nil {
			return nil, err
		}
		arr, ok := list.(ir.Array)
		if !ok {
			return nil, &CompileError{Field: opPath, Message: "must be a list", Pos: opVal.Pos()}
		}
		return fetch.In{Field: field, Values: []ir.Value(arr)}, nil
	}

	value, err := toValue(opVal, opPath)
	if err != nil {
		return nil, err
	}
	switch op {
	case "eq":
		return fetch.Eq{Field: field, Value: value}, nil
	case "ne":
		return fetch.Ne{Field: field, Value: value}, nil
	default:
		return fetch.Cmp{Field: field, Op: fetch.Op(op), Value: value}, nil
	}
}

// parseSort parses [{field: "...", desc?: bool}].
func parseSort(v cue.Value) ([]fetch.SortKey, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: "sort", Message: "must be a list", Pos: v.Pos()}
	}

	var keys []fetch.SortKey
	for i := 0; iter.Next(); i++ {
		item := iter.Value()
		path := fmt.Sprintf("sort[%d]", i)
		if err := checkLabels(item, path, sortFields); err != nil {
			return nil, err
		}

		fieldVal := item.LookupPath(cue.ParsePath("field"))
		field, err := fieldVal.String()
		if err != nil {
			return nil, &CompileError{Field: path + ".field", Message: "field is required and must be a string", Pos: item.Pos()}
		}

		key := fetch.SortKey{Field: field}
		if descVal := item.LookupPath(cue.ParsePath("desc")); descVal.Exists() {
			desc, err := descVal.Bool()
			if err != nil {
				return nil, &CompileError{Field: path + ".desc", Message: "must be a bool", Pos: descVal.Pos()}
			}
			key.Descending = desc
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func parseInt(v cue.Value, field string) (int, error) {
	if v.IncompleteKind() != cue.IntKind {
		return 0, &CompileError{Field: field, Message: "must be an int", Pos: v.Pos()}
	}
	n, err := v.Int64()
	if err != nil || n < math.MinInt || n > math.MaxInt {
		return 0, &CompileError{Field: field, Message: "out of range for int", Pos: v.Pos()}
	}
	return int(n), nil
}

// toValue converts a concrete CUE value to an ir.Value.
func toValue(v cue.Value, path string) (ir.Value, error) {
	if !v.IsConcrete() {
		return nil, &CompileError{Field: path, Message: "value must be concrete", Pos: v.Pos()}
	}

	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, fromCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: path, Message: err.Error(), Pos: v.Pos()}
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, fromCUEError(err)
		}
		return ir.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, fromCUEError(err)
		}
		arr := ir.Array{}
		for i := 0; iter.Next(); i++ {
			elem, err := toValue(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, fromCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := toValue(iter.Value(), path+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   path,
			Message: "float values are not supported, use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("unsupported value kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// checkLabels rejects struct fields outside allowed.
func checkLabels(v cue.Value, path string, allowed []string) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: path, Message: "must be a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		if !slices.Contains(allowed, iter.Label()) {
			return &CompileError{
				Field:   path,
				Message: fmt.Sprintf("unknown field %q", iter.Label()),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}
