// Package querysql compiles fetch requests to parameterized SQLite SQL over
// the store's records table.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/coldfetch/internal/fetch"
	"github.com/roach88/coldfetch/internal/ir"
)

// DefaultTable is the table the store keeps records in.
const DefaultTable = "records"

// Statement is a compiled query: SQL text with ? placeholders and its
// arguments in order.
type Statement struct {
	SQL  string
	Args []any
}

// Compiler compiles fetch requests to SQL for SQLite.
//
// CRITICAL: every statement ends with the record ID as the final ORDER BY
// key, so equal sort values still come back in a deterministic order.
// CRITICAL: values and JSON paths are always parameters, never interpolated.
type Compiler struct {
	Table string
}

// NewCompiler creates a Compiler for DefaultTable.
func NewCompiler() *Compiler {
	return &Compiler{Table: DefaultTable}
}

// Compile converts req to a Statement. An invalid request yields its
// validation error unchanged.
func (c *Compiler) Compile(req fetch.Request) (Statement, error) {
	if err := req.Validate(); err != nil {
		return Statement{}, err
	}

	table := c.Table
	if table == "" {
		table = DefaultTable
	}

	var b strings.Builder
	args := []any{req.Entity()}

	fmt.Fprintf(&b, "SELECT id, entity, data FROM %s WHERE entity = ?", table)

	if filter := req.Filter(); filter != nil {
		sql, params, err := c.compilePredicate(filter)
		if err != nil {
			return Statement{}, err
		}
		b.WriteString(" AND ")
		b.WriteString(sql)
		args = append(args, params...)
	}

	// An explicit id key fixes the order completely; otherwise id is the
	// final tiebreaker.
	keys := make([]string, 0, len(req.Sort())+1)
	hasID := false
	for _, k := range req.Sort() {
		expr, params := fieldExpr(k.Field)
		key := expr + " ASC"
		if k.Descending {
			key = expr + " DESC"
		}
		if k.Field == "id" {
			hasID = true
			key += " COLLATE BINARY"
		}
		keys = append(keys, key)
		args = append(args, params...)
	}
	if !hasID {
		keys = append(keys, "id ASC COLLATE BINARY")
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(keys, ", "))

	limit, hasLimit := req.Limit()
	offset := req.Offset()
	if hasLimit {
		b.WriteString(" LIMIT ?")
		args = append(args, int64(limit))
	} else if offset > 0 {
		// SQLite requires LIMIT before OFFSET; -1 means no limit.
		b.WriteString(" LIMIT -1")
	}
	if offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, int64(offset))
	}

	return Statement{SQL: b.String(), Args: args}, nil
}

// fieldExpr returns the SQL expression reading field from a record row.
func fieldExpr(field string) (string, []any) {
	if field == "id" {
		return "id", nil
	}
	return "json_extract(data, ?)", []any{"$." + field}
}

// compilePredicate compiles a predicate to a WHERE fragment.
//
// json_extract maps JSON true/false to 1/0 and arrays to their JSON text, so
// every comparison on a data field is guarded by the JSON type of its value.
func (c *Compiler) compilePredicate(p fetch.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case fetch.Eq:
		if _, isNull := pred.Value.(ir.Null); isNull {
			expr, params := fieldExpr(pred.Field)
			return expr + " IS NULL", params, nil
		}
		return compileCompare(pred.Field, "=", pred.Value)
	case fetch.Ne:
		expr, params := fieldExpr(pred.Field)
		if _, isNull := pred.Value.(ir.Null); isNull {
			return expr + " IS NOT NULL", params, nil
		}
		if pred.Field == "id" {
			return compileCompare(pred.Field, "<>", pred.Value)
		}
		eq, eqParams, err := compileCompare(pred.Field, "=", pred.Value)
		if err != nil {
			return "", nil, err
		}
		// Missing and null fields never match, as with any other comparison.
		return fmt.Sprintf("(%s IS NOT NULL AND NOT %s)", expr, eq), append(params, eqParams...), nil
	case fetch.Cmp:
		return compileCompare(pred.Field, cmpOperator(pred.Op), pred.Value)
	case fetch.In:
		return compileIn(pred)
	case fetch.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fetch.NewValidationError("unsupported predicate type %T", p)
	}
}

// compileIn groups values by JSON type so each group keeps its own guard.
func compileIn(in fetch.In) (string, []any, error) {
	type group struct {
		sample ir.Value
		params []any
	}
	var groups []*group
	byKind := make(map[string]*group)
	for _, v := range in.Values {
		param, err := valueToParam(v)
		if err != nil {
			return "", nil, err
		}
		kind := ir.KindName(v)
		g, ok := byKind[kind]
		if !ok {
			g = &group{sample: v}
			byKind[kind] = g
			groups = append(groups, g)
		}
		g.params = append(g.params, param)
	}

	parts := make([]string, 0, len(groups))
	var params []any
	for _, g := range groups {
		expr, exprParams := fieldExpr(in.Field)
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(g.params)), ", ")
		cond, condParams := guarded(in.Field, g.sample,
			fmt.Sprintf("%s IN (%s)", expr, marks), append(exprParams, g.params...))
		parts = append(parts, cond)
		params = append(params, condParams...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", params, nil
}

func (c *Compiler) compileAnd(and fetch.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, subParams, err := c.compilePredicate(sub)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// compileCompare compiles field op v, guarded by the JSON type of v.
func compileCompare(field, op string, v ir.Value) (string, []any, error) {
	param, err := valueToParam(v)
	if err != nil {
		return "", nil, err
	}
	expr, params := fieldExpr(field)
	sql, params := guarded(field, v, fmt.Sprintf("%s %s ?", expr, op), append(params, param))
	return sql, params, nil
}

// guarded prefixes cond with the JSON type check for v. The id column is
// plain text and needs none.
func guarded(field string, v ir.Value, cond string, params []any) (string, []any) {
	if field == "id" {
		return cond, params
	}
	var guard string
	switch v.(type) {
	case ir.String:
		guard = "json_type(data, ?) = 'text'"
	case ir.Int:
		guard = "json_type(data, ?) = 'integer'"
	case ir.Bool:
		guard = "json_type(data, ?) IN ('true', 'false')"
	default:
		return cond, params
	}
	return "(" + guard + " AND " + cond + ")", append([]any{"$." + field}, params...)
}

func cmpOperator(op fetch.Op) string {
	switch op {
	case fetch.OpLt:
		return "<"
	case fetch.OpLte:
		return "<="
	case fetch.OpGt:
		return ">"
	default:
		return ">="
	}
}

// valueToParam converts a scalar ir.Value to a driver argument. Arrays and
// objects are rejected by validation before they get here.
func valueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		// json_extract yields 1/0 for JSON booleans.
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fetch.NewValidationError("%s cannot be used as a parameter", ir.KindName(v))
	}
}
